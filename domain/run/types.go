package run

import (
	"strings"

	"psychohistory/domain/core"
)

// RunFingerprint ensures a training run can be recognised when replayed
type RunFingerprint struct {
	DatasetName string    `json:"dataset_name"`
	Rows        int       `json:"rows"`
	Features    []string  `json:"features"`
	Seed        int64     `json:"seed"`
	TestSplit   float64   `json:"test_split"`
	CodeVersion string    `json:"code_version"`
	Fingerprint core.Hash `json:"fingerprint"`
}

// NewRunFingerprint creates a fingerprint from the determinism parameters
func NewRunFingerprint(datasetName string, rows int, features []string, seed int64, testSplit float64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		DatasetName: datasetName,
		Rows:        rows,
		Features:    append([]string(nil), features...),
		Seed:        seed,
		TestSplit:   testSplit,
		CodeVersion: codeVersion,
		Fingerprint: core.HashFields(
			core.Field{Label: "dataset", Value: datasetName},
			core.Field{Label: "rows", Value: rows},
			core.Field{Label: "features", Value: strings.Join(features, ",")},
			core.Field{Label: "seed", Value: seed},
			core.Field{Label: "split", Value: testSplit},
			core.Field{Label: "code", Value: codeVersion},
		),
	}
}
