package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"psychohistory/domain/core"
)

// CreatedLayout is the timestamp format of the manifest's created field
const CreatedLayout = "2006-01-02 15:04:05"

// Manifest records what a training run produced. The top-level keys
// version, created, dataset, training and champion_models are read by
// downstream tooling and must not be renamed.
type Manifest struct {
	Version        string         `json:"version"`
	Created        string         `json:"created"`
	RunID          core.RunID     `json:"run_id"`
	Fingerprint    core.Hash      `json:"fingerprint"`
	Dataset        DatasetInfo    `json:"dataset"`
	Training       TrainingInfo   `json:"training"`
	ChampionModels ChampionModels `json:"champion_models"`
	Models         []ModelSummary `json:"models"`
}

// DatasetInfo describes the training table
type DatasetInfo struct {
	Name         string   `json:"name"`
	NPolities    int      `json:"n_polities"`
	NFeatures    int      `json:"n_features"`
	Features     []string `json:"features"`
	CollapseRate float64  `json:"collapse_rate"`
}

// TrainingInfo describes the split
type TrainingInfo struct {
	TrainSize   int     `json:"train_size"`
	TestSize    int     `json:"test_size"`
	TestSplit   float64 `json:"test_split"`
	RandomState int64   `json:"random_state"`
}

// ChampionModels names the production model per task
type ChampionModels struct {
	Regressor  RegressorChampion  `json:"regressor"`
	Classifier ClassifierChampion `json:"classifier"`
}

// RegressorChampion is the best duration model
type RegressorChampion struct {
	Name    string  `json:"name"`
	TestR2  float64 `json:"test_r2"`
	TestMAE float64 `json:"test_mae"`
}

// ClassifierChampion is the best instability model
type ClassifierChampion struct {
	Name    string  `json:"name"`
	TestAUC float64 `json:"test_auc"`
	TestF1  float64 `json:"test_f1"`
}

// ModelSummary is one evaluated (or skipped) model
type ModelSummary struct {
	Name      string             `json:"name"`
	Task      string             `json:"task"`
	File      string             `json:"file,omitempty"`
	Available bool               `json:"available"`
	Status    string             `json:"status"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// NewManifest starts a manifest for a run
func NewManifest(version string, fp RunFingerprint, createdAt time.Time) *Manifest {
	return &Manifest{
		Version:     version,
		Created:     createdAt.Format(CreatedLayout),
		RunID:       core.NewRunID(),
		Fingerprint: fp.Fingerprint,
		Dataset: DatasetInfo{
			Name:      fp.DatasetName,
			NPolities: fp.Rows,
			NFeatures: len(fp.Features),
			Features:  append([]string(nil), fp.Features...),
		},
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest: version cannot be empty")
	}
	if core.ID(m.RunID).IsEmpty() {
		return fmt.Errorf("manifest: run_id cannot be empty")
	}
	if m.Dataset.NFeatures != len(m.Dataset.Features) {
		return fmt.Errorf("manifest: n_features=%d but %d feature names", m.Dataset.NFeatures, len(m.Dataset.Features))
	}
	if m.Training.TrainSize+m.Training.TestSize != m.Dataset.NPolities {
		return fmt.Errorf("manifest: split sizes %d+%d do not add up to %d rows",
			m.Training.TrainSize, m.Training.TestSize, m.Dataset.NPolities)
	}
	if m.ChampionModels.Regressor.Name == "" || m.ChampionModels.Classifier.Name == "" {
		return fmt.Errorf("manifest: champion models must be named")
	}
	return nil
}

// Write stores the manifest as indented JSON, creating the directory
func (m *Manifest) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadManifest loads a manifest written by Write
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
