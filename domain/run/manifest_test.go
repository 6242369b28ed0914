package run

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var features = []string{"PC1_hier", "PC2_hier", "moral_score"}

func TestRunFingerprint_Deterministic(t *testing.T) {
	fp1 := NewRunFingerprint("seshat", 120, features, 42, 0.2, "1.0.0")
	fp2 := NewRunFingerprint("seshat", 120, features, 42, 0.2, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d", fp1.Seed)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint("seshat", 120, features, 42, 0.2, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different dataset", NewRunFingerprint("other", 120, features, 42, 0.2, "1.0.0")},
		{"different rows", NewRunFingerprint("seshat", 121, features, 42, 0.2, "1.0.0")},
		{"different features", NewRunFingerprint("seshat", 120, features[:2], 42, 0.2, "1.0.0")},
		{"different seed", NewRunFingerprint("seshat", 120, features, 7, 0.2, "1.0.0")},
		{"different split", NewRunFingerprint("seshat", 120, features, 42, 0.25, "1.0.0")},
		{"different code", NewRunFingerprint("seshat", 120, features, 42, 0.2, "1.1.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should change for %s", tc.name)
			}
		})
	}
}

func completeManifest() *Manifest {
	fp := NewRunFingerprint("seshat", 10, features, 42, 0.2, "1.0.0")
	m := NewManifest("1.0.0", fp, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
	m.Training = TrainingInfo{TrainSize: 8, TestSize: 2, TestSplit: 0.2, RandomState: 42}
	m.ChampionModels.Regressor = RegressorChampion{Name: "random_forest", TestR2: 0.4, TestMAE: 120}
	m.ChampionModels.Classifier = ClassifierChampion{Name: "logistic", TestAUC: 0.8, TestF1: 0.6}
	return m
}

func TestManifestValidate(t *testing.T) {
	m := completeManifest()
	require.NoError(t, m.Validate())
	assert.Equal(t, "2024-03-01 09:30:00", m.Created)

	m.Training.TestSize = 3
	assert.Error(t, m.Validate())

	m = completeManifest()
	m.ChampionModels.Classifier.Name = ""
	assert.Error(t, m.Validate())
}

func TestManifestWriteTopLevelKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "model_config.json")
	m := completeManifest()
	require.NoError(t, m.Write(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"version", "created", "dataset", "training", "champion_models"} {
		assert.Contains(t, doc, key)
	}

	back, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, back.RunID)
	assert.Equal(t, features, back.Dataset.Features)
	assert.Equal(t, "logistic", back.ChampionModels.Classifier.Name)
}
