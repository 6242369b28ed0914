package config

import (
	"os"
	"path/filepath"
	"testing"

	"psychohistory/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "exportdat_share", cfg.Data.Sheet)
	assert.Equal(t, int64(42), cfg.Training.Seed)
	assert.Equal(t, 0.2, cfg.Training.TestSplit)
	assert.Equal(t, DefaultFeatures, cfg.Training.Features)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"SEED", "7")
	t.Setenv(EnvPrefix+"BOOSTING", "false")
	t.Setenv(EnvPrefix+"FEATURES", "PC1_hier, PC2_hier ,moral_score")
	t.Setenv(EnvPrefix+"MIN_COL_COVERAGE", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Training.Seed)
	assert.False(t, cfg.Training.Boosting)
	assert.Equal(t, []string{"PC1_hier", "PC2_hier", "moral_score"}, cfg.Training.Features)
	assert.Equal(t, 0.5, cfg.Reduction.MinColCoverage)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	body := "training:\n  estimators: 25\n  test_split: 0.25\nreduction:\n  components: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv(EnvPrefix+"ESTIMATORS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Training.Estimators)
	assert.Equal(t, 0.25, cfg.Training.TestSplit)
	assert.Equal(t, 2, cfg.Reduction.Components)
	// untouched sections keep their defaults
	assert.Equal(t, "sc_dataset*.xlsx", cfg.Data.Pattern)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(EnvPrefix+"TEST_SPLIT", "1.5")

	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "run_config.yaml")
	cfg := Default()
	cfg.Training.Estimators = 12

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Training.Estimators)
	assert.Equal(t, cfg.Training.Features, loaded.Training.Features)
}
