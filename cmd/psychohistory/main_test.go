package main

import (
	"path/filepath"
	"testing"

	"psychohistory/adapters/excel"
	"psychohistory/internal/config"
	"psychohistory/internal/errors"
	"psychohistory/internal/features"
	"psychohistory/internal/predictor"
	"psychohistory/internal/testkit"
	"psychohistory/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(args ...string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestFeaturesTrainPredict(t *testing.T) {
	dir := t.TempDir()
	frame := testkit.NewSeshatGenerator(testkit.DefaultSeshatConfig()).Generate()
	require.NoError(t, testkit.WriteWorkbook(frame, filepath.Join(dir, "sc_dataset_2022.xlsx"), excel.DefaultSheet))

	featuresFile := filepath.Join(dir, "features.csv")
	modelsDir := filepath.Join(dir, "models")
	configsDir := filepath.Join(dir, "configs")
	t.Setenv(config.EnvPrefix+"DATA_DIR", dir)
	t.Setenv(config.EnvPrefix+"FEATURES_FILE", featuresFile)
	t.Setenv(config.EnvPrefix+"MODELS_DIR", modelsDir)
	t.Setenv(config.EnvPrefix+"CONFIGS_DIR", configsDir)
	t.Setenv(config.EnvPrefix+"ESTIMATORS", "10")

	require.NoError(t, run("features", "--no-color"))
	assert.FileExists(t, featuresFile)

	require.NoError(t, run("train", "--no-boosting", "--no-color"))
	assert.FileExists(t, filepath.Join(configsDir, training.ManifestFile))
	assert.FileExists(t, filepath.Join(configsDir, training.RunConfigFile))
	assert.NoFileExists(t, training.ArtifactPath(modelsDir, training.BoostRegressorArtifact))

	require.NoError(t, run("verify", "--no-color"))

	out := filepath.Join(dir, "predictions.csv")
	require.NoError(t, run("predict", "-i", featuresFile, "-o", out, "--no-color"))
	pred, err := features.ReadCSV(out)
	require.NoError(t, err)
	assert.Equal(t, []string{predictor.InstabilityKey, predictor.DurationKey}, pred.Columns)
	assert.Len(t, pred.Index, 40)
}

func TestPredictNeedsInput(t *testing.T) {
	err := run("predict", "--no-color")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestVerifyEmptyDir(t *testing.T) {
	t.Setenv(config.EnvPrefix+"MODELS_DIR", t.TempDir())
	err := run("verify", "--no-color")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}
