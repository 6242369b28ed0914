// Package training fits, evaluates and persists the duration regressors and
// instability classifiers, selects the champions and records the run.
package training

import (
	"path/filepath"

	"psychohistory/internal/config"
	"psychohistory/internal/models"
)

// Artifact file stems under the models directory
const (
	ScalerArtifact           = "scaler"
	LinearArtifact           = "linear_regressor"
	ForestRegressorArtifact  = "random_forest_regressor"
	BoostRegressorArtifact   = "xgboost_regressor"
	LogisticArtifact         = "logistic_classifier"
	ForestClassifierArtifact = "random_forest_classifier"
	BoostClassifierArtifact  = "xgboost_classifier"
	BestRegressorArtifact    = "best_regressor"
	BestClassifierArtifact   = "best_classifier"
)

// Files written under the configs directory
const (
	ManifestFile   = "model_config.json"
	RunConfigFile  = "run_config.yaml"
	ReportMarkdown = "training_report.md"
	ReportHTML     = "training_report.html"
)

// Champion names recorded in the manifest
const (
	ChampionLinear       = "linear"
	ChampionRandomForest = "random_forest"
	ChampionLogistic     = "logistic"
)

// Options holds everything a training run needs
type Options struct {
	DatasetName    string
	Features       []string
	DurationTarget string
	CollapseTarget string
	TestSplit      float64
	Seed           int64

	Estimators            int
	ForestRegressorDepth  int
	ForestClassifierDepth int
	BoostRegressorDepth   int
	BoostClassifierDepth  int
	LearningRate          float64
	// Boosting enables the optional gradient-boosted models
	Boosting bool
	Workers  int

	ModelsDir   string
	ConfigsDir  string
	MetricsFile string
	Version     string
}

// OptionsFromConfig maps the training and output sections of cfg
func OptionsFromConfig(cfg *config.Config) Options {
	t := cfg.Training
	return Options{
		DatasetName:           t.DatasetName,
		Features:              append([]string(nil), t.Features...),
		DurationTarget:        t.DurationTarget,
		CollapseTarget:        t.CollapseTarget,
		TestSplit:             t.TestSplit,
		Seed:                  t.Seed,
		Estimators:            t.Estimators,
		ForestRegressorDepth:  t.ForestRegressorDepth,
		ForestClassifierDepth: t.ForestClassifierDepth,
		BoostRegressorDepth:   t.BoostRegressorDepth,
		BoostClassifierDepth:  t.BoostClassifierDepth,
		LearningRate:          t.LearningRate,
		Boosting:              t.Boosting,
		Workers:               t.Workers,
		ModelsDir:             cfg.Output.ModelsDir,
		ConfigsDir:            cfg.Output.ConfigsDir,
		MetricsFile:           cfg.Output.MetricsFile,
		Version:               cfg.Output.Version,
	}
}

// ArtifactPath returns the file of a named artifact in dir
func ArtifactPath(dir, name string) string {
	return filepath.Join(dir, name+models.ArtifactExt)
}
