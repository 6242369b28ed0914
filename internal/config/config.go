package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"psychohistory/internal/errors"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the pipeline reads
const EnvPrefix = "PSYCHOHISTORY_"

// DefaultFeatures is the ordered predictor list of the production models
var DefaultFeatures = []string{
	"PC1_hier", "PC2_hier", "PC3_hier", "PC1_squared", "PC1_x_PC2",
	"total_warfare_tech", "weapons_count", "armor_count", "cavalry_count",
	"moral_score", "legit_score", "ideol_score",
}

// Config represents the complete pipeline configuration
type Config struct {
	Data      DataConfig      `yaml:"data" validate:"required"`
	Reduction ReductionConfig `yaml:"reduction" validate:"required"`
	Training  TrainingConfig  `yaml:"training" validate:"required"`
	Output    OutputConfig    `yaml:"output" validate:"required"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DataConfig locates the Seshat workbook
type DataConfig struct {
	Dir          string `yaml:"dir" validate:"required"`
	Pattern      string `yaml:"pattern" validate:"required"`
	Sheet        string `yaml:"sheet" validate:"required"`
	Workbook     string `yaml:"workbook"`
	FeaturesFile string `yaml:"features_file" validate:"required"`
}

// ReductionConfig holds the PCA coverage thresholds
type ReductionConfig struct {
	Components     int      `yaml:"components" validate:"gte=1"`
	MinColCoverage float64  `yaml:"min_col_coverage" validate:"gte=0,lte=1"`
	MinRowCoverage float64  `yaml:"min_row_coverage" validate:"gte=0,lte=1"`
	Indicators     []string `yaml:"indicators"`
}

// TrainingConfig holds split, seed and model hyperparameters
type TrainingConfig struct {
	DatasetName           string   `yaml:"dataset_name" validate:"required"`
	Features              []string `yaml:"features" validate:"min=1,dive,required"`
	DurationTarget        string   `yaml:"duration_target" validate:"required"`
	CollapseTarget        string   `yaml:"collapse_target" validate:"required"`
	TestSplit             float64  `yaml:"test_split" validate:"gt=0,lt=1"`
	Seed                  int64    `yaml:"seed"`
	Estimators            int      `yaml:"estimators" validate:"gte=1"`
	ForestRegressorDepth  int      `yaml:"forest_regressor_depth" validate:"gte=1"`
	ForestClassifierDepth int      `yaml:"forest_classifier_depth" validate:"gte=1"`
	BoostRegressorDepth   int      `yaml:"boost_regressor_depth" validate:"gte=1"`
	BoostClassifierDepth  int      `yaml:"boost_classifier_depth" validate:"gte=1"`
	LearningRate          float64  `yaml:"learning_rate" validate:"gt=0,lte=1"`
	Boosting              bool     `yaml:"boosting"`
	Workers               int      `yaml:"workers" validate:"gte=0"`
}

// OutputConfig holds artifact locations
type OutputConfig struct {
	ModelsDir   string `yaml:"models_dir" validate:"required"`
	ConfigsDir  string `yaml:"configs_dir" validate:"required"`
	MetricsFile string `yaml:"metrics_file"`
	Version     string `yaml:"version" validate:"required"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	NoColor bool   `yaml:"no_color"`
}

var validate = validator.New()

// Default returns the configuration the production models were built with
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir:          "data",
			Pattern:      "sc_dataset*.xlsx",
			Sheet:        "exportdat_share",
			FeaturesFile: filepath.Join("notebooks", "models", "equinox_with_religion.csv"),
		},
		Reduction: ReductionConfig{
			Components:     3,
			MinColCoverage: 0.6,
			MinRowCoverage: 0.6,
		},
		Training: TrainingConfig{
			DatasetName:           "Seshat Equinox 2022 + Religion",
			Features:              append([]string(nil), DefaultFeatures...),
			DurationTarget:        "duration_years",
			CollapseTarget:        "collapsed",
			TestSplit:             0.2,
			Seed:                  42,
			Estimators:            100,
			ForestRegressorDepth:  7,
			ForestClassifierDepth: 5,
			BoostRegressorDepth:   5,
			BoostClassifierDepth:  4,
			LearningRate:          0.1,
			Boosting:              true,
		},
		Output: OutputConfig{
			ModelsDir:  filepath.Join("production", "models"),
			ConfigsDir: filepath.Join("production", "configs"),
			Version:    "1.0.0",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence, then validates it.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks struct constraints and returns a CONFIG_INVALID error
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrap(err, "configuration validation failed"))
	}
	return nil
}

// Save writes the configuration as YAML, creating the parent directory
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config dir for %s", path)
	}
	b, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

func loadFile(path string, config *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound("config file " + path)
		}
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "parse config %s", path))
	}
	return nil
}

func applyEnv(config *Config) {
	config.Data.Dir = getEnvOrDefault("DATA_DIR", config.Data.Dir)
	config.Data.Pattern = getEnvOrDefault("DATA_PATTERN", config.Data.Pattern)
	config.Data.Sheet = getEnvOrDefault("SHEET", config.Data.Sheet)
	config.Data.Workbook = getEnvOrDefault("WORKBOOK", config.Data.Workbook)
	config.Data.FeaturesFile = getEnvOrDefault("FEATURES_FILE", config.Data.FeaturesFile)

	config.Reduction.Components = getEnvIntOrDefault("PCA_COMPONENTS", config.Reduction.Components)
	config.Reduction.MinColCoverage = getEnvFloatOrDefault("MIN_COL_COVERAGE", config.Reduction.MinColCoverage)
	config.Reduction.MinRowCoverage = getEnvFloatOrDefault("MIN_ROW_COVERAGE", config.Reduction.MinRowCoverage)
	config.Reduction.Indicators = getEnvListOrDefault("INDICATORS", config.Reduction.Indicators)

	config.Training.DatasetName = getEnvOrDefault("DATASET_NAME", config.Training.DatasetName)
	config.Training.Features = getEnvListOrDefault("FEATURES", config.Training.Features)
	config.Training.TestSplit = getEnvFloatOrDefault("TEST_SPLIT", config.Training.TestSplit)
	config.Training.Seed = int64(getEnvIntOrDefault("SEED", int(config.Training.Seed)))
	config.Training.Estimators = getEnvIntOrDefault("ESTIMATORS", config.Training.Estimators)
	config.Training.LearningRate = getEnvFloatOrDefault("LEARNING_RATE", config.Training.LearningRate)
	config.Training.Boosting = getEnvBoolOrDefault("BOOSTING", config.Training.Boosting)
	config.Training.Workers = getEnvIntOrDefault("WORKERS", config.Training.Workers)

	config.Output.ModelsDir = getEnvOrDefault("MODELS_DIR", config.Output.ModelsDir)
	config.Output.ConfigsDir = getEnvOrDefault("CONFIGS_DIR", config.Output.ConfigsDir)
	config.Output.MetricsFile = getEnvOrDefault("METRICS_FILE", config.Output.MetricsFile)

	config.Logging.Level = getEnvOrDefault("LOG_LEVEL", config.Logging.Level)
	config.Logging.NoColor = getEnvBoolOrDefault("NO_COLOR", config.Logging.NoColor)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvListOrDefault reads a comma-separated list
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
