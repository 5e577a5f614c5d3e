package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tabforest/internal/errors"
)

type Config struct {
	Training TrainingConfig `yaml:"training"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TrainingConfig struct {
	TestRatio        float64 `yaml:"test_ratio"`
	MinRows          int     `yaml:"min_rows"`
	ForestSeed       int64   `yaml:"forest_seed"`
	Stratified       bool    `yaml:"stratified"`
	ImportanceTrials int     `yaml:"importance_trials"`
}

type AnalysisConfig struct {
	MinRows int     `yaml:"min_rows"`
	Alpha   float64 `yaml:"alpha"`
}

type SessionConfig struct {
	PredictionHistory int `yaml:"prediction_history"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Training: TrainingConfig{
			TestRatio:        0.2,
			MinRows:          10,
			ForestSeed:       42,
			Stratified:       false,
			ImportanceTrials: 1,
		},
		Analysis: AnalysisConfig{
			MinRows: 3,
			Alpha:   0.05,
		},
		Session: SessionConfig{
			PredictionHistory: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error; an empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(errors.ConfigInvalid("malformed config file"), "failed to parse %s: %v", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TABFOREST_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("TABFOREST_IMPORTANCE_TRIALS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("TABFOREST_IMPORTANCE_TRIALS must be an integer, got %q", v)
		}
		c.Training.ImportanceTrials = n
	}
	if v := os.Getenv("TABFOREST_STRATIFIED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.ConfigInvalid("TABFOREST_STRATIFIED must be a boolean, got %q", v)
		}
		c.Training.Stratified = b
	}
	if v := os.Getenv("TABFOREST_HISTORY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.ConfigInvalid("TABFOREST_HISTORY must be an integer, got %q", v)
		}
		c.Session.PredictionHistory = n
	}
	return nil
}

// MinTrainingRows is the smallest training.min_rows accepted; the
// train/test splitter refuses fewer rows anyway.
const MinTrainingRows = 10

func (c *Config) Validate() error {
	if c.Training.TestRatio <= 0 || c.Training.TestRatio >= 1 {
		return errors.ConfigInvalid("training.test_ratio must be between 0 and 1, got %v", c.Training.TestRatio)
	}
	if c.Training.MinRows < MinTrainingRows {
		return errors.ConfigInvalid("training.min_rows must be at least %d, got %d", MinTrainingRows, c.Training.MinRows)
	}
	if c.Training.ImportanceTrials < 1 {
		return errors.ConfigInvalid("training.importance_trials must be at least 1, got %d", c.Training.ImportanceTrials)
	}
	if c.Analysis.MinRows < 1 {
		return errors.ConfigInvalid("analysis.min_rows must be positive, got %d", c.Analysis.MinRows)
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return errors.ConfigInvalid("analysis.alpha must be between 0 and 1, got %v", c.Analysis.Alpha)
	}
	if c.Session.PredictionHistory < 1 {
		return errors.ConfigInvalid("session.prediction_history must be positive, got %d", c.Session.PredictionHistory)
	}
	return nil
}
