// Package config reads the YAML configuration of the sentsim command.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/sentsim/metrics"
	"github.com/YuminosukeSato/sentsim/pkg/errors"
	"github.com/YuminosukeSato/sentsim/pkg/log"
	"github.com/YuminosukeSato/sentsim/similarity"
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Config is the sentsim configuration document.
type Config struct {
	Data     Data     `yaml:"data"`
	Search   Search   `yaml:"search"`
	Model    Model    `yaml:"model"`
	Tracking Tracking `yaml:"tracking"`
	Log      Log      `yaml:"log"`
}

// Data describes the feature tables.
type Data struct {
	Train        string   `yaml:"train"`
	Test         string   `yaml:"test,omitempty"`
	LabelColumn  string   `yaml:"label_column"`
	Features     []string `yaml:"features,omitempty"`
	TestFraction float64  `yaml:"test_fraction"`
	Stratify     bool     `yaml:"stratify"`
}

// Search configures the parameter search.
type Search struct {
	NumFolds    int                      `yaml:"num_folds"`
	Scoring     string                   `yaml:"scoring"`
	Seed        int                      `yaml:"seed"`
	NJobs       int                      `yaml:"n_jobs"`
	Verbose     int                      `yaml:"verbose"`
	Refit       bool                     `yaml:"refit"`
	ParamGrid   map[string][]interface{} `yaml:"param_grid"`
	ResultsPath string                   `yaml:"results_path"`
	PlotPath    string                   `yaml:"plot_path,omitempty"`
}

// Model configures where weights live and how a fresh classifier is built.
type Model struct {
	WeightsPath string                 `yaml:"weights_path"`
	Params      map[string]interface{} `yaml:"params,omitempty"`
}

// Tracking configures the run database. Empty Path disables tracking.
type Tracking struct {
	Path string `yaml:"path,omitempty"`
}

// Log mirrors log.Options.
type Log struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Data: Data{
			Train:        "data/train.csv",
			LabelColumn:  "is_duplicate",
			TestFraction: 0.2,
			Stratify:     true,
		},
		Search: Search{
			NumFolds: 5,
			Scoring:  "accuracy",
			Seed:     7,
			NJobs:    -1,
			ParamGrid: map[string][]interface{}{
				"max_depth":     {4, 6},
				"learning_rate": {0.1, 0.3},
				"n_estimators":  {100},
			},
			ResultsPath: similarity.DefaultResultsPath,
		},
		Model: Model{WeightsPath: "data/xgb_model.json"},
		Log:   Log{Level: "info", Format: "console"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening config file: %s", path)
	}
	defer f.Close()

	c, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	log.GetLoggerWithName("config").Debug("Config loaded", log.PathKey, path)
	return c, nil
}

// Read decodes a YAML document over Default and validates it. Unknown keys
// are rejected.
func Read(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	c := Default()
	if len(bytes.TrimSpace(b)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		grid := c.Search.ParamGrid
		c.Search.ParamGrid = nil
		if err := dec.Decode(c); err != nil {
			return nil, errors.Wrap(err, "error unmarshalling config")
		}
		if c.Search.ParamGrid == nil {
			c.Search.ParamGrid = grid
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c to path, creating parent directories.
func Save(path string, c *Config) error {
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return errors.Wrapf(err, "failed to create dir for %s", path)
	}
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", path)
	}
	return nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.Data.LabelColumn == "" {
		return errors.NewValidationError("data.label_column", "must not be empty", c.Data.LabelColumn)
	}
	if !(c.Data.TestFraction > 0 && c.Data.TestFraction < 1) {
		return errors.NewValidationError("data.test_fraction", "must be in (0, 1)", c.Data.TestFraction)
	}
	if c.Search.NumFolds < 2 {
		return errors.NewValidationError("search.num_folds", "must be at least 2", c.Search.NumFolds)
	}
	if _, err := metrics.GetScorer(c.Search.Scoring); err != nil {
		return err
	}
	if c.Search.NJobs == 0 || c.Search.NJobs < -1 {
		return errors.NewValidationError("search.n_jobs", "must be -1 or positive", c.Search.NJobs)
	}
	for name, values := range c.Search.ParamGrid {
		if len(values) == 0 {
			return errors.NewValidationError("search.param_grid."+name, "must list at least one value", values)
		}
	}
	if c.Search.ResultsPath == "" {
		return errors.NewValidationError("search.results_path", "must not be empty", c.Search.ResultsPath)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return errors.NewValidationError("log.format", "must be json or console", c.Log.Format)
	}
	return nil
}

// SearchOptions converts the search section for similarity.FromParams.
func (c *Config) SearchOptions() similarity.SearchOptions {
	return similarity.SearchOptions{
		NumFolds:    c.Search.NumFolds,
		ParamGrid:   c.Search.ParamGrid,
		Scoring:     c.Search.Scoring,
		Seed:        c.Search.Seed,
		NJobs:       c.Search.NJobs,
		Verbose:     c.Search.Verbose,
		Refit:       c.Search.Refit,
		ResultsPath: c.Search.ResultsPath,
		PlotPath:    c.Search.PlotPath,
		WeightsPath: c.Model.WeightsPath,
	}
}

// LogOptions converts the log section for log.Setup.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}
