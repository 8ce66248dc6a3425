package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/msdrg/internal/catalog"
)

// Config holds all runtime configuration for a drggroup run.
type Config struct {
	DataDir   string
	Files     catalog.Files
	DSN       string
	LogFormat string // "text" or "json"
	LogLevel  string
	Input     string
	Output    string // CSV or Parquet path; empty writes results to Postgres
	Workers   int
	RunLabel  string
	Force     bool // regroup an input already recorded as complete
	Verbose   bool // include trace notes in batch output
}

// yamlConfig is the on-disk YAML structure. Zero values leave flag values
// untouched.
type yamlConfig struct {
	DataDir  string        `yaml:"data_dir"`
	Files    catalog.Files `yaml:"files"`
	Workers  int           `yaml:"workers"`
	LogLevel string        `yaml:"log_level"`
	RunLabel string        `yaml:"run_label"`
}

// Default returns a Config with the standard definition file names.
func Default() Config {
	return Config{
		DataDir:   "data",
		Files:     catalog.DefaultFiles,
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// LoadFromFile reads a YAML config file and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if yc.DataDir != "" {
		c.DataDir = yc.DataDir
	}
	if yc.Files.DRGs != "" {
		c.Files.DRGs = yc.Files.DRGs
	}
	if yc.Files.Diagnoses != "" {
		c.Files.Diagnoses = yc.Files.Diagnoses
	}
	if yc.Files.CCs != "" {
		c.Files.CCs = yc.Files.CCs
	}
	if len(yc.Files.MDCLogic) > 0 {
		c.Files.MDCLogic = yc.Files.MDCLogic
	}
	if yc.Workers != 0 {
		c.Workers = yc.Workers
	}
	if yc.LogLevel != "" {
		c.LogLevel = yc.LogLevel
	}
	if yc.RunLabel != "" {
		c.RunLabel = yc.RunLabel
	}
	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("unknown log level %q in config", c.LogLevel)
		}
	}
	return nil
}

// Validate checks that the definition files directory is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("--data-dir is required")
	}
	st, err := os.Stat(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir not accessible: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", c.DataDir)
	}
	return c.validateSettings()
}

// ValidateBatch checks the catalog settings plus the batch input and a result
// destination: an output file or a DSN.
func (c *Config) ValidateBatch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Input == "" {
		return fmt.Errorf("--input is required")
	}
	if _, err := os.Stat(c.Input); err != nil {
		return fmt.Errorf("input not accessible: %w", err)
	}
	if c.Output == "" && c.DSN == "" {
		return fmt.Errorf("--output, --dsn or DATABASE_URL is required")
	}
	return nil
}

// ValidateWithDSN checks the catalog settings and the DSN.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}
