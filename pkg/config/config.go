// Package config loads Huginn configuration from a YAML file with
// HUGINN_* environment overrides.
//
// Every field has a working default, so a missing config file is not an
// error: Load("") returns the defaults with environment overrides
// applied. Environment variables always win over file values.
//
// Example:
//
//	cfg, err := config.Load("huginn.yaml")
//	if err != nil {
//		log.Fatalf("config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("config: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all Huginn settings.
type Config struct {
	// Database settings.
	Database DatabaseConfig `yaml:"database"`

	// Cache settings for the analysis result cache.
	Cache CacheConfig `yaml:"cache"`

	// Analysis settings.
	Analysis AnalysisConfig `yaml:"analysis"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// DataDir is the directory for the triple store.
	DataDir string `yaml:"data_dir"`
	// InMemory selects the non-persistent storage engine. DataDir is
	// ignored when set.
	InMemory bool `yaml:"in_memory"`
	// HistoryPath is the update history log file. Empty derives
	// <data_dir>/history.log.
	HistoryPath string `yaml:"history_path"`
	// DumpDir is where version snapshots are written. Empty derives
	// <data_dir>/dumps.
	DumpDir string `yaml:"dump_dir"`
	// RoutinesDir is the root for routine YAML files referenced from
	// the history log.
	RoutinesDir string `yaml:"routines_dir"`
}

// CacheConfig holds analysis cache settings.
type CacheConfig struct {
	// Dir is the filesystem cache directory. Empty derives
	// <data_dir>/cache.
	Dir string `yaml:"dir"`
	// InMemory keeps cached analysis results in process memory only.
	InMemory bool `yaml:"in_memory"`
}

// AnalysisConfig holds analyzer settings.
type AnalysisConfig struct {
	// Dataset names the dataset in cache keys.
	Dataset string `yaml:"dataset"`
	// ModelPath points at the predicate classifier model file. Empty
	// disables the learned classifier.
	ModelPath string `yaml:"model_path"`
	// Confidence is the fixed classifier confidence used when no model
	// is configured.
	Confidence float64 `yaml:"confidence"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataDir: "./data",
		},
		Analysis: AnalysisConfig{
			Dataset:    "default",
			Confidence: 0.5,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file; a missing file
// at a non-empty path is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Derive()
	return cfg, nil
}

// applyEnv overrides file values from HUGINN_* environment variables.
func (c *Config) applyEnv() {
	c.Database.DataDir = getEnv("HUGINN_DATA_DIR", c.Database.DataDir)
	c.Database.InMemory = getEnvBool("HUGINN_IN_MEMORY", c.Database.InMemory)
	c.Database.HistoryPath = getEnv("HUGINN_HISTORY_PATH", c.Database.HistoryPath)
	c.Database.DumpDir = getEnv("HUGINN_DUMP_DIR", c.Database.DumpDir)
	c.Database.RoutinesDir = getEnv("HUGINN_ROUTINES_DIR", c.Database.RoutinesDir)
	c.Cache.Dir = getEnv("HUGINN_CACHE_DIR", c.Cache.Dir)
	c.Cache.InMemory = getEnvBool("HUGINN_CACHE_IN_MEMORY", c.Cache.InMemory)
	c.Analysis.Dataset = getEnv("HUGINN_DATASET", c.Analysis.Dataset)
	c.Analysis.ModelPath = getEnv("HUGINN_MODEL_PATH", c.Analysis.ModelPath)
}

// Derive fills path fields that default relative to the data
// directory. Load calls it; callers that build a Config by hand should
// call it before use.
func (c *Config) Derive() {
	if c.Database.HistoryPath == "" {
		c.Database.HistoryPath = filepath.Join(c.Database.DataDir, "history.log")
	}
	if c.Database.DumpDir == "" {
		c.Database.DumpDir = filepath.Join(c.Database.DataDir, "dumps")
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = filepath.Join(c.Database.DataDir, "cache")
	}
}

// Validate checks the configuration for logical errors.
func (c *Config) Validate() error {
	if !c.Database.InMemory && c.Database.DataDir == "" {
		return fmt.Errorf("data_dir required unless in_memory is set")
	}
	if c.Analysis.Dataset == "" {
		return fmt.Errorf("analysis dataset name required")
	}
	if c.Analysis.Confidence < 0 || c.Analysis.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", c.Analysis.Confidence)
	}
	return nil
}

// String returns a loggable summary of the configuration.
func (c *Config) String() string {
	storage := c.Database.DataDir
	if c.Database.InMemory {
		storage = "in-memory"
	}
	return fmt.Sprintf("Config{Storage: %s, Dataset: %s, History: %s}",
		storage, c.Analysis.Dataset, c.Database.HistoryPath)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
