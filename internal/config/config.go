// Package config loads server configuration from YAML with fallback to
// defaults for every unset field.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// APIKey guards the ingestion endpoints. Empty disables the check.
	APIKey string `yaml:"api_key"`
	// MaxPageSize caps query page sizes.
	MaxPageSize int `yaml:"max_page_size"`
	// DefaultLimit is the page size used when a query passes none.
	DefaultLimit int `yaml:"default_limit"`
	// EnableMoments turns on skewness and kurtosis aggregates.
	EnableMoments bool `yaml:"enable_moments"`
	// MaxImportMB caps ingestion source size in megabytes.
	MaxImportMB int64 `yaml:"max_import_mb"`
	// RateLimit is sustained requests per second per server.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the burst allowance above RateLimit.
	RateBurst int `yaml:"rate_burst"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Addr:         ":8080",
		DBPath:       "./gamedex.db",
		MaxPageSize:  100,
		DefaultLimit: 10,
		MaxImportMB:  150,
		RateLimit:    50,
		RateBurst:    100,
		LogLevel:     "info",
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("max_page_size must be at least 1, got %d", c.MaxPageSize)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxPageSize {
		return fmt.Errorf("default_limit must be in [1, %d], got %d", c.MaxPageSize, c.DefaultLimit)
	}
	if c.MaxImportMB < 1 {
		return fmt.Errorf("max_import_mb must be at least 1, got %d", c.MaxImportMB)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive, got %g", c.RateLimit)
	}
	return nil
}
