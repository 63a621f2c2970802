package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const envBaseURL = "SCRAPE_JOBS_URL"

// Config is the scrapectl configuration file.
type Config struct {
	BaseURL               string `toml:"base_url"`
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	ReconcileAfterSeconds int    `toml:"reconcile_after_seconds"`
	DefaultMaxResults     int    `toml:"default_max_results"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		BaseURL:               "http://localhost:8000",
		TimeoutSeconds:        30,
		ReconcileAfterSeconds: 10,
		DefaultMaxResults:     15,
	}
}

// Timeout is the per-request HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReconcileAfter is how long a watcher waits without events before polling the job.
func (c *Config) ReconcileAfter() time.Duration {
	return time.Duration(c.ReconcileAfterSeconds) * time.Second
}

// ConfigPath returns ~/.config/scrape-jobs/config.toml.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "scrape-jobs", "config.toml"), nil
}

// LoadConfig reads the config at path, creating it with defaults if it doesn't exist.
// An empty path means ConfigPath().
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := SaveConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		var fromFile Config
		if err := toml.Unmarshal(data, &fromFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.merge(fromFile)
	}

	// Environment wins over the file
	if u := os.Getenv(envBaseURL); u != "" {
		cfg.BaseURL = u
	}
	return cfg, nil
}

// merge takes every non-zero value from other.
func (c *Config) merge(other Config) {
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.TimeoutSeconds > 0 {
		c.TimeoutSeconds = other.TimeoutSeconds
	}
	if other.ReconcileAfterSeconds > 0 {
		c.ReconcileAfterSeconds = other.ReconcileAfterSeconds
	}
	if other.DefaultMaxResults > 0 {
		c.DefaultMaxResults = other.DefaultMaxResults
	}
}

// SaveConfig writes cfg as TOML, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
