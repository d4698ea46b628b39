// Package model defines stride's configuration tree.
package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the configuration filename inside the data directory.
const ConfigFile = "stride.yaml"

type Config struct {
	User    UserConfig    `yaml:"user"`
	Coach   CoachConfig   `yaml:"coach"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

type UserConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

type CoachConfig struct {
	Model           string `yaml:"model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

type DaemonConfig struct {
	DebounceSec        float64 `yaml:"debounce_sec"`
	ScanIntervalSec    int     `yaml:"scan_interval_sec"`
	ShutdownTimeoutSec int     `yaml:"shutdown_timeout_sec"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no stride.yaml exists yet.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.User.ID == "" {
		c.User.ID = "default"
	}
	if c.Coach.Model == "" {
		c.Coach.Model = "sonar-pro"
	}
	if c.Coach.APIKeyEnv == "" {
		c.Coach.APIKeyEnv = "PERPLEXITY_API_KEY"
	}
	if c.Coach.MaxOutputTokens <= 0 {
		c.Coach.MaxOutputTokens = 2000
	}
	if c.Daemon.DebounceSec <= 0 {
		c.Daemon.DebounceSec = 0.5
	}
	if c.Daemon.ScanIntervalSec <= 0 {
		c.Daemon.ScanIntervalSec = 60
	}
	if c.Daemon.ShutdownTimeoutSec <= 0 {
		c.Daemon.ShutdownTimeoutSec = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Load reads stride.yaml from the data directory. A missing file yields the
// defaults; a file that exists but does not parse is an error.
func Load(dataDir string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, ConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", ConfigFile, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
