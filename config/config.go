// Package config provides configuration management for polystore.
//
// Config file locations (priority order):
//  1. $POLYSTORE_CONFIG
//  2. ./polystore.yaml
//  3. $XDG_CONFIG_HOME/polystore/config.yaml
//  4. ~/.config/polystore/config.yaml
//  5. /etc/polystore/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full file shape.
type Config struct {
	Version   int               `yaml:"version"`
	Retry     RetryConfig       `yaml:"retry"`
	Timeouts  TimeoutConfig     `yaml:"timeouts"`
	Databases map[string]string `yaml:"databases,omitempty"`
	Log       LogConfig         `yaml:"log"`
}

// RetryConfig controls the error-retry loop around commands.
type RetryConfig struct {
	MaxErrorRetries int `yaml:"max_error_retries"`
}

// TimeoutConfig controls command and connection-pool timing.
type TimeoutConfig struct {
	Command   Duration `yaml:"command"`
	IdleClose Duration `yaml:"idle_close"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the given path, creating its directory when needed.
// An empty path writes to the preferred location (XDG config home, then
// ~/.config, then the working directory).
func (c *Config) Save(path string) error {
	if path == "" {
		path = defaultConfigPath()
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Retry.MaxErrorRetries == 0 {
		c.Retry.MaxErrorRetries = 3
	}
	if c.Timeouts.Command == 0 {
		c.Timeouts.Command = Duration(30 * time.Second)
	}
	if c.Timeouts.IdleClose == 0 {
		c.Timeouts.IdleClose = Duration(5 * time.Minute)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// DatabasePath resolves a configured database name to its path. Unknown
// names resolve to themselves so ad-hoc paths keep working.
func (c *Config) DatabasePath(name string) string {
	if path, ok := c.Databases[name]; ok {
		return path
	}
	return name
}
