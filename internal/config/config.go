// Package config provides server configuration loading for presenced.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ActivityMode selects how currently_active is derived from a status row.
type ActivityMode string

const (
	// ActivitySimple reports currently_active whenever the stored state is online.
	ActivitySimple ActivityMode = "simple"
	// ActivityThreshold additionally requires last_active_ago to be within the
	// presence timeout, and downgrades stale online rows to unavailable.
	ActivityThreshold ActivityMode = "threshold"
)

// Config holds the presenced server configuration.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string `yaml:"listen_addr"`
	// DataDir is the directory holding the SQLite database.
	DataDir string `yaml:"data_dir"`
	// Domain is the homeserver domain used to mint event IDs.
	Domain string `yaml:"domain"`
	// PresenceTimeoutMS is the staleness window in milliseconds after which a
	// stored online state is reported as unavailable.
	PresenceTimeoutMS int64 `yaml:"presence_timeout_ms"`
	// ActivityMode selects the currently_active derivation variant.
	ActivityMode ActivityMode `yaml:"activity_mode"`
	// LogLevel is the minimum level emitted (DEBUG, INFO, WARN, ERROR).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:        ":8448",
		DataDir:           "./data",
		Domain:            "localhost",
		PresenceTimeoutMS: 30_000,
		ActivityMode:      ActivityThreshold,
		LogLevel:          "INFO",
	}
}

// Load reads configuration from an optional YAML file and applies
// environment overrides. An empty path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with PRESENCED_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("PRESENCED_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("PRESENCED_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("PRESENCED_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("PRESENCED_PRESENCE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.PresenceTimeoutMS = ms
		}
	}
	if v := os.Getenv("PRESENCED_ACTIVITY_MODE"); v != "" {
		c.ActivityMode = ActivityMode(v)
	}
	if v := os.Getenv("PRESENCED_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if c.PresenceTimeoutMS <= 0 {
		return fmt.Errorf("presence_timeout_ms must be positive, got %d", c.PresenceTimeoutMS)
	}
	switch c.ActivityMode {
	case ActivitySimple, ActivityThreshold:
	default:
		return fmt.Errorf("activity_mode must be %q or %q, got %q",
			ActivitySimple, ActivityThreshold, c.ActivityMode)
	}
	return nil
}
