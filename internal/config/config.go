// Package config loads runtime configuration for passguard.
//
// Sources and precedence: built-in defaults, overlaid by an optional
// YAML file at <vault dir>/config.yaml. The file is created with the
// defaults on vault initialization so the knobs are discoverable.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the vault directory.
const FileName = "config.yaml"

// Session timeout bounds in seconds.
const (
	MinSessionTimeout = 30
	MaxSessionTimeout = 3600
)

// ErrInvalidTimeout indicates a session timeout outside the allowed range.
var ErrInvalidTimeout = errors.New("config: session timeout must be between 30 and 3600 seconds")

// Config holds the tunable behavior of the vault.
type Config struct {
	// SessionTimeoutSeconds is the idle time after which an unlocked
	// session locks itself. Range 30-3600.
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds"`

	// MaxAttempts is the number of consecutive failed authentication
	// attempts before lockout.
	MaxAttempts int `yaml:"max_attempts"`

	// LockoutCooldownSeconds is how long authentication stays locked
	// out after MaxAttempts consecutive failures.
	LockoutCooldownSeconds int `yaml:"lockout_cooldown_seconds"`
}

// Default returns the documented default configuration: 3 minute idle
// timeout, 3 attempts, 5 minute lockout cooldown.
func Default() *Config {
	return &Config{
		SessionTimeoutSeconds:  180,
		MaxAttempts:            3,
		LockoutCooldownSeconds: 300,
	}
}

// Load reads the config file at path, overlaying it onto the defaults.
// A missing file is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}
	return nil
}

// Validate checks the configured values against their allowed ranges.
func (c *Config) Validate() error {
	if c.SessionTimeoutSeconds < MinSessionTimeout || c.SessionTimeoutSeconds > MaxSessionTimeout {
		return ErrInvalidTimeout
	}
	if c.MaxAttempts < 1 {
		return errors.New("config: max_attempts must be at least 1")
	}
	if c.LockoutCooldownSeconds < 1 {
		return errors.New("config: lockout_cooldown_seconds must be at least 1")
	}
	return nil
}

// SessionTimeout returns the session timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// LockoutCooldown returns the lockout cooldown as a duration.
func (c *Config) LockoutCooldown() time.Duration {
	return time.Duration(c.LockoutCooldownSeconds) * time.Second
}
