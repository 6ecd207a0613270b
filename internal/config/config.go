// Package config loads overseer configuration from a YAML file, merging
// file values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCleanupMaxAge is how long finished job records are retained.
const DefaultCleanupMaxAge = 30 * 24 * time.Hour

// Config holds overseer runtime settings.
type Config struct {
	// MaxParallel is the maximum number of concurrently running tasks.
	MaxParallel int `yaml:"max_parallel"`

	// DataDir is where durable job records and reports are stored.
	DataDir string `yaml:"data_dir"`

	// LogLevel sets console verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// AgentBinary is the external agent executable invoked per task.
	AgentBinary string `yaml:"agent_binary"`

	// AgentArgs are extra arguments passed to every agent invocation.
	AgentArgs []string `yaml:"agent_args"`

	// TaskTimeout bounds a single task run; zero disables the deadline.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// CleanupMaxAge is the retention window for cleanupOldTasks.
	CleanupMaxAge time.Duration `yaml:"cleanup_max_age"`

	// StateCleanupInterval is how often the ephemeral state store sweeps
	// expired entries; zero disables the janitor.
	StateCleanupInterval time.Duration `yaml:"state_cleanup_interval"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxParallel:          1,
		DataDir:              ".overseer",
		LogLevel:             "info",
		AgentBinary:          "agent",
		TaskTimeout:          0,
		CleanupMaxAge:        DefaultCleanupMaxAge,
		StateCleanupInterval: time.Minute,
	}
}

// Load reads configuration from path. A missing file yields the defaults
// without error; a malformed file is an error. Durations are written as Go
// duration strings ("30m", "720h").
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Durations arrive as strings and need explicit parsing.
	type yamlConfig struct {
		MaxParallel          int      `yaml:"max_parallel"`
		DataDir              string   `yaml:"data_dir"`
		LogLevel             string   `yaml:"log_level"`
		AgentBinary          string   `yaml:"agent_binary"`
		AgentArgs            []string `yaml:"agent_args"`
		TaskTimeout          string   `yaml:"task_timeout"`
		CleanupMaxAge        string   `yaml:"cleanup_max_age"`
		StateCleanupInterval string   `yaml:"state_cleanup_interval"`
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if raw.MaxParallel != 0 {
		cfg.MaxParallel = raw.MaxParallel
	}
	if raw.DataDir != "" {
		cfg.DataDir = raw.DataDir
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.AgentBinary != "" {
		cfg.AgentBinary = raw.AgentBinary
	}
	if raw.AgentArgs != nil {
		cfg.AgentArgs = raw.AgentArgs
	}
	if raw.TaskTimeout != "" {
		d, err := time.ParseDuration(raw.TaskTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid task_timeout %q: %w", raw.TaskTimeout, err)
		}
		cfg.TaskTimeout = d
	}
	if raw.CleanupMaxAge != "" {
		d, err := time.ParseDuration(raw.CleanupMaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid cleanup_max_age %q: %w", raw.CleanupMaxAge, err)
		}
		cfg.CleanupMaxAge = d
	}
	if raw.StateCleanupInterval != "" {
		d, err := time.ParseDuration(raw.StateCleanupInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid state_cleanup_interval %q: %w", raw.StateCleanupInterval, err)
		}
		cfg.StateCleanupInterval = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	if c.MaxParallel < 1 {
		return fmt.Errorf("max_parallel must be at least 1, got %d", c.MaxParallel)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout must not be negative")
	}
	if c.CleanupMaxAge < 0 {
		return fmt.Errorf("cleanup_max_age must not be negative")
	}
	return nil
}
