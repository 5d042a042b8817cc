// Package config holds remotetask configuration: controller timing, server
// settings, and the database holding stored connections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ControllerConfig tunes the lifecycle controller of each task attempt.
type ControllerConfig struct {
	// PollInterval is the fixed wait between status inspections (default 10s).
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxInspectRetries bounds consecutive transient inspect failures
	// before the attempt fails (default 3).
	MaxInspectRetries int `yaml:"max_inspect_retries"`

	// StopTimeout bounds the wait for the remote service to acknowledge a
	// stop request after cancellation (default 30s).
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// ServerConfig holds configuration for the remotetask HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`             // Listen address (default ":8090")
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for running attempts on shutdown
	RetainFinished  int           `yaml:"retain_finished"`  // Finished attempts kept in memory (default 1000)
}

// Config is the full remotetask configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat  string           `yaml:"log_format"` // Log format: text, json
	DBPath     string           `yaml:"db_path"`    // SQLite connection store (default ~/.remotetask/remotetask.db, ":memory:" for testing)
	Controller ControllerConfig `yaml:"controller"`
	Server     ServerConfig     `yaml:"server"`
}

// DefaultControllerConfig returns sensible defaults for long-running jobs.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		PollInterval:      10 * time.Second,
		MaxInspectRetries: 3,
		StopTimeout:       30 * time.Second,
	}
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8090",
		ShutdownTimeout: time.Minute,
		RetainFinished:  1000,
	}
}

// Default returns the complete default configuration.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Controller: DefaultControllerConfig(),
		Server:     DefaultServerConfig(),
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// non-empty) and then with REMOTETASK_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("REMOTETASK_LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("REMOTETASK_LOG_FORMAT"); ok {
		c.LogFormat = v
	}
	if v, ok := lookup("REMOTETASK_DB"); ok {
		c.DBPath = v
	}
	if v, ok := lookup("REMOTETASK_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("REMOTETASK_POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REMOTETASK_POLL_INTERVAL: %w", err)
		}
		c.Controller.PollInterval = d
	}
	if v, ok := lookup("REMOTETASK_MAX_INSPECT_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REMOTETASK_MAX_INSPECT_RETRIES: %w", err)
		}
		c.Controller.MaxInspectRetries = n
	}
	if v, ok := lookup("REMOTETASK_RETAIN_FINISHED"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REMOTETASK_RETAIN_FINISHED: %w", err)
		}
		c.Server.RetainFinished = n
	}
	return nil
}

// Validate rejects settings the controller cannot run with.
func (c Config) Validate() error {
	if c.Controller.PollInterval <= 0 {
		return fmt.Errorf("controller.poll_interval must be positive, got %s", c.Controller.PollInterval)
	}
	if c.Controller.MaxInspectRetries < 0 {
		return fmt.Errorf("controller.max_inspect_retries must be >= 0, got %d", c.Controller.MaxInspectRetries)
	}
	if c.Controller.StopTimeout <= 0 {
		return fmt.Errorf("controller.stop_timeout must be positive, got %s", c.Controller.StopTimeout)
	}
	if c.Server.RetainFinished < 1 {
		return fmt.Errorf("server.retain_finished must be positive, got %d", c.Server.RetainFinished)
	}
	return nil
}
