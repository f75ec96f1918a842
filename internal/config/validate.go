package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateCycles(); err != nil {
		return err
	}
	if err := c.validateTrigger(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTMDB() error {
	if c.TMDB.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/curator/config.toml"
		}
		return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'curator config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateRunner() error {
	maxRuntime, err := time.ParseDuration(c.Runner.MaxRuntime)
	if err != nil {
		return fmt.Errorf("runner.max_runtime: %w", err)
	}
	buffer, err := time.ParseDuration(c.Runner.SafetyBuffer)
	if err != nil {
		return fmt.Errorf("runner.safety_buffer: %w", err)
	}
	if buffer >= maxRuntime {
		return errors.New("runner.safety_buffer must be smaller than runner.max_runtime")
	}
	if err := ensurePositiveMap(map[string]int{
		"runner.batch_size":           c.Runner.BatchSize,
		"runner.checkpoint_interval":  c.Runner.CheckpointInterval,
		"runner.max_retries":          c.Runner.MaxRetries,
		"runner.adapter_max_attempts": c.Runner.AdapterMaxAttempts,
		"runner.heartbeat_timeout":    c.Runner.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCycles() error {
	if c.Cycles.RotationLength < 1 {
		return errors.New("cycles.rotation_length must be at least 1")
	}
	return nil
}

func (c *Config) validateTrigger() error {
	if c.Trigger.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Trigger.URL)
	if err != nil {
		return fmt.Errorf("trigger.url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("trigger.url must use http or https")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
