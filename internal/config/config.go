package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
	// RequestsPerSecond paces outbound TMDB calls. TMDB tolerates ~40 req/s;
	// the default stays well under that.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Wikipedia contains configuration for the Wikipedia REST summary API.
type Wikipedia struct {
	Enabled   bool   `toml:"enabled"`
	BaseURL   string `toml:"base_url"`
	UserAgent string `toml:"user_agent"`
}

// Runner contains configuration for bounded batch execution.
type Runner struct {
	BatchSize          int    `toml:"batch_size"`
	MaxRuntime         string `toml:"max_runtime"`
	SafetyBuffer       string `toml:"safety_buffer"`
	ItemDelayMS        int    `toml:"item_delay_ms"`
	CheckpointInterval int    `toml:"checkpoint_interval"`
	MaxRetries         int    `toml:"max_retries"`
	AdapterMaxAttempts int    `toml:"adapter_max_attempts"`
	AdapterBackoffMS   int    `toml:"adapter_backoff_ms"`
	HeartbeatTimeout   int    `toml:"heartbeat_timeout"`
	DryRun             bool   `toml:"dry_run"`
}

// Scanner contains configuration for gap detection.
type Scanner struct {
	PageSize         int   `toml:"page_size"`
	StartFromID      int64 `toml:"start_from_id"`
	PublishThreshold int   `toml:"publish_threshold"`
	ReportTopItems   int   `toml:"report_top_items"`
}

// Cycles contains configuration for the full-catalog sweep tracker.
type Cycles struct {
	RotationLength int `toml:"rotation_length"`
}

// Trigger contains configuration for the external continuation webhook.
type Trigger struct {
	URL            string `toml:"url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Daemon contains configuration for curatord scheduling.
type Daemon struct {
	ScanSchedule string `toml:"scan_schedule"`
	RunInterval  int    `toml:"run_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for curator.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - TMDB: enrichment provider credentials and pacing
//   - Wikipedia: summary fallback provider
//   - Runner: batch sizing, time budget, retries, delays
//   - Scanner: gap detection paging and publish threshold
//   - Cycles: sweep rotation length
//   - Trigger: continuation webhook
//   - Daemon: curatord schedules
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	TMDB      TMDB      `toml:"tmdb"`
	Wikipedia Wikipedia `toml:"wikipedia"`
	Runner    Runner    `toml:"runner"`
	Scanner   Scanner   `toml:"scanner"`
	Cycles    Cycles    `toml:"cycles"`
	Trigger   Trigger   `toml:"trigger"`
	Daemon    Daemon    `toml:"daemon"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/curator/config.toml")
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("curator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite path holding orchestration state.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// CatalogDatabasePath returns the SQLite path holding the entity catalog.
func (c *Config) CatalogDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// MaxRuntime returns the parsed per-run wall-clock budget.
func (c *Config) MaxRuntime() time.Duration {
	d, err := time.ParseDuration(c.Runner.MaxRuntime)
	if err != nil || d <= 0 {
		return defaultMaxRuntime
	}
	return d
}

// SafetyBuffer returns the parsed early-exit margin subtracted from MaxRuntime.
func (c *Config) SafetyBuffer() time.Duration {
	d, err := time.ParseDuration(c.Runner.SafetyBuffer)
	if err != nil || d < 0 {
		return defaultSafetyBuffer
	}
	return d
}

// ItemDelay returns the fixed inter-item delay used for provider rate-limit compliance.
func (c *Config) ItemDelay() time.Duration {
	if c.Runner.ItemDelayMS <= 0 {
		return defaultItemDelay
	}
	return time.Duration(c.Runner.ItemDelayMS) * time.Millisecond
}

// AdapterBackoffBase returns the base wait for adapter retry backoff.
func (c *Config) AdapterBackoffBase() time.Duration {
	if c.Runner.AdapterBackoffMS <= 0 {
		return defaultAdapterBackoff
	}
	return time.Duration(c.Runner.AdapterBackoffMS) * time.Millisecond
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
