package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeWikipedia()
	c.normalizeRunner()
	c.normalizeScanner()
	c.normalizeCycles()
	c.normalizeTrigger()
	c.normalizeDaemon()
	c.normalizeLogging()
	c.applyEnvOverrides()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		c.TMDB.RequestsPerSecond = defaultTMDBRequestsPerSec
	}
}

func (c *Config) normalizeWikipedia() {
	c.Wikipedia.BaseURL = strings.TrimRight(strings.TrimSpace(c.Wikipedia.BaseURL), "/")
	if c.Wikipedia.BaseURL == "" {
		c.Wikipedia.BaseURL = defaultWikipediaBaseURL
	}
	c.Wikipedia.UserAgent = strings.TrimSpace(c.Wikipedia.UserAgent)
	if c.Wikipedia.UserAgent == "" {
		c.Wikipedia.UserAgent = defaultWikipediaUserAgent
	}
}

func (c *Config) normalizeRunner() {
	if c.Runner.BatchSize <= 0 {
		c.Runner.BatchSize = defaultBatchSize
	}
	if strings.TrimSpace(c.Runner.MaxRuntime) == "" {
		c.Runner.MaxRuntime = defaultMaxRuntime.String()
	}
	if strings.TrimSpace(c.Runner.SafetyBuffer) == "" {
		c.Runner.SafetyBuffer = defaultSafetyBuffer.String()
	}
	if c.Runner.ItemDelayMS <= 0 {
		c.Runner.ItemDelayMS = int(defaultItemDelay / time.Millisecond)
	}
	if c.Runner.CheckpointInterval <= 0 {
		c.Runner.CheckpointInterval = defaultCheckpointInterval
	}
	if c.Runner.MaxRetries <= 0 {
		c.Runner.MaxRetries = defaultMaxRetries
	}
	if c.Runner.AdapterMaxAttempts <= 0 {
		c.Runner.AdapterMaxAttempts = defaultAdapterMaxAttempts
	}
	if c.Runner.AdapterBackoffMS <= 0 {
		c.Runner.AdapterBackoffMS = int(defaultAdapterBackoff / time.Millisecond)
	}
	if c.Runner.HeartbeatTimeout <= 0 {
		c.Runner.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeScanner() {
	if c.Scanner.PageSize <= 0 {
		c.Scanner.PageSize = defaultScannerPageSize
	}
	if c.Scanner.PublishThreshold <= 0 || c.Scanner.PublishThreshold > 100 {
		c.Scanner.PublishThreshold = defaultPublishThreshold
	}
	if c.Scanner.ReportTopItems <= 0 {
		c.Scanner.ReportTopItems = defaultReportTopItems
	}
	if c.Scanner.StartFromID < 0 {
		c.Scanner.StartFromID = 0
	}
}

func (c *Config) normalizeCycles() {
	if c.Cycles.RotationLength <= 0 {
		c.Cycles.RotationLength = defaultRotationLength
	}
}

func (c *Config) normalizeTrigger() {
	c.Trigger.URL = strings.TrimSpace(c.Trigger.URL)
	if c.Trigger.RequestTimeout <= 0 {
		c.Trigger.RequestTimeout = defaultTriggerTimeout
	}
}

func (c *Config) normalizeDaemon() {
	c.Daemon.ScanSchedule = strings.TrimSpace(c.Daemon.ScanSchedule)
	if c.Daemon.ScanSchedule == "" {
		c.Daemon.ScanSchedule = defaultScanSchedule
	}
	if c.Daemon.RunInterval <= 0 {
		c.Daemon.RunInterval = defaultRunInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// applyEnvOverrides honours the operational environment surface. These win
// over the TOML file so schedulers can vary run parameters per invocation
// without editing configuration on disk.
func (c *Config) applyEnvOverrides() {
	if value, ok := os.LookupEnv("BATCH_SIZE"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
			c.Runner.BatchSize = n
		}
	}
	if value, ok := os.LookupEnv("DRY_RUN"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			c.Runner.DryRun = b
		}
	}
	if value, ok := os.LookupEnv("START_FROM_ID"); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && n >= 0 {
			c.Scanner.StartFromID = n
		}
	}
	if value, ok := os.LookupEnv("MAX_RUNTIME"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
			c.Runner.MaxRuntime = d.String()
		}
	}
	if value, ok := os.LookupEnv("SAFETY_BUFFER"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d >= 0 {
			c.Runner.SafetyBuffer = d.String()
		}
	}
}
