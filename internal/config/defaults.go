package config

import "time"

const (
	defaultDataDir            = "~/.local/share/curator/data"
	defaultLogDir             = "~/.local/share/curator/logs"
	defaultTMDBBaseURL        = "https://api.themoviedb.org/3"
	defaultTMDBLanguage       = "en-US"
	defaultTMDBRequestsPerSec = 20.0
	defaultWikipediaBaseURL   = "https://en.wikipedia.org/api/rest_v1"
	defaultWikipediaUserAgent = "Curator/0.1 (catalog enrichment)"
	defaultBatchSize          = 100
	defaultCheckpointInterval = 10
	defaultMaxRetries         = 3
	defaultAdapterMaxAttempts = 5
	defaultHeartbeatTimeout   = 300
	defaultScannerPageSize    = 500
	defaultPublishThreshold   = 70
	defaultReportTopItems     = 100
	defaultRotationLength     = 9
	defaultTriggerTimeout     = 10
	defaultScanSchedule       = "0 3 * * *"
	defaultRunInterval        = 300
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	defaultMaxRuntime     = 10 * time.Minute
	defaultSafetyBuffer   = 30 * time.Second
	defaultItemDelay      = 250 * time.Millisecond
	defaultAdapterBackoff = time.Second
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:           defaultTMDBBaseURL,
			Language:          defaultTMDBLanguage,
			RequestsPerSecond: defaultTMDBRequestsPerSec,
		},
		Wikipedia: Wikipedia{
			Enabled:   false,
			BaseURL:   defaultWikipediaBaseURL,
			UserAgent: defaultWikipediaUserAgent,
		},
		Runner: Runner{
			BatchSize:          defaultBatchSize,
			MaxRuntime:         defaultMaxRuntime.String(),
			SafetyBuffer:       defaultSafetyBuffer.String(),
			ItemDelayMS:        int(defaultItemDelay / time.Millisecond),
			CheckpointInterval: defaultCheckpointInterval,
			MaxRetries:         defaultMaxRetries,
			AdapterMaxAttempts: defaultAdapterMaxAttempts,
			AdapterBackoffMS:   int(defaultAdapterBackoff / time.Millisecond),
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Scanner: Scanner{
			PageSize:         defaultScannerPageSize,
			PublishThreshold: defaultPublishThreshold,
			ReportTopItems:   defaultReportTopItems,
		},
		Cycles: Cycles{
			RotationLength: defaultRotationLength,
		},
		Trigger: Trigger{
			RequestTimeout: defaultTriggerTimeout,
		},
		Daemon: Daemon{
			ScanSchedule: defaultScanSchedule,
			RunInterval:  defaultRunInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
