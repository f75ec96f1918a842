package testsupport

import (
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.TMDB.APIKey = "test"
	cfg.Trigger.URL = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithTMDB points the provider client at a test server.
func WithTMDB(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.TMDB.BaseURL = baseURL
	}
}

// WithTrigger enables the continuation webhook against a test server.
func WithTrigger(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Trigger.URL = url
	}
}
