package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "curator.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[tmdb]
api_key = "test-key"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatalf("expected config at %s to exist", resolved)
	}
	if cfg.Runner.BatchSize != 100 {
		t.Fatalf("expected default batch size 100, got %d", cfg.Runner.BatchSize)
	}
	if cfg.Cycles.RotationLength != 9 {
		t.Fatalf("expected default rotation length 9, got %d", cfg.Cycles.RotationLength)
	}
	if cfg.MaxRuntime() != 10*time.Minute {
		t.Fatalf("expected default max runtime 10m, got %s", cfg.MaxRuntime())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "")
	os.Unsetenv("TMDB_API_KEY")
	path := writeConfig(t, "")

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error when tmdb.api_key missing")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "env-key")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("START_FROM_ID", "4200")
	t.Setenv("MAX_RUNTIME", "4m")
	t.Setenv("SAFETY_BUFFER", "15s")

	path := writeConfig(t, "")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TMDB.APIKey != "env-key" {
		t.Fatalf("expected env api key, got %q", cfg.TMDB.APIKey)
	}
	if cfg.Runner.BatchSize != 25 {
		t.Fatalf("expected batch size override 25, got %d", cfg.Runner.BatchSize)
	}
	if !cfg.Runner.DryRun {
		t.Fatal("expected dry-run override")
	}
	if cfg.Scanner.StartFromID != 4200 {
		t.Fatalf("expected resume cursor 4200, got %d", cfg.Scanner.StartFromID)
	}
	if cfg.MaxRuntime() != 4*time.Minute {
		t.Fatalf("expected max runtime 4m, got %s", cfg.MaxRuntime())
	}
	if cfg.SafetyBuffer() != 15*time.Second {
		t.Fatalf("expected safety buffer 15s, got %s", cfg.SafetyBuffer())
	}
}

func TestValidateRejectsBufferAtLeastRuntime(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "key")
	path := writeConfig(t, `
[runner]
max_runtime = "1m"
safety_buffer = "2m"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error when safety buffer exceeds runtime")
	}
}

func TestValidateRejectsBadTriggerURL(t *testing.T) {
	t.Setenv("TMDB_API_KEY", "key")
	path := writeConfig(t, `
[trigger]
url = "ftp://example.com/hook"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for non-http trigger url")
	}
}
