package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"curator/internal/queue"
)

// writeTestConfig points curator at throwaway databases and returns the
// config file path plus the data directory.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "data")
	logDir := filepath.Join(base, "logs")
	configPath := filepath.Join(base, "config.toml")
	for _, dir := range []string{dataDir, logDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}

	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[tmdb]
api_key = "test"
`, dataDir, logDir)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath, dataDir
}

// runCommand executes the CLI with the given args against a fresh root.
func runCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedQueueItem(t *testing.T, dataDir string, entityID int64) {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(dataDir, "queue.db"))
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	defer store.Close()
	if _, _, err := store.Enqueue(context.Background(), queue.EnqueueRequest{
		EntityID:   entityID,
		QueueType:  queue.QueueTypeContent,
		Priority:   3,
		MaxRetries: 3,
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}
