package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"curator/internal/logging"
	"curator/internal/queue"
	"curator/internal/services"
)

// Trigger fires the external re-invocation request that chains bounded runs
// together: when a run ends with backlog remaining, the trigger asks the
// scheduler for another execution window with the same parameters.
type Trigger struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTrigger builds a continuation trigger. An empty URL yields a disabled
// trigger whose Fire is a no-op.
func NewTrigger(url string, timeout time.Duration, logger *slog.Logger) *Trigger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Trigger{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "continuation"),
	}
}

// Enabled reports whether a trigger URL is configured.
func (t *Trigger) Enabled() bool {
	return t != nil && t.url != ""
}

type continuationPayload struct {
	QueueType string `json:"queue_type"`
	BatchSize int    `json:"batch_size"`
	DryRun    bool   `json:"dry_run"`
}

// Fire posts a re-invocation request carrying the run's configuration forward.
// The continuation is best-effort: backlog survives in the queue either way,
// so a failed trigger only delays work until the next scheduled run.
func (t *Trigger) Fire(ctx context.Context, queueType queue.QueueType, batchSize int, dryRun bool) error {
	if !t.Enabled() {
		return nil
	}

	payload, err := json.Marshal(continuationPayload{
		QueueType: string(queueType),
		BatchSize: batchSize,
		DryRun:    dryRun,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "continuation", "encode", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrValidation, "continuation", "build request", t.url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "continuation", "request", t.url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrTransient, "continuation", "request",
			fmt.Sprintf("trigger returned %d", resp.StatusCode), nil)
	}

	t.logger.Info("continuation fired",
		logging.String(logging.FieldQueueType, string(queueType)),
		logging.Int("batch_size", batchSize),
		logging.Bool("dry_run", dryRun))
	return nil
}
