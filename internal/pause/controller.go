// Package pause exposes the shared pause flag checked before and during
// enrichment runs. Flags are set out-of-band (CLI or daemon) and a paused
// queue drains cleanly: the in-flight item finishes, nothing is marked failed.
package pause

import (
	"context"
	"log/slog"

	"curator/internal/logging"
	"curator/internal/queue"
)

// Controller reads and writes per-queue-type pause flags.
type Controller struct {
	store  *queue.Store
	logger *slog.Logger
}

// NewController builds a controller over the queue store's pause flags.
func NewController(store *queue.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		store:  store,
		logger: logging.NewComponentLogger(logger, "pause"),
	}
}

// Pause raises the flag for a queue type.
func (c *Controller) Pause(ctx context.Context, queueType queue.QueueType, reason string) error {
	if err := c.store.SetPaused(ctx, queueType, reason); err != nil {
		return err
	}
	c.logger.Info("queue paused",
		logging.String(logging.FieldQueueType, string(queueType)),
		logging.String("reason", reason))
	return nil
}

// Resume lowers the flag for a queue type.
func (c *Controller) Resume(ctx context.Context, queueType queue.QueueType) error {
	if err := c.store.ClearPaused(ctx, queueType); err != nil {
		return err
	}
	c.logger.Info("queue resumed", logging.String(logging.FieldQueueType, string(queueType)))
	return nil
}

// IsPaused reports the flag and any recorded reason for a queue type.
func (c *Controller) IsPaused(ctx context.Context, queueType queue.QueueType) (bool, string, error) {
	return c.store.IsPaused(ctx, queueType)
}

// States returns every recorded pause flag.
func (c *Controller) States(ctx context.Context) ([]queue.PauseState, error) {
	return c.store.PauseStates(ctx)
}
