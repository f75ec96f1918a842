// Package changes syncs the provider's changed-ids feed into the work queue:
// entities the provider edited recently and that exist in the local catalog
// are re-enqueued so the next run refreshes them ahead of the slow cycle
// sweep.
package changes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"curator/internal/catalog"
	"curator/internal/enrich"
	"curator/internal/logging"
	"curator/internal/queue"
)

// changedPriority outranks gap-scan items for small field counts: a provider
// edit is fresher signal than a stale gap.
const changedPriority = 5

// maxPages bounds one sync pass. The feed is sorted newest-first, so daily
// syncs never need deeper pages.
const maxPages = 10

// feedKinds maps provider feed names to the catalog lookup used to match
// their ids.
var feedKinds = []string{"movie", "tv", "person"}

// Options configures one sync pass.
type Options struct {
	// MaxRetries is carried onto enqueued items. Defaults to 3.
	MaxRetries int
	// DryRun matches and counts without enqueueing.
	DryRun bool
}

func (o *Options) normalize() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
}

// Summary reports one sync pass.
type Summary struct {
	Fetched  int
	Matched  int
	Queued   int
	Updated  int
	Skipped  int
	Duration time.Duration
}

// Tracker intersects the provider change feed with the local catalog.
type Tracker struct {
	catalog *catalog.Store
	queue   *queue.Store
	tmdb    *enrich.TMDBClient
	logger  *slog.Logger
}

// NewTracker wires a change tracker.
func NewTracker(catalogStore *catalog.Store, queueStore *queue.Store, tmdb *enrich.TMDBClient, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		catalog: catalogStore,
		queue:   queueStore,
		tmdb:    tmdb,
		logger:  logging.NewComponentLogger(logger, "change-sync"),
	}
}

// Sync walks all three provider feeds and enqueues every changed entity the
// catalog knows about. Feed pages past the first failure of a kind are
// skipped; other kinds still run.
func (t *Tracker) Sync(ctx context.Context, opts Options) (Summary, error) {
	opts.normalize()
	started := time.Now()
	var summary Summary
	var firstErr error

	for _, kind := range feedKinds {
		if err := t.syncKind(ctx, kind, opts, &summary); err != nil {
			t.logger.Warn("feed sync failed",
				logging.String("kind", kind),
				logging.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("sync %s changes: %w", kind, err)
			}
		}
	}

	summary.Duration = time.Since(started)
	t.logger.Info("change sync finished",
		logging.Int("fetched", summary.Fetched),
		logging.Int("matched", summary.Matched),
		logging.Int("queued", summary.Queued),
		logging.Int("updated", summary.Updated),
		logging.Int("skipped", summary.Skipped),
		logging.Duration("elapsed", summary.Duration))
	return summary, firstErr
}

func (t *Tracker) syncKind(ctx context.Context, kind string, opts Options, summary *Summary) error {
	for page := 1; page <= maxPages; page++ {
		feed, err := t.tmdb.Changes(ctx, kind, page)
		if err != nil {
			return err
		}
		summary.Fetched += len(feed.Results)

		for _, result := range feed.Results {
			if err := t.matchAndEnqueue(ctx, kind, result.ID, opts, summary); err != nil {
				return err
			}
		}

		if feed.TotalPages <= page || len(feed.Results) == 0 {
			break
		}
	}
	return nil
}

func (t *Tracker) matchAndEnqueue(ctx context.Context, kind string, tmdbID int64, opts Options, summary *Summary) error {
	entityID, queueType, err := t.lookup(ctx, kind, tmdbID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	summary.Matched++
	if opts.DryRun {
		return nil
	}

	metadata, err := queue.EncodeMetadata(queue.Metadata{
		Source: queue.SourceChangeSync,
		Note:   fmt.Sprintf("provider edited %s %d", kind, tmdbID),
	})
	if err != nil {
		return err
	}
	_, outcome, err := t.queue.Enqueue(ctx, queue.EnqueueRequest{
		EntityID:     entityID,
		QueueType:    queueType,
		Priority:     changedPriority,
		MaxRetries:   opts.MaxRetries,
		MetadataJSON: metadata,
	})
	if err != nil {
		return fmt.Errorf("enqueue changed %s %d: %w", kind, tmdbID, err)
	}
	switch outcome {
	case queue.OutcomeQueued:
		summary.Queued++
	case queue.OutcomeUpdated:
		summary.Updated++
	default:
		summary.Skipped++
	}
	return nil
}

func (t *Tracker) lookup(ctx context.Context, kind string, tmdbID int64) (int64, queue.QueueType, error) {
	switch kind {
	case "movie":
		c, err := t.catalog.FindContentByTMDBID(ctx, tmdbID, catalog.ContentTypeMovie)
		if err != nil {
			return 0, "", err
		}
		return c.ID, queue.QueueTypeContent, nil
	case "tv":
		c, err := t.catalog.FindContentByTMDBID(ctx, tmdbID, catalog.ContentTypeTV)
		if err != nil {
			return 0, "", err
		}
		return c.ID, queue.QueueTypeContent, nil
	case "person":
		p, err := t.catalog.FindPersonByTMDBID(ctx, tmdbID)
		if err != nil {
			return 0, "", err
		}
		return p.ID, queue.QueueTypePeople, nil
	default:
		return 0, "", fmt.Errorf("unknown feed kind %q", kind)
	}
}
