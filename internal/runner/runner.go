// Package runner executes bounded enrichment runs: it drains a slice of the
// work queue (gap mode) or the cycle tracker's staleness selection (sweep
// mode) within a wall-clock budget, isolating per-item failures and chaining
// another run when backlog remains.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"curator/internal/catalog"
	"curator/internal/cycle"
	"curator/internal/enrich"
	"curator/internal/logging"
	"curator/internal/pause"
	"curator/internal/queue"
)

// Mode names the selection strategy a run used.
type Mode string

const (
	// ModeGap drains queue items seeded by the gap scanner.
	ModeGap Mode = "gap"
	// ModeSweep visits entities owing a stamp for the current cycle.
	ModeSweep Mode = "sweep"
)

// Options bounds one run.
type Options struct {
	// BatchSize caps how many items one invocation selects.
	BatchSize int
	// MaxRuntime is the total wall-clock budget for the invocation.
	MaxRuntime time.Duration
	// SafetyBuffer is subtracted from MaxRuntime: the loop stops once
	// elapsed time exceeds MaxRuntime-SafetyBuffer so in-flight work can
	// finish before the scheduler's hard ceiling.
	SafetyBuffer time.Duration
	// ItemDelay is the fixed pause between items for provider rate
	// compliance.
	ItemDelay time.Duration
	// CheckpointInterval emits a progress log line every N items.
	CheckpointInterval int
	// DryRun is forwarded to the continuation trigger so chained runs keep
	// the flag.
	DryRun bool
	// RunID correlates log lines for one invocation. Generated when empty.
	RunID string
}

func (o *Options) normalize() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.MaxRuntime <= 0 {
		o.MaxRuntime = 10 * time.Minute
	}
	if o.SafetyBuffer < 0 || o.SafetyBuffer >= o.MaxRuntime {
		o.SafetyBuffer = 0
	}
	if o.CheckpointInterval <= 0 {
		o.CheckpointInterval = 10
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
}

// Summary is the always-emitted result of a run, even after partial failure.
type Summary struct {
	RunID           string
	QueueType       queue.QueueType
	Mode            Mode
	Processed       int
	Succeeded       int
	Failed          int
	Remaining       int
	Paused          bool
	BudgetExhausted bool
	CycleAdvanced   bool
	Duration        time.Duration
}

// SuccessRate returns the fraction of processed items that succeeded.
func (s Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Processed)
}

// Runner coordinates bounded enrichment runs over the queue and the cycle
// sweep.
type Runner struct {
	queue   *queue.Store
	tracker *cycle.Tracker
	pauses  *pause.Controller
	adapter enrich.Adapter
	trigger *Trigger
	policy  RetryPolicy
	logger  *slog.Logger
}

// New wires a runner. trigger may be nil when continuation is disabled.
func New(queueStore *queue.Store, tracker *cycle.Tracker, pauses *pause.Controller, adapter enrich.Adapter, trigger *Trigger, policy RetryPolicy, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		queue:   queueStore,
		tracker: tracker,
		pauses:  pauses,
		adapter: adapter,
		trigger: trigger,
		policy:  policy,
		logger:  logging.NewComponentLogger(logger, "runner"),
	}
}

func entityTypeFor(queueType queue.QueueType) catalog.EntityType {
	if queueType == queue.QueueTypePeople {
		return catalog.EntityTypePeople
	}
	return catalog.EntityTypeContent
}

// Run executes one gap-driven batch for a queue type. Per-item failures never
// abort the batch; only setup failures (store unreachable, selection failed)
// surface as errors, and even then the summary reflects work done so far.
func (r *Runner) Run(ctx context.Context, queueType queue.QueueType, opts Options) (Summary, error) {
	opts.normalize()
	started := time.Now()
	summary := Summary{RunID: opts.RunID, QueueType: queueType, Mode: ModeGap}
	log := r.logger.With(
		logging.String(logging.FieldRunID, opts.RunID),
		logging.String(logging.FieldQueueType, string(queueType)))

	paused, reason, err := r.pauses.IsPaused(ctx, queueType)
	if err != nil {
		return summary, fmt.Errorf("check pause flag: %w", err)
	}
	if paused {
		summary.Paused = true
		summary.Duration = time.Since(started)
		log.Info("run skipped: queue paused", logging.String("reason", reason))
		return summary, nil
	}

	items, err := r.queue.DequeueBatch(ctx, queueType, opts.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("dequeue batch: %w", err)
	}
	log.Info("run started",
		logging.String("mode", string(ModeGap)),
		logging.Int("selected", len(items)),
		logging.Bool("dry_run", opts.DryRun))

	deadline := started.Add(opts.MaxRuntime - opts.SafetyBuffer)
	pacer := newPacer(opts.ItemDelay)
	entityType := entityTypeFor(queueType)
	stampCycle := -1
	if queueType != queue.QueueTypeQuality {
		if current, cycleErr := r.tracker.CurrentCycle(ctx, entityType); cycleErr == nil {
			stampCycle = current
		}
	}

	for _, item := range items {
		if time.Now().After(deadline) {
			summary.BudgetExhausted = true
			log.Info("time budget exhausted", logging.Int("processed", summary.Processed))
			break
		}
		if stop, stopErr := r.pausedMidRun(ctx, queueType, &summary, log); stopErr != nil {
			return summary, stopErr
		} else if stop {
			break
		}

		if !opts.DryRun {
			if err := r.queue.MarkProcessing(ctx, item.ID); err != nil {
				if errors.Is(err, queue.ErrNotClaimed) {
					// Another runner won the claim; skip without counting.
					continue
				}
				return summary, fmt.Errorf("claim item %d: %w", item.ID, err)
			}
		}

		summary.Processed++
		enrichErr := r.policy.Do(ctx, func() error {
			// Refresh liveness each attempt so a slow retry chain is not
			// reclaimed as orphaned mid-flight.
			if !opts.DryRun {
				if err := r.queue.UpdateHeartbeat(ctx, item.ID); err != nil {
					log.Warn("refresh heartbeat", logging.Int64("item_id", item.ID), logging.Error(err))
				}
			}
			return r.adapter.Enrich(ctx, item.EntityID, queueType)
		})
		if enrichErr != nil {
			summary.Failed++
			status := item.Status
			if !opts.DryRun {
				var failErr error
				status, failErr = r.queue.MarkFailed(ctx, item.ID, enrichErr.Error())
				if failErr != nil {
					log.Error("record failure", logging.Int64("item_id", item.ID), logging.Error(failErr))
				}
			}
			log.Warn("item failed",
				logging.Int64(logging.FieldEntityID, item.EntityID),
				logging.String("status", string(status)),
				logging.Int("retry_count", item.RetryCount+1),
				logging.Error(enrichErr))
		} else {
			summary.Succeeded++
			if !opts.DryRun {
				if err := r.queue.MarkCompleted(ctx, item.ID); err != nil {
					log.Error("record completion", logging.Int64("item_id", item.ID), logging.Error(err))
				}
			}
			if stampCycle >= 0 && !opts.DryRun {
				if err := r.tracker.Stamp(ctx, entityType, item.EntityID, stampCycle); err != nil {
					log.Warn("stamp entity", logging.Int64(logging.FieldEntityID, item.EntityID), logging.Error(err))
				}
			}
		}

		if summary.Processed%opts.CheckpointInterval == 0 {
			log.Info("checkpoint",
				logging.Int("processed", summary.Processed),
				logging.Int("succeeded", summary.Succeeded),
				logging.Int("failed", summary.Failed))
		}
		if err := pace(ctx, pacer); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
	}

	summary.Duration = time.Since(started)
	r.finishRun(ctx, &summary, entityType, queueType, opts, log)
	return summary, nil
}

// RunSweep executes one cycle-driven batch for an entity type: entities owing
// a stamp for the current cycle, oldest-touched first. Successes stamp the
// entity; there are no queue items to transition.
func (r *Runner) RunSweep(ctx context.Context, entityType catalog.EntityType, opts Options) (Summary, error) {
	opts.normalize()
	started := time.Now()
	queueType := queue.QueueTypeContent
	if entityType == catalog.EntityTypePeople {
		queueType = queue.QueueTypePeople
	}
	summary := Summary{RunID: opts.RunID, QueueType: queueType, Mode: ModeSweep}
	log := r.logger.With(
		logging.String(logging.FieldRunID, opts.RunID),
		logging.String("entity_type", string(entityType)))

	paused, reason, err := r.pauses.IsPaused(ctx, queueType)
	if err != nil {
		return summary, fmt.Errorf("check pause flag: %w", err)
	}
	if paused {
		summary.Paused = true
		summary.Duration = time.Since(started)
		log.Info("sweep skipped: queue paused", logging.String("reason", reason))
		return summary, nil
	}

	currentCycle, err := r.tracker.CurrentCycle(ctx, entityType)
	if err != nil {
		return summary, fmt.Errorf("current cycle: %w", err)
	}
	ids, err := r.tracker.SelectDue(ctx, entityType, opts.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("select due entities: %w", err)
	}
	log.Info("sweep started",
		logging.Int("cycle", currentCycle),
		logging.Int("selected", len(ids)),
		logging.Bool("dry_run", opts.DryRun))

	deadline := started.Add(opts.MaxRuntime - opts.SafetyBuffer)
	pacer := newPacer(opts.ItemDelay)
	for _, entityID := range ids {
		if time.Now().After(deadline) {
			summary.BudgetExhausted = true
			log.Info("time budget exhausted", logging.Int("processed", summary.Processed))
			break
		}
		if stop, stopErr := r.pausedMidRun(ctx, queueType, &summary, log); stopErr != nil {
			return summary, stopErr
		} else if stop {
			break
		}

		summary.Processed++
		enrichErr := r.policy.Do(ctx, func() error {
			return r.adapter.Enrich(ctx, entityID, queueType)
		})
		if enrichErr != nil {
			summary.Failed++
			log.Warn("sweep item failed",
				logging.Int64(logging.FieldEntityID, entityID),
				logging.Error(enrichErr))
		} else {
			summary.Succeeded++
			if !opts.DryRun {
				if err := r.tracker.Stamp(ctx, entityType, entityID, currentCycle); err != nil {
					log.Warn("stamp entity", logging.Int64(logging.FieldEntityID, entityID), logging.Error(err))
				}
			}
		}

		if summary.Processed%opts.CheckpointInterval == 0 {
			log.Info("checkpoint",
				logging.Int("processed", summary.Processed),
				logging.Int("succeeded", summary.Succeeded),
				logging.Int("failed", summary.Failed))
		}
		if err := pace(ctx, pacer); err != nil {
			summary.Duration = time.Since(started)
			return summary, err
		}
	}

	summary.Duration = time.Since(started)
	advanced, err := r.tracker.CheckAndIncrement(ctx, entityType)
	if err != nil {
		log.Error("cycle check", logging.Error(err))
	}
	summary.CycleAdvanced = advanced
	if _, err := r.tracker.UpdateStats(ctx, entityType); err != nil {
		log.Warn("update cycle stats", logging.Error(err))
	}
	r.logSummary(summary, log)
	return summary, nil
}

func (r *Runner) pausedMidRun(ctx context.Context, queueType queue.QueueType, summary *Summary, log *slog.Logger) (bool, error) {
	paused, reason, err := r.pauses.IsPaused(ctx, queueType)
	if err != nil {
		return false, fmt.Errorf("check pause flag: %w", err)
	}
	if paused {
		summary.Paused = true
		log.Info("pause requested mid-run; stopping cleanly",
			logging.String("reason", reason),
			logging.Int("processed", summary.Processed))
	}
	return paused, nil
}

// newPacer spaces item processing so provider calls stay under the
// configured cadence. A nil pacer means no delay between items.
func newPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func pace(ctx context.Context, pacer *rate.Limiter) error {
	if pacer == nil {
		return nil
	}
	return pacer.Wait(ctx)
}

func (r *Runner) finishRun(ctx context.Context, summary *Summary, entityType catalog.EntityType, queueType queue.QueueType, opts Options, log *slog.Logger) {
	if queueType != queue.QueueTypeQuality {
		advanced, err := r.tracker.CheckAndIncrement(ctx, entityType)
		if err != nil {
			log.Error("cycle check", logging.Error(err))
		}
		summary.CycleAdvanced = advanced
		if _, err := r.tracker.UpdateStats(ctx, entityType); err != nil {
			log.Warn("update cycle stats", logging.Error(err))
		}
	}

	remaining, err := r.queue.PendingCount(ctx, queueType)
	if err != nil {
		log.Warn("count remaining", logging.Error(err))
	} else {
		summary.Remaining = remaining
		if remaining > 0 && !summary.Paused && r.trigger.Enabled() {
			if err := r.trigger.Fire(ctx, queueType, opts.BatchSize, opts.DryRun); err != nil {
				log.Warn("continuation trigger failed", logging.Error(err))
			}
		}
	}
	r.logSummary(*summary, log)
}

func (r *Runner) logSummary(summary Summary, log *slog.Logger) {
	log.Info("run finished",
		logging.String("mode", string(summary.Mode)),
		logging.Int("processed", summary.Processed),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("remaining", summary.Remaining),
		logging.Float64("success_rate", summary.SuccessRate()),
		logging.Bool("paused", summary.Paused),
		logging.Bool("budget_exhausted", summary.BudgetExhausted),
		logging.Duration("elapsed", summary.Duration))
}
