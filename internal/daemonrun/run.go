// Package daemonrun hosts the curatord runtime loop: scheduled gap scans,
// interval-driven batch runs, and change-feed syncs, each guarded by a
// per-queue lock so overlapping invocations never double-process.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"curator/internal/catalog"
	"curator/internal/changes"
	"curator/internal/config"
	"curator/internal/cycle"
	"curator/internal/enrich"
	"curator/internal/gaps"
	"curator/internal/logging"
	"curator/internal/pause"
	"curator/internal/queue"
	"curator/internal/runner"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the curator daemon runtime loop and blocks until a signal or
// context cancellation stops it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("curator-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "curatord.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	daemonLock := flock.New(filepath.Join(cfg.Paths.LogDir, "curatord.lock"))
	locked, err := daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another curatord instance holds %s", daemonLock.Path())
	}
	defer daemonLock.Unlock()

	queueStore, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer queueStore.Close()

	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		logger.Error("open catalog store", logging.Error(err))
		return err
	}
	defer catalogStore.Close()

	d := newDaemon(cfg, queueStore, catalogStore, logger)

	scheduler := cron.New()
	schedule := cfg.Daemon.ScanSchedule
	if _, err := scheduler.AddFunc(schedule, func() { d.scheduledScan(signalCtx) }); err != nil {
		return fmt.Errorf("register scan schedule %q: %w", schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	interval := time.Duration(cfg.Daemon.RunInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("curator daemon started",
		logging.String("scan_schedule", schedule),
		logging.Duration("run_interval", interval),
		logging.String("queue_db", queueStore.Path()),
		logging.String("catalog_db", catalogStore.Path()))

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("curator daemon shutting down")
			return nil
		case <-ticker.C:
			d.scheduledRuns(signalCtx)
		}
	}
}

// daemon carries the wired components shared by scheduled activities.
type daemon struct {
	cfg     *config.Config
	queue   *queue.Store
	catalog *catalog.Store
	tracker *cycle.Tracker
	pauses  *pause.Controller
	runner  *runner.Runner
	scanner *gaps.Scanner
	sync    *changes.Tracker
	logger  *slog.Logger
}

func newDaemon(cfg *config.Config, queueStore *queue.Store, catalogStore *catalog.Store, logger *slog.Logger) *daemon {
	tmdb := enrich.NewTMDBClient(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Language, cfg.TMDB.RequestsPerSecond)
	var wikipedia *enrich.WikipediaClient
	if cfg.Wikipedia.Enabled {
		wikipedia = enrich.NewWikipediaClient(cfg.Wikipedia.BaseURL, cfg.Wikipedia.UserAgent)
	}

	var adapter enrich.Adapter
	if cfg.Runner.DryRun {
		adapter = enrich.NewDryRun(catalogStore, logger)
	} else {
		adapter = enrich.NewEnricher(catalogStore, tmdb, wikipedia, enrich.Options{
			PublishThreshold: cfg.Scanner.PublishThreshold,
			WikipediaEnabled: cfg.Wikipedia.Enabled,
		}, logger)
	}

	tracker := cycle.NewTracker(catalogStore, cfg.Cycles.RotationLength, logger)
	pauses := pause.NewController(queueStore, logger)
	trigger := runner.NewTrigger(cfg.Trigger.URL, time.Duration(cfg.Trigger.RequestTimeout)*time.Second, logger)
	policy := runner.RetryPolicy{
		MaxAttempts: cfg.Runner.AdapterMaxAttempts,
		BaseDelay:   cfg.AdapterBackoffBase(),
	}

	return &daemon{
		cfg:     cfg,
		queue:   queueStore,
		catalog: catalogStore,
		tracker: tracker,
		pauses:  pauses,
		runner:  runner.New(queueStore, tracker, pauses, adapter, trigger, policy, logger),
		scanner: gaps.NewScanner(catalogStore, queueStore, gaps.Options{
			PageSize:         cfg.Scanner.PageSize,
			StartFromID:      cfg.Scanner.StartFromID,
			PublishThreshold: cfg.Scanner.PublishThreshold,
			MaxRetries:       cfg.Runner.MaxRetries,
			ReportTopItems:   cfg.Scanner.ReportTopItems,
		}, logger),
		sync:   changes.NewTracker(catalogStore, queueStore, tmdb, logger),
		logger: logging.NewComponentLogger(logger, "daemon"),
	}
}

// scheduledScan runs on the cron schedule: change-feed sync first so provider
// edits land with their higher priority, then full gap scans of both entity
// types.
func (d *daemon) scheduledScan(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	d.logger.Info("scheduled scan starting")

	if _, err := d.sync.Sync(ctx, changes.Options{MaxRetries: d.cfg.Runner.MaxRetries, DryRun: d.cfg.Runner.DryRun}); err != nil {
		d.logger.Warn("change sync", logging.Error(err))
	}
	if _, err := d.scanner.ScanContent(ctx); err != nil {
		d.logger.Error("content gap scan", logging.Error(err))
	}
	if _, err := d.scanner.ScanPeople(ctx); err != nil {
		d.logger.Error("people gap scan", logging.Error(err))
	}
}

// scheduledRuns drains one bounded batch per queue type. Each queue type has
// its own lock file so an operator-invoked run and the daemon never process
// the same queue concurrently.
func (d *daemon) scheduledRuns(ctx context.Context) {
	d.reclaimStale(ctx)
	for _, queueType := range queue.AllQueueTypes() {
		if ctx.Err() != nil {
			return
		}
		d.runLocked(ctx, queueType)
	}
}

func (d *daemon) runLocked(ctx context.Context, queueType queue.QueueType) {
	lock := flock.New(filepath.Join(d.cfg.Paths.LogDir, fmt.Sprintf("curator-%s.lock", queueType)))
	locked, err := lock.TryLock()
	if err != nil {
		d.logger.Error("acquire queue lock",
			logging.String(logging.FieldQueueType, string(queueType)),
			logging.Error(err))
		return
	}
	if !locked {
		d.logger.Debug("queue locked by another run; skipping",
			logging.String(logging.FieldQueueType, string(queueType)))
		return
	}
	defer lock.Unlock()

	// Chain runs while the lock is held: a bounded batch that leaves
	// backlog immediately feeds the next window instead of waiting for
	// the ticker. Failing items spend retries each pass, so the chain
	// terminates even on a queue full of broken items.
	for ctx.Err() == nil {
		summary, err := d.runner.Run(ctx, queueType, runner.Options{
			BatchSize:          d.cfg.Runner.BatchSize,
			MaxRuntime:         d.cfg.MaxRuntime(),
			SafetyBuffer:       d.cfg.SafetyBuffer(),
			ItemDelay:          d.cfg.ItemDelay(),
			CheckpointInterval: d.cfg.Runner.CheckpointInterval,
			DryRun:             d.cfg.Runner.DryRun,
		})
		if err != nil {
			d.logger.Error("batch run",
				logging.String(logging.FieldQueueType, string(queueType)),
				logging.Error(err))
			return
		}
		if summary.Paused || summary.Remaining <= 0 || d.cfg.Runner.DryRun {
			return
		}
		d.logger.Info("chaining next run window",
			logging.String(logging.FieldQueueType, string(queueType)),
			logging.Int("remaining", summary.Remaining))
	}
}

// reclaimStale releases items orphaned by a crashed run: processing rows whose
// heartbeat predates the timeout go back to pending without spending a retry.
func (d *daemon) reclaimStale(ctx context.Context) {
	timeout := time.Duration(d.cfg.Runner.HeartbeatTimeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-timeout)
	reclaimed, err := d.queue.ReclaimStaleProcessing(ctx, cutoff)
	if err != nil {
		d.logger.Warn("reclaim stale items", logging.Error(err))
		return
	}
	if reclaimed > 0 {
		d.logger.Info("reclaimed stale items", logging.Int64("count", reclaimed))
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
