package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

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

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withQueue opens the queue store for one command invocation.
func (c *commandContext) withQueue(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withStores opens both stores for commands that span queue and catalog.
func (c *commandContext) withStores(fn func(*config.Config, *queue.Store, *catalog.Store) error) error {
	return c.withQueue(func(cfg *config.Config, queueStore *queue.Store) error {
		catalogStore, err := catalog.Open(cfg)
		if err != nil {
			return err
		}
		defer catalogStore.Close()
		return fn(cfg, queueStore, catalogStore)
	})
}

// components bundles the wired object graph used by run, sweep, scan, and
// sync commands.
type components struct {
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

func (c *commandContext) withComponents(dryRun bool, fn func(*components) error) error {
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	return c.withStores(func(cfg *config.Config, queueStore *queue.Store, catalogStore *catalog.Store) error {
		tmdb := enrich.NewTMDBClient(cfg.TMDB.BaseURL, cfg.TMDB.APIKey, cfg.TMDB.Language, cfg.TMDB.RequestsPerSecond)
		var wikipedia *enrich.WikipediaClient
		if cfg.Wikipedia.Enabled {
			wikipedia = enrich.NewWikipediaClient(cfg.Wikipedia.BaseURL, cfg.Wikipedia.UserAgent)
		}

		var adapter enrich.Adapter
		if dryRun || cfg.Runner.DryRun {
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

		return fn(&components{
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
			logger: logger,
		})
	})
}

func (c *commandContext) runnerOptions(cfg *config.Config, batchSize int, dryRun bool) runner.Options {
	if batchSize <= 0 {
		batchSize = cfg.Runner.BatchSize
	}
	return runner.Options{
		BatchSize:          batchSize,
		MaxRuntime:         cfg.MaxRuntime(),
		SafetyBuffer:       cfg.SafetyBuffer(),
		ItemDelay:          cfg.ItemDelay(),
		CheckpointInterval: cfg.Runner.CheckpointInterval,
		DryRun:             dryRun || cfg.Runner.DryRun,
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
