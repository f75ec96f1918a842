package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/queue"
	"curator/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run [queue-type]",
		Short: "Process one bounded batch from a work queue",
		Long: "Drains up to one batch of pending items from the given queue type " +
			"(content, people, or quality) within the configured time budget. " +
			"When backlog remains afterwards, the continuation trigger requests " +
			"another run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueType, ok := queue.ParseQueueType(args[0])
			if !ok {
				return fmt.Errorf("unknown queue type %q (want content, people, or quality)", args[0])
			}
			return ctx.withComponents(dryRun, func(c *components) error {
				summary, err := c.runner.Run(cmd.Context(), queueType, ctx.runnerOptions(c.cfg, batchSize, dryRun))
				if err != nil {
					return err
				}
				printRunSummary(cmd, summary)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Items to process this run (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Select and claim nothing; log what would happen")
	return cmd
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep [entity-type]",
		Short: "Re-enrich entities owed a visit in the current cycle",
		Long: "Visits entities whose enrichment cycle lags the current one, " +
			"oldest-touched first, independent of any detected gaps. When every " +
			"entity carries the current cycle's stamp the cycle advances.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, ok := catalog.ParseEntityType(args[0])
			if !ok {
				return fmt.Errorf("unknown entity type %q (want content or people)", args[0])
			}
			return ctx.withComponents(dryRun, func(c *components) error {
				summary, err := c.runner.RunSweep(cmd.Context(), entityType, ctx.runnerOptions(c.cfg, batchSize, dryRun))
				if err != nil {
					return err
				}
				printRunSummary(cmd, summary)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Entities to visit this run (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Visit entities without writing stamps")
	return cmd
}

func printRunSummary(cmd *cobra.Command, summary runner.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s, %s)\n", summary.RunID, summary.QueueType, summary.Mode)
	fmt.Fprintf(out, "  processed: %d  succeeded: %d  failed: %d  remaining: %d\n",
		summary.Processed, summary.Succeeded, summary.Failed, summary.Remaining)
	fmt.Fprintf(out, "  success rate: %.0f%%  elapsed: %s\n", summary.SuccessRate()*100, summary.Duration.Round(time.Millisecond))
	if summary.Paused {
		fmt.Fprintln(out, "  stopped: queue paused")
	}
	if summary.BudgetExhausted {
		fmt.Fprintln(out, "  stopped: time budget exhausted")
	}
	if summary.CycleAdvanced {
		fmt.Fprintln(out, "  cycle advanced")
	}
}
