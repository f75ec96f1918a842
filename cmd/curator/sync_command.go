package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/changes"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Enqueue entities the provider changed recently",
		Long: "Walks the provider's changed-ids feeds and enqueues every match " +
			"already present in the catalog, so upstream edits refresh ahead of " +
			"the slow cycle sweep.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(dryRun, func(c *components) error {
				summary, err := c.sync.Sync(cmd.Context(), changes.Options{
					MaxRetries: c.cfg.Runner.MaxRetries,
					DryRun:     dryRun,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Fetched %d changed ids in %s\n", summary.Fetched, summary.Duration.Round(time.Millisecond))
				fmt.Fprintf(out, "  matched: %d  queued: %d  updated: %d  skipped: %d\n",
					summary.Matched, summary.Queued, summary.Updated, summary.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Match and count without enqueueing")
	return cmd
}
