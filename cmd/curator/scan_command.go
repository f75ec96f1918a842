package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/gaps"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var startFromID int64

	cmd := &cobra.Command{
		Use:   "scan [entity-type]",
		Short: "Detect metadata gaps and seed the work queue",
		Long: "Pages through the catalog evaluating each entity against the gap " +
			"rules, writes completeness scores, promotes drafts that cross the " +
			"publish threshold, and enqueues anything with missing fields. " +
			"Pass 'content', 'people', or 'all'.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			if target != "all" {
				if _, ok := catalog.ParseEntityType(target); !ok {
					return fmt.Errorf("scan target must be content, people, or all, got %q", target)
				}
			}
			return ctx.withComponents(false, func(c *components) error {
				if startFromID > 0 {
					c.scanner = rebuildScannerFrom(c, startFromID)
				}
				if target == "all" || target == string(catalog.EntityTypeContent) {
					summary, err := c.scanner.ScanContent(cmd.Context())
					if err != nil {
						return err
					}
					printScanSummary(cmd, "content", summary)
				}
				if target == "all" || target == string(catalog.EntityTypePeople) {
					summary, err := c.scanner.ScanPeople(cmd.Context())
					if err != nil {
						return err
					}
					printScanSummary(cmd, "people", summary)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&startFromID, "start-from", 0, "Resume scanning from this entity id")
	return cmd
}

func rebuildScannerFrom(c *components, startFromID int64) *gaps.Scanner {
	return gaps.NewScanner(c.catalog, c.queue, gaps.Options{
		PageSize:         c.cfg.Scanner.PageSize,
		StartFromID:      startFromID,
		PublishThreshold: c.cfg.Scanner.PublishThreshold,
		MaxRetries:       c.cfg.Runner.MaxRetries,
		ReportTopItems:   c.cfg.Scanner.ReportTopItems,
	}, c.logger)
}

func printScanSummary(cmd *cobra.Command, label string, summary gaps.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanned %d %s entities in %s\n", summary.Scanned, label, summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  with gaps: %d  queued: %d  updated: %d  skipped: %d\n",
		summary.WithGaps, summary.Queued, summary.Updated, summary.Skipped)
	fmt.Fprintf(out, "  promoted: %d  average score: %.1f\n", summary.Promoted, summary.AverageScore)
}
