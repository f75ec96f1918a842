package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/gaps"
	"curator/internal/queue"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Show the latest quality report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(cfg *config.Config, _ *queue.Store, catalogStore *catalog.Store) error {
				record, err := catalogStore.LatestQualityReport(cmd.Context())
				if errors.Is(err, catalog.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No quality report yet; run 'curator scan' first")
					return nil
				}
				if err != nil {
					return err
				}
				report, err := gaps.DecodeReport(record.ReportJSON)
				if err != nil {
					return err
				}
				printQualityReport(cmd, record, report)
				return nil
			})
		},
	}
}

func printQualityReport(cmd *cobra.Command, record *catalog.QualityReport, report *gaps.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Quality report #%d (%s) generated %s\n",
		record.ID, report.EntityType, record.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "  scanned: %d  with gaps: %d  average score: %.1f  promoted: %d\n",
		record.TotalScanned, record.ItemsWithGaps, record.AverageScore, report.Promoted)

	if len(report.MissingCounts) > 0 {
		rows := make([][]string, 0, len(report.MissingCounts))
		for _, fc := range report.MissingCounts {
			rows = append(rows, []string{fc.Label, strconv.Itoa(fc.Count)})
		}
		fmt.Fprint(out, renderTable(out,
			[]string{"Missing Field", "Entities"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
	}

	if len(report.TopItems) > 0 {
		rows := make([][]string, 0, len(report.TopItems))
		for _, item := range report.TopItems {
			rows = append(rows, []string{
				strconv.FormatInt(item.EntityID, 10),
				item.Title,
				strconv.Itoa(item.Score),
				strconv.Itoa(item.Priority),
				strings.Join(item.Missing, ", "),
			})
		}
		fmt.Fprint(out, renderTable(out,
			[]string{"ID", "Title", "Score", "Priority", "Missing"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
	}
}
