package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/cycle"
	"curator/internal/queue"
)

func newCycleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Show sweep cycle progress per entity type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStores(func(cfg *config.Config, _ *queue.Store, catalogStore *catalog.Store) error {
				tracker := cycle.NewTracker(catalogStore, cfg.Cycles.RotationLength, nil)
				rows := make([][]string, 0, 2)
				for _, entityType := range []catalog.EntityType{catalog.EntityTypeContent, catalog.EntityTypePeople} {
					record, err := tracker.UpdateStats(cmd.Context(), entityType)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						string(entityType),
						fmt.Sprintf("%d/%d", record.CurrentCycle, tracker.RotationLength()),
						fmt.Sprintf("%d/%d", record.ItemsCompleted, record.TotalItems),
						formatCycleTime(record.CycleStartedAt),
						formatCycleTime(record.CycleCompletedAt),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
					[]string{"Entity Type", "Cycle", "Stamped", "Started", "Completed"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func formatCycleTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
