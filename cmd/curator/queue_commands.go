package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/config"
	"curator/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the work queues",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per queue type and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(stats)
				}
				if len(stats) == 0 {
					fmt.Fprintln(out, "All queues are empty")
					return nil
				}
				rows := make([][]string, 0, len(stats))
				for _, sc := range stats {
					rows = append(rows, []string{string(sc.QueueType), string(sc.Status), strconv.Itoa(sc.Count)})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"Queue", "Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable output")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [queue-type]",
		Short: "List items in one queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueType, ok := queue.ParseQueueType(args[0])
			if !ok {
				return fmt.Errorf("unknown queue type %q", args[0])
			}
			var statuses []queue.Status
			for _, raw := range listStatuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), queueType, statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(items)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						strconv.FormatInt(item.EntityID, 10),
						string(item.Status),
						strconv.Itoa(item.Priority),
						fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries),
						describeItem(item),
						item.CreatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"ID", "Entity", "Status", "Priority", "Retries", "Reason", "Created"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable output")
	return cmd
}

func describeItem(item *queue.Item) string {
	if item.ErrorMessage != "" {
		return item.ErrorMessage
	}
	meta, err := item.Metadata()
	if err != nil {
		return ""
	}
	return meta.Summary()
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [queue-type] [id...]",
		Short: "Reset failed items back to pending",
		Long: "Returns failed items to pending with a fresh retry budget. With no " +
			"ids, every failed item in the queue is reset.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueType, ok := queue.ParseQueueType(args[0])
			if !ok {
				return fmt.Errorf("unknown queue type %q", args[0])
			}
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", raw)
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				reset, err := store.RetryFailed(cmd.Context(), queueType, ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed item(s) to pending\n", reset)
				return nil
			})
		},
	}
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear [queue-type]",
		Short: "Remove completed or failed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll {
				return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
					if err := store.Clear(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Cleared all queue items")
					return nil
				})
			}
			if len(args) != 1 {
				return fmt.Errorf("queue type required unless --all is set")
			}
			queueType, ok := queue.ParseQueueType(args[0])
			if !ok {
				return fmt.Errorf("unknown queue type %q", args[0])
			}
			if !clearCompleted && !clearFailed {
				clearCompleted = true
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if clearCompleted {
					removed, err := store.ClearCompleted(cmd.Context(), queueType)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d completed item(s)\n", removed)
				}
				if clearFailed {
					removed, err := store.ClearFailed(cmd.Context(), queueType)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Removed %d failed item(s)\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove completed items (default)")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove terminally failed items")
	cmd.Flags().BoolVar(&clearAll, "all", false, "Drop every item in every queue")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a single queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				if err := store.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed item %d\n", id)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				health := store.Health(cmd.Context())
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database: %s\n", health.DBPath)
				fmt.Fprintf(out, "  exists: %s  readable: %s  integrity: %s\n",
					yesNo(health.DatabaseExists), yesNo(health.DatabaseReadable), yesNo(health.IntegrityCheck))
				fmt.Fprintf(out, "  schema version: %s  total items: %d\n", health.SchemaVersion, health.TotalItems)
				if health.Error != "" {
					fmt.Fprintf(out, "  error: %s\n", health.Error)
					return fmt.Errorf("queue database unhealthy")
				}
				return nil
			})
		},
	}
}
