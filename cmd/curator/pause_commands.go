package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/config"
	"curator/internal/pause"
	"curator/internal/queue"
)

func newPauseCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "pause [queue-type]",
		Short: "Pause processing for a queue type",
		Long: "Raises the pause flag. Runs check it before starting and between " +
			"items, so an in-flight item finishes before the pause takes effect. " +
			"With no argument, shows current pause states.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				controller := pause.NewController(store, nil)
				if len(args) == 0 {
					return printPauseStates(cmd, controller)
				}
				queueType, ok := queue.ParseQueueType(args[0])
				if !ok {
					return fmt.Errorf("unknown queue type %q", args[0])
				}
				if err := controller.Pause(cmd.Context(), queueType, reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused %s queue\n", queueType)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the queue is paused (shown in status)")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [queue-type]",
		Short: "Resume processing for a paused queue type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queueType, ok := queue.ParseQueueType(args[0])
			if !ok {
				return fmt.Errorf("unknown queue type %q", args[0])
			}
			return ctx.withQueue(func(_ *config.Config, store *queue.Store) error {
				controller := pause.NewController(store, nil)
				if err := controller.Resume(cmd.Context(), queueType); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resumed %s queue\n", queueType)
				return nil
			})
		},
	}
}

func printPauseStates(cmd *cobra.Command, controller *pause.Controller) error {
	states, err := controller.States(cmd.Context())
	if err != nil {
		return err
	}
	if len(states) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No queues are paused")
		return nil
	}
	rows := make([][]string, 0, len(states))
	for _, state := range states {
		rows = append(rows, []string{
			string(state.QueueType),
			yesNo(state.Paused),
			state.Reason,
			state.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
		[]string{"Queue", "Paused", "Reason", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
	return nil
}
