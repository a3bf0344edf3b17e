package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/model"
)

func dlqCmd(app *App) *cobra.Command {
	dlq := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the Dead Letter Queue",
	}

	dlq.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all jobs in the DLQ",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := app.Store.List(model.StateDead, 0)
			if err != nil {
				return err
			}
			printJobTable(jobs)
			return nil
		},
	})

	dlq.AddCommand(&cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.RetryFromDLQ(args[0]); err != nil {
				return err
			}
			fmt.Printf("Job %s moved from DLQ to pending.\n", args[0])
			return nil
		},
	})

	return dlq
}
