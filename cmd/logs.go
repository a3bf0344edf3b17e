package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func logsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show stdout/stderr log paths for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Store.Get(args[0]); err != nil {
				return err
			}
			stdout, stderr := app.Store.LogPathsFor(args[0])
			fmt.Printf("stdout: %s\nstderr: %s\n", stdout, stderr)
			return nil
		},
	}
}
