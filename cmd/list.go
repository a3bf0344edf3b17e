package cmd

import (
	"fmt"
	"text/tabwriter"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/model"
)

func listCmd(app *App) *cobra.Command {
	var state string
	c := &cobra.Command{
		Use:   "list",
		Short: "List jobs by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := app.Store.List(state, 0)
			if err != nil {
				return err
			}
			printJobTable(jobs)
			return nil
		},
	}
	c.Flags().StringVar(&state, "state", "", "filter by state (pending, processing, completed, failed, dead)")
	return c
}

func statusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show a summary of job states",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := app.Store.Stats()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "STATE\tCOUNT")
			for _, state := range []string{model.StatePending, model.StateProcessing, model.StateCompleted, model.StateFailed, model.StateDead} {
				fmt.Fprintf(w, "%s\t%d\n", state, stats[state])
			}
			return w.Flush()
		},
	}
}

func printJobTable(jobs []*model.Job) {
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tMAX_RETRIES\tPRIORITY\tCOMMAND")
	for _, j := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", j.ID, j.State, j.Attempts, j.MaxRetries, j.Priority, j.Command)
	}
	w.Flush()
}
