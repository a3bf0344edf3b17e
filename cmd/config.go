package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/model"
)

func configCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	root.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Store.Config().SetTyped(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := app.Store.Config().Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return model.NewNotFound(fmt.Sprintf("config key %q not set", args[0]))
			}
			fmt.Println(value)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the recognised configuration keys (other keys are not listed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := app.Store.Config().All()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALUE")
			for _, k := range []string{"max_retries", "backoff_base", "poll_interval_ms", "default_timeout_secs"} {
				if v, ok := all[k]; ok {
					fmt.Fprintf(w, "%s\t%s\n", k, v)
				}
			}
			return w.Flush()
		},
	})

	return root
}
