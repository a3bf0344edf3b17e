// Package cmd is the thin CLI layer that translates user commands into
// calls against the core Store/Worker/Supervisor API (spec.md §6). It is
// explicitly out of scope for correctness testing per spec.md §1; argument
// parsing and output formatting live here, grounded on the teacher's cmd/
// package (github.com/spf13/cobra).
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/config"
	"github.com/Pranav1703/queuectl/internal/logging"
	"github.com/Pranav1703/queuectl/internal/store"
)

// App bundles the dependencies every subcommand needs.
type App struct {
	Store *store.Store
	Boot  *config.Bootstrap
	Log   logging.Logger
}

func NewRoot(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "A durable, multi-worker background job queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(enqueueCmd(app))
	root.AddCommand(listCmd(app))
	root.AddCommand(statusCmd(app))
	root.AddCommand(dlqCmd(app))
	root.AddCommand(configCmd(app))
	root.AddCommand(logsCmd(app))
	root.AddCommand(workerCmd(app))
	root.AddCommand(reapCmd(app))
	root.AddCommand(workerRunCmd(app))

	return root
}
