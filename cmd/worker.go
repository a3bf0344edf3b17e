package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pranav1703/queuectl/internal/lockfile"
	"github.com/Pranav1703/queuectl/internal/supervisor"
	"github.com/Pranav1703/queuectl/internal/worker"
)

func workerCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	var count int
	start := &cobra.Command{
		Use:   "start",
		Short: "Start N worker processes in the foreground; Ctrl+C to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSupervisor(app, count)
		},
	}
	start.Flags().IntVar(&count, "count", 1, "number of workers to start")
	root.AddCommand(start)

	root.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Signal the pid file's worker processes to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			sv := supervisor.New(app.Boot.DataDir, app.Store, app.Log)
			return sv.Stop()
		},
	})

	return root
}

func runSupervisor(app *App, count int) error {
	lock, err := lockfile.Acquire(app.Boot.DataDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sv := supervisor.New(app.Boot.DataDir, app.Store, app.Log)
	if err := sv.Start(count); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sv.RunReactivationLoop(ctx, time.Duration(app.Store.Config().PollIntervalMS())*time.Millisecond)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	fmt.Printf("Started %d worker(s). Press Ctrl+C to shut down gracefully.\n", count)
	<-sigCh

	cancel()
	fmt.Println("Shutting down workers...")
	return sv.Stop()
}

// workerRunCmd is the hidden subcommand the supervisor re-execs this binary
// with to run exactly one worker process (spec.md §4.3/§9: workers are OS
// processes, not goroutines).
func workerRunCmd(app *App) *cobra.Command {
	var name string
	c := &cobra.Command{
		Use:    supervisor.WorkerRunSubcommand,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				cancel()
			}()

			w := worker.New(name, app.Store, app.Log)
			pollInterval := time.Duration(app.Store.Config().PollIntervalMS()) * time.Millisecond
			w.Run(ctx, pollInterval)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "worker identifier")
	return c
}
