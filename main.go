package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Pranav1703/queuectl/cmd"
	"github.com/Pranav1703/queuectl/internal/config"
	"github.com/Pranav1703/queuectl/internal/logging"
	"github.com/Pranav1703/queuectl/internal/model"
	"github.com/Pranav1703/queuectl/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	boot := config.NewBootstrap()

	log, err := logging.New(boot.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return 1
	}
	defer log.Sync()

	if err := os.MkdirAll(boot.DataDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create data directory:", err)
		return 1
	}
	logsDir := filepath.Join(boot.DataDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logs directory:", err)
		return 1
	}

	dbPath := filepath.Join(boot.DataDir, "queuectl.db")
	st, err := store.Open(dbPath, logsDir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open store:", err)
		return 1
	}
	defer st.Close()

	app := &cmd.App{Store: st, Boot: boot, Log: log}
	root := cmd.NewRoot(app)

	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

func exitCodeFor(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)

	switch model.Kind(err) {
	case model.KindInvalidInput:
		return 2
	case model.KindAlreadyExists, model.KindInvalidState, model.KindNotFound:
		return 3
	default:
		return 1
	}
}
