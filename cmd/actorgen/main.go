package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spachava753/actorgen/internal/cmd"
)

var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	// Listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		slog.Info("interrupt received, finishing current row...", "signal", sig)
		cancel()
	}()

	if err := cmd.Execute(ctx); err != nil {
		if !errors.Is(err, cmd.ErrIncomplete) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		cancel()
		os.Exit(1)
	}
}
