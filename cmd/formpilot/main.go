package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xenwave/formpilot/cmd"
	"github.com/xenwave/formpilot/internal/observability"
)

func main() {
	// Ctrl+C mid-application must tear the queue down cleanly, never leave
	// a half-filled form submitted.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
