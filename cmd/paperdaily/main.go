package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Seeker214/SystemPaperDaily/internal/app"
	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/logging"
)

func main() {
	daemon := flag.Bool("daemon", false, "run on the configured daily schedule instead of once")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}

	run := application.Run
	if *daemon {
		run = application.RunScheduled
	}

	if err := run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
