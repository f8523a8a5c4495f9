// Package main is the entry point for the catalog backfill job. It fills in
// missing embeddings and coordinates once, or on BACKFILL_SCHEDULE when set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/onnwee/agenda/internal/app"
	"github.com/onnwee/agenda/internal/config"
	"github.com/onnwee/agenda/internal/jobs"
	"github.com/onnwee/agenda/internal/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	once := flag.Bool("once", false, "run once even when a schedule is configured")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Agenda Catalog Backfill")
		fmt.Println()
		fmt.Println("Usage: backfill [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	os.Exit(run(*configPath, *once))
}

func run(configPath string, once bool) int {
	cfg, errs := config.Load(configPath)
	env := "development"
	if cfg != nil && cfg.Env != "" {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)
	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("failed to close resources", "error", err)
		}
	}()

	runner := jobs.NewRunner(a.Pipeline, cfg.BackfillLimit, a.JobMetrics, logger)

	if once || cfg.BackfillSchedule == "" {
		if err := runner.RunOnce(ctx); err != nil {
			logger.Error("backfill failed", "error", err)
			return 1
		}
		return 0
	}

	if err := runner.Schedule(ctx, cfg.BackfillSchedule); err != nil {
		logger.Error("backfill scheduler failed", "error", err)
		return 1
	}
	return 0
}
