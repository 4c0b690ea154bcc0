// Package main implements the entry point for the staycrest task executor,
// which runs a bounded pool of workers and exposes it over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/vishalm/staycrest-sub000/internal/config"
	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
)

// main is the entry point for the staycrest server.
// It loads configuration, sets up logging, starts the worker pool and serves
// HTTP until SIGINT or SIGTERM, then drains the pool.
func main() {
	fmt.Println("Staycrest Task Executor Starting...")

	cfg, l, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(cfg, l)
	if err != nil {
		l.Error("Failed to start application", "error", err)
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		l.Error("Application exited with error", "error", err)
		log.Fatalf("Application error: %v", err)
	}
}

// initializeApp loads configuration, sets up structured logging and aligns
// GOMAXPROCS with the container CPU quota, which the default worker count
// is derived from.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		l.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		l.Warn("failed to set GOMAXPROCS from CPU quota", "error", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Pool.WorkerCount,
		"max_queue_size", cfg.Pool.MaxQueueSize)

	return cfg, l, nil
}
