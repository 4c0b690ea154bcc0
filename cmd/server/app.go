package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vishalm/staycrest-sub000/internal/config"
	"github.com/vishalm/staycrest-sub000/internal/monitor"
	"github.com/vishalm/staycrest-sub000/internal/processor"
	"github.com/vishalm/staycrest-sub000/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger   *slog.Logger
	registry *prometheus.Registry

	// Task handling
	processor *processor.Processor
	pool      *task.Manager
	reporter  *monitor.Reporter
}

// newApplication creates the processor, the worker pool and the health
// reporter, and starts the pool. The returned application owns them until
// cleanup.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.processor = processor.New(logger)
	metrics := task.NewMetrics(app.registry, app.processor.Types()...)

	app.pool = task.NewManager(
		task.Config{MaxQueueSize: cfg.Pool.MaxQueueSize},
		app.processor,
		logger,
		task.WithMetrics(metrics),
	)
	if err := app.pool.Initialize(cfg.Pool.WorkerCount); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	reporter, err := monitor.NewReporter(app.pool, monitor.Config{
		Schedule:          cfg.Monitor.StatsSchedule,
		LongTaskThreshold: time.Duration(cfg.Monitor.LongTaskThresholdSeconds) * time.Second,
	}, logger, nil)
	if err != nil {
		app.shutdownPool()
		return nil, fmt.Errorf("failed to create pool health reporter: %w", err)
	}
	app.reporter = reporter
	app.reporter.Start()

	logger.Info("Application initialized successfully",
		"task_types", app.processor.Types())
	return app, nil
}

// Run serves HTTP until ctx is canceled or the process is signaled, then
// drains the pool.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// shutdownTimeout bounds HTTP shutdown and pool draining
func (app *application) shutdownTimeout() time.Duration {
	return time.Duration(app.config.Server.ShutdownTimeoutSeconds) * time.Second
}

// shutdownPool drains the pool within the configured timeout
func (app *application) shutdownPool() {
	ctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout())
	defer cancel()

	if err := app.pool.Shutdown(ctx); err != nil {
		app.logger.Error("Worker pool did not drain before the deadline", "error", err)
	}
}

// cleanup stops the health reporter and drains the worker pool.
func (app *application) cleanup(ctx context.Context) error {
	var errs []error

	if app.reporter != nil {
		if err := app.reporter.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop health reporter: %w", err))
		}
	}

	if app.pool != nil {
		if err := app.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain worker pool: %w", err))
		}
		stats := app.pool.Stats()
		app.logger.Info("Worker pool drained",
			"completed", stats.Tasks.Completed,
			"abandoned", stats.Tasks.Abandoned,
			"rejected", stats.Tasks.Rejected)
	}

	app.logger.Info("Application shutdown completed")
	return errors.Join(errs...)
}
