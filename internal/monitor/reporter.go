package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/robfig/cron/v3"

	"github.com/vishalm/staycrest-sub000/internal/task"
)

// queuePressureRatio is the fraction of the queue bound at which the report
// warns about backpressure
const queuePressureRatio = 0.8

// PoolSource provides the pool state the reporter reads
type PoolSource interface {
	Stats() task.Stats
	Workers() []task.WorkerInfo
}

// Config holds configuration for the Reporter
type Config struct {
	// Schedule is a cron expression with optional seconds field, or a
	// descriptor such as "@every 1m". Empty disables scheduling.
	Schedule string

	// LongTaskThreshold flags tasks held by one worker for longer than this.
	// If zero, defaults to 30 seconds.
	LongTaskThreshold time.Duration
}

// Report summarizes one health check
type Report struct {
	Stats            task.Stats
	NewCrashes       uint64
	NewRejections    uint64
	QueuePressure    bool
	LongRunningTasks []task.WorkerInfo
}

// Reporter logs pool health on a schedule
type Reporter struct {
	source PoolSource
	config Config
	logger *slog.Logger
	clock  quartz.Clock
	cron   *cron.Cron

	mu       sync.Mutex
	previous task.Stats
}

// NewReporter creates a Reporter. It returns an error if the schedule does
// not parse.
func NewReporter(source PoolSource, config Config, logger *slog.Logger, clock quartz.Clock) (*Reporter, error) {
	if config.LongTaskThreshold <= 0 {
		config.LongTaskThreshold = 30 * time.Second
	}
	if clock == nil {
		clock = quartz.NewReal()
	}

	r := &Reporter{
		source: source,
		config: config,
		logger: logger.With("component", "pool_monitor"),
		clock:  clock,
	}

	if config.Schedule == "" {
		return r, nil
	}

	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	r.cron = cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := r.cron.AddFunc(config.Schedule, func() { r.Check() }); err != nil {
		return nil, fmt.Errorf("invalid stats schedule '%s': %w", config.Schedule, err)
	}
	return r, nil
}

// Start begins scheduled reporting. It does nothing when no schedule is set.
func (r *Reporter) Start() {
	if r.cron == nil {
		r.logger.Info("pool health report disabled")
		return
	}
	r.logger.Info("starting pool health report", "schedule", r.config.Schedule)
	r.cron.Start()
}

// Stop halts scheduled reporting and waits for a running check to finish
// or ctx to end
func (r *Reporter) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pool health report to stop: %w", ctx.Err())
	}
}

// Check takes one report, logs it and returns it
func (r *Reporter) Check() Report {
	stats := r.source.Stats()
	workers := r.source.Workers()
	now := r.clock.Now()

	r.mu.Lock()
	report := Report{
		Stats:         stats,
		NewCrashes:    stats.Tasks.Crashed - r.previous.Tasks.Crashed,
		NewRejections: stats.Tasks.Rejected - r.previous.Tasks.Rejected,
	}
	r.previous = stats
	r.mu.Unlock()

	if stats.Queue.Limit > 0 {
		report.QueuePressure = float64(stats.Queue.Current) >= queuePressureRatio*float64(stats.Queue.Limit)
	}

	for _, w := range workers {
		if w.Busy && w.DispatchedAt != nil && now.Sub(*w.DispatchedAt) > r.config.LongTaskThreshold {
			report.LongRunningTasks = append(report.LongRunningTasks, w)
		}
	}

	r.log(report, now)
	return report
}

func (r *Reporter) log(report Report, now time.Time) {
	stats := report.Stats

	r.logger.Info("pool health",
		"workers_total", stats.Workers.Total,
		"workers_busy", stats.Workers.Busy,
		"queue_current", stats.Queue.Current,
		"queue_max_observed", stats.Queue.Max,
		"tasks_completed", stats.Tasks.Completed,
		"tasks_failed", stats.Tasks.Failed,
		"tasks_rejected", stats.Tasks.Rejected,
		"avg_processing_ms", stats.Tasks.AvgProcessingTimeMs,
		"workers_replaced", stats.WorkersReplaced)

	if report.NewCrashes > 0 {
		r.logger.Warn("workers crashed since last report", "count", report.NewCrashes)
	}

	if report.NewRejections > 0 {
		r.logger.Warn("tasks rejected since last report", "count", report.NewRejections)
	}

	if report.QueuePressure {
		r.logger.Warn("task queue near capacity",
			"queue_current", stats.Queue.Current,
			"queue_limit", stats.Queue.Limit)
	}

	for _, w := range report.LongRunningTasks {
		r.logger.Warn("long running task",
			"worker_id", w.Slot,
			"task_id", w.CurrentTaskID,
			"running_for", now.Sub(*w.DispatchedAt))
	}
}
