package task

import (
	"runtime"

	"github.com/coder/quartz"
)

// DefaultMaxQueueSize bounds the number of tasks awaiting assignment when
// neither Config nor the submission sets a limit
const DefaultMaxQueueSize = 1000

// Config holds configuration for the Manager
type Config struct {
	// MaxQueueSize is the default admission bound applied to each
	// submission. If zero or negative, DefaultMaxQueueSize is used.
	MaxQueueSize int

	// OnWorkerStart is called before a worker is spawned for a slot. An
	// error leaves the slot vacant until the next replacement cycle.
	OnWorkerStart func(slot int) error
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		MaxQueueSize: DefaultMaxQueueSize,
	}
}

// DefaultWorkerCount returns the pool size used when Initialize is given a
// non-positive count: one less than GOMAXPROCS, leaving a processor for the
// request-serving goroutines, and never less than one.
func DefaultWorkerCount() int {
	n := runtime.GOMAXPROCS(0) - 1
	if n < 1 {
		return 1
	}
	return n
}

// Option configures optional Manager collaborators
type Option func(*Manager)

// WithClock sets the clock used for enqueue, dispatch and processing times
func WithClock(clock quartz.Clock) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithMetrics reports pool activity to the given Prometheus collectors
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

type submitOptions struct {
	maxQueueSize int
}

// SubmitOption configures a single submission
type SubmitOption func(*submitOptions)

// WithMaxQueueSize overrides the admission bound for one submission.
// Non-positive values are ignored.
func WithMaxQueueSize(n int) SubmitOption {
	return func(o *submitOptions) {
		if n > 0 {
			o.maxQueueSize = n
		}
	}
}
