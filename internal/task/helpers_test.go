package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const awaitTimeout = 5 * time.Second

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gate blocks "slow" tasks until opened. Tests defer open so that blocked
// workers are released before the cleanup shutdown runs.
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.ch) })
}

// testProcessor handles a small set of task types used across the tests
func testProcessor(release <-chan struct{}) ProcessorFunc {
	return func(_ context.Context, taskType string, payload json.RawMessage) (any, error) {
		switch taskType {
		case "echo":
			return payload, nil
		case "slow":
			<-release
			return payload, nil
		case "fail":
			return nil, errors.New("boom")
		case "panic":
			panic("worker exploded")
		case "goexit":
			runtime.Goexit()
			return nil, nil
		default:
			return map[string]string{"error": "unknown task type: " + taskType, "type": taskType}, nil
		}
	}
}

// newTestManager initializes a Manager and shuts it down when the test ends
func newTestManager(t *testing.T, proc Processor, workers int, config Config, opts ...Option) *Manager {
	t.Helper()

	m := NewManager(config, proc, setupTestLogger(), opts...)
	require.NoError(t, m.Initialize(workers))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func await(t *testing.T, f *Future) (json.RawMessage, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	return f.Await(ctx)
}

func isSettled(f *Future) bool {
	select {
	case <-f.Done():
		return true
	default:
		return false
	}
}

// assertStatsConsistent checks the counter identities that hold whenever
// the pool is quiescent
func assertStatsConsistent(t *testing.T, stats Stats) {
	t.Helper()

	tasks := stats.Tasks
	pending := uint64(stats.Queue.Current + stats.Queue.Processing)
	require.Equal(t, tasks.Queued+tasks.Rejected, tasks.Submitted, "submitted")
	require.Equal(t, tasks.Completed+pending, tasks.Queued, "queued")
	require.Equal(t, tasks.Completed+tasks.Rejected+pending, tasks.Submitted, "submitted vs completed")
	require.Equal(t, tasks.Succeeded+tasks.Failed+tasks.Crashed+tasks.Abandoned, tasks.Completed, "outcomes")
	require.Equal(t, stats.Workers.Busy+stats.Workers.Available, stats.Workers.Total, "workers")
}
