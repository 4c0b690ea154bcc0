package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalm/staycrest-sub000/internal/config"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a configuration suitable for tests: an ephemeral port,
// two workers and no scheduled health report.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:                   0,
			LogLevel:               "debug",
			ShutdownTimeoutSeconds: 5,
		},
		Pool: config.PoolConfig{
			WorkerCount:  2,
			MaxQueueSize: 10,
		},
		Limits: config.LimitsConfig{
			SubmitRPS:   1000,
			SubmitBurst: 1000,
		},
		Monitor: config.MonitorConfig{
			LongTaskThresholdSeconds: 30,
		},
	}
}

// newTestApplication starts an application and drains it when the test ends
func newTestApplication(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	app, err := newApplication(cfg, setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, app.cleanup(ctx))
	})
	return app
}

func TestNewApplication(t *testing.T) {
	app := newTestApplication(t, testConfig())

	assert.True(t, app.pool.Running())
	assert.Equal(t, 2, app.pool.Stats().Workers.Total)
	assert.Equal(t, 10, app.pool.Stats().Queue.Limit)
	assert.NotEmpty(t, app.processor.Types())
}

func TestNewApplicationInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.StatsSchedule = "every now and then"

	app, err := newApplication(cfg, setupTestLogger())
	require.Error(t, err)
	assert.Nil(t, app)
	assert.Contains(t, err.Error(), "pool health reporter")
}

func TestNewApplicationWithSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Monitor.StatsSchedule = "@every 1h"

	app := newTestApplication(t, cfg)
	assert.NotNil(t, app.reporter)
}

func TestCleanupDrainsPool(t *testing.T) {
	app, err := newApplication(testConfig(), setupTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.cleanup(ctx))

	assert.False(t, app.pool.Running())
	assert.Equal(t, 0, app.pool.Stats().Workers.Total)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app, err := newApplication(testConfig(), setupTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after the context was canceled")
	}
	assert.False(t, app.pool.Running())
}
