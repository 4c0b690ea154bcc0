package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vishalm/staycrest-sub000/internal/api/middleware"
	"github.com/vishalm/staycrest-sub000/internal/api/shared"
	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
	"github.com/vishalm/staycrest-sub000/internal/processor"
	"github.com/vishalm/staycrest-sub000/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gate blocks "slow" tasks until opened
type gate struct {
	ch   chan struct{}
	once sync.Once
}

func newGate() *gate { return &gate{ch: make(chan struct{})} }

func (g *gate) open() { g.once.Do(func() { close(g.ch) }) }

// testProcessor runs the real handlers, plus "slow", "fail" and "panic" types
func testProcessor(release <-chan struct{}) task.ProcessorFunc {
	handlers := processor.New(setupTestLogger())
	return func(ctx context.Context, taskType string, payload json.RawMessage) (any, error) {
		switch taskType {
		case "slow":
			<-release
			return payload, nil
		case "fail":
			return nil, errors.New("boom")
		case "panic":
			panic("handler exploded")
		default:
			return handlers.Process(ctx, taskType, payload)
		}
	}
}

func newTestPool(t *testing.T, release <-chan struct{}, workers int) *task.Manager {
	t.Helper()

	m := task.NewManager(task.DefaultConfig(), testProcessor(release), setupTestLogger())
	require.NoError(t, m.Initialize(workers))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, m.Shutdown(ctx))
	})
	return m
}

func submit(t *testing.T, h *TaskHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h.SubmitTask(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSubmitTask_Completed(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 2), setupTestLogger())

	w := submit(t, h, `{"type":"echo","payload":{"msg":"hi"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "echo", resp.Type)
	assert.Equal(t, TaskStatusCompleted, resp.Status)
	assert.JSONEq(t, `{"msg":"hi"}`, string(resp.Result))
}

func TestSubmitTask_TraceIDCorrelatesTask(t *testing.T) {
	capture := logger.NewCaptureHandler()
	h := NewTaskHandler(newTestPool(t, nil, 1), setupTestLogger())
	traced := middleware.TraceMiddleware(slog.New(capture))(http.HandlerFunc(h.SubmitTask))

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewBufferString(`{"type":"echo","payload":1}`))
	w := httptest.NewRecorder()
	traced.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	submitted := capture.Find("task submitted")
	require.Len(t, submitted, 1)
	assert.Equal(t, w.Header().Get(shared.TraceIDHeader), submitted[0]["trace_id"])
	assert.Equal(t, resp.ID, submitted[0]["task_id"])
}

func TestSubmitTask_RealHandler(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	w := submit(t, h, `{"type":"hash","payload":{"data":"staycrest"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var result processor.HashResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "sha256", result.Algorithm)
	assert.Len(t, result.Digest, 64)
}

func TestSubmitTask_UnknownType(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	w := submit(t, h, `{"type":"teleport","payload":{}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	var result processor.UnknownTypeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "teleport", result.Type)
	assert.Contains(t, result.Error, "unknown task type")
}

func TestSubmitTask_NoWait(t *testing.T) {
	g := newGate()
	defer g.open()
	pool := newTestPool(t, g.ch, 1)
	h := NewTaskHandler(pool, setupTestLogger())

	w := submit(t, h, `{"type":"slow","payload":1,"wait":false}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, TaskStatusAccepted, resp.Status)
	assert.Empty(t, resp.Result)

	assert.Equal(t, 1, pool.Stats().Workers.Busy)
}

func TestSubmitTask_BadRequests(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name:    "malformed json",
			body:    `{"type":"echo",`,
			message: "Invalid request format",
		},
		{
			name:    "unknown field",
			body:    `{"type":"echo","priority":9}`,
			message: "Invalid request format",
		},
		{
			name:    "missing type",
			body:    `{"payload":{}}`,
			message: "Invalid Type: required field",
		},
		{
			name:    "queue size out of range",
			body:    `{"type":"echo","maxQueueSize":1000000}`,
			message: "Invalid MaxQueueSize: too large",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := submit(t, h, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.message, decodeError(t, w).Error)
		})
	}
}

func TestSubmitTask_QueueFull(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	// The first task occupies the only worker, the second fills the queue.
	require.Equal(t, http.StatusAccepted, submit(t, h, `{"type":"slow","payload":1,"wait":false,"maxQueueSize":1}`).Code)
	require.Equal(t, http.StatusAccepted, submit(t, h, `{"type":"slow","payload":2,"wait":false,"maxQueueSize":1}`).Code)

	for _, wait := range []string{"false", "true"} {
		w := submit(t, h, `{"type":"slow","payload":3,"maxQueueSize":1,"wait":`+wait+`}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "Task queue is full, try again later", decodeError(t, w).Error)
	}
}

func TestSubmitTask_TaskFailure(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	w := submit(t, h, `{"type":"fail","payload":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Task failed: boom", decodeError(t, w).Error)

	w = submit(t, h, `{"type":"hash","payload":{"data":"x","algorithm":"md5"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "md5")
}

func TestSubmitTask_WorkerCrash(t *testing.T) {
	g := newGate()
	defer g.open()
	pool := newTestPool(t, g.ch, 1)
	h := NewTaskHandler(pool, setupTestLogger())

	w := submit(t, h, `{"type":"panic","payload":{}}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Worker crashed while processing the task", decodeError(t, w).Error)

	// The replacement worker keeps serving requests.
	w = submit(t, h, `{"type":"echo","payload":"still here"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint64(1), pool.Stats().WorkersReplaced)
}

func TestSubmitTask_RequestDeadline(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 1), setupTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/tasks",
		bytes.NewBufferString(`{"type":"slow","payload":1}`)).WithContext(ctx)
	w := httptest.NewRecorder()
	h.SubmitTask(w, req)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "Task did not complete before the request ended", decodeError(t, w).Error)
}

func TestSubmitTask_PoolNotRunning(t *testing.T) {
	pool := task.NewManager(task.DefaultConfig(), testProcessor(nil), setupTestLogger())
	h := NewTaskHandler(pool, setupTestLogger())

	w := submit(t, h, `{"type":"echo","payload":{}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Worker pool is not available", decodeError(t, w).Error)
}

func TestGetStats(t *testing.T) {
	g := newGate()
	defer g.open()
	h := NewTaskHandler(newTestPool(t, g.ch, 2), setupTestLogger())

	require.Equal(t, http.StatusOK, submit(t, h, `{"type":"echo","payload":1}`).Code)
	require.Equal(t, http.StatusUnprocessableEntity, submit(t, h, `{"type":"fail","payload":1}`).Code)

	w := httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/pool/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats task.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Workers.Total)
	assert.Equal(t, uint64(2), stats.Tasks.Submitted)
	assert.Equal(t, uint64(2), stats.Tasks.Completed)
	assert.Equal(t, uint64(1), stats.Tasks.Succeeded)
	assert.Equal(t, uint64(1), stats.Tasks.Failed)
	assert.Equal(t, task.DefaultMaxQueueSize, stats.Queue.Limit)

	// Field names are part of the API
	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Contains(t, raw["tasks"], "avgProcessingTimeMs")
	assert.Contains(t, raw["queue"], "max")
	assert.Contains(t, raw["queue"], "limit")
}

func TestGetWorkers(t *testing.T) {
	g := newGate()
	defer g.open()
	pool := newTestPool(t, g.ch, 2)
	h := NewTaskHandler(pool, setupTestLogger())

	require.Equal(t, http.StatusAccepted, submit(t, h, `{"type":"slow","payload":1,"wait":false}`).Code)

	w := httptest.NewRecorder()
	h.GetWorkers(w, httptest.NewRequest(http.MethodGet, "/api/pool/workers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp WorkersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Workers, 2)
	assert.True(t, resp.Workers[0].Busy)
	assert.NotEmpty(t, resp.Workers[0].CurrentTaskID)
	assert.NotNil(t, resp.Workers[0].DispatchedAt)
	assert.False(t, resp.Workers[1].Busy)
}
