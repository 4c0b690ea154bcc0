package task

import (
	"context"
	"encoding/json"
	"time"
)

// Processor executes a single task inside a worker. Implementations run
// synchronously; a returned error fails the task without affecting the
// worker, while a panic crashes the worker and triggers its replacement.
type Processor interface {
	Process(ctx context.Context, taskType string, payload json.RawMessage) (any, error)
}

// ProcessorFunc adapts an ordinary function to the Processor interface
type ProcessorFunc func(ctx context.Context, taskType string, payload json.RawMessage) (any, error)

// Process calls f(ctx, taskType, payload)
func (f ProcessorFunc) Process(ctx context.Context, taskType string, payload json.RawMessage) (any, error) {
	return f(ctx, taskType, payload)
}

// record is the manager's bookkeeping for one admitted task. It lives in the
// queue from enqueue until completion, crash or shutdown removes it.
type record struct {
	id         string
	taskType   string
	payload    json.RawMessage
	future     *Future
	processing bool
	enqueuedAt time.Time
	workerID   int
}
