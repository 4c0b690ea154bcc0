package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Future is a one-shot handle for the result of a submitted task.
// It is settled exactly once; later attempts are logged and ignored.
type Future struct {
	id     string
	done   chan struct{}
	once   sync.Once
	result json.RawMessage
	err    error
	logger *slog.Logger
}

func newFuture(id string, logger *slog.Logger) *Future {
	return &Future{
		id:     id,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID returns the task id assigned at submission
func (f *Future) ID() string {
	return f.id
}

// Done returns a channel that is closed once the Future is settled
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task settles or ctx is done. The returned
// context error does not affect the task itself.
func (f *Future) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits for the result and unmarshals it into v
func (f *Future) Decode(ctx context.Context, v any) error {
	data, err := f.Await(ctx)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode result of task %s: %w", f.id, err)
	}
	return nil
}

func (f *Future) resolve(data json.RawMessage) {
	f.settle(data, nil)
}

func (f *Future) fail(err error) {
	f.settle(nil, err)
}

func (f *Future) settle(data json.RawMessage, err error) {
	settled := false
	f.once.Do(func() {
		f.result = data
		f.err = err
		settled = true
		close(f.done)
	})

	if !settled {
		f.logger.Error("future already settled, ignoring second result",
			"task_id", f.id,
			"error", err)
	}
}
