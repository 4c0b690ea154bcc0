package task

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
)

// worker is the manager's handle for one worker goroutine. slot, generation,
// inbox and done are fixed at spawn; busy, currentTaskID and dispatchedAt are
// only touched by the manager while holding its mutex.
type worker struct {
	slot       int
	generation uint64
	inbox      chan dispatch
	done       chan struct{}

	busy          bool
	currentTaskID string
	dispatchedAt  time.Time
}

func newWorker(slot int, generation uint64) *worker {
	return &worker{
		slot:       slot,
		generation: generation,
		// The manager only dispatches to idle workers, so a single slot
		// keeps sends to the inbox from ever blocking.
		inbox: make(chan dispatch, 1),
		done:  make(chan struct{}),
	}
}

// WorkerInfo is a snapshot of one worker slot
type WorkerInfo struct {
	Slot          int        `json:"slot"`
	Generation    uint64     `json:"generation"`
	Busy          bool       `json:"busy"`
	CurrentTaskID string     `json:"currentTaskId,omitempty"`
	DispatchedAt  *time.Time `json:"dispatchedAt,omitempty"`
}

func (w *worker) info() WorkerInfo {
	info := WorkerInfo{
		Slot:          w.slot,
		Generation:    w.generation,
		Busy:          w.busy,
		CurrentTaskID: w.currentTaskID,
	}
	if w.busy {
		at := w.dispatchedAt
		info.DispatchedAt = &at
	}
	return info
}

// runWorker is the body of a worker goroutine. It processes dispatches until
// its inbox is closed, reporting every step on events. The deferred exit
// message reports exitAbnormal when the goroutine ends any other way than a
// closed inbox or a recovered panic, for example through runtime.Goexit.
func (m *Manager) runWorker(w *worker, events chan<- event) {
	code := exitAbnormal
	defer func() {
		events <- event{kind: eventExit, slot: w.slot, generation: w.generation, code: code}
		close(w.done)
	}()

	log := m.logger.With("worker_id", w.slot, "generation", w.generation)
	ctx := logger.WithLogger(context.Background(), log)

	events <- event{kind: eventStatus, slot: w.slot, generation: w.generation, status: WorkerStatusReady}

	for d := range w.inbox {
		if cause := m.execute(ctx, w, d, events); cause != nil {
			events <- event{kind: eventFault, slot: w.slot, generation: w.generation, taskID: d.ID, cause: cause}
			code = exitFault
			return
		}
	}

	log.Debug("worker inbox closed, exiting")
	code = exitClean
}

// execute runs one task and reports its completion. A panic in the processor
// is recovered and returned as the worker's fault.
func (m *Manager) execute(ctx context.Context, w *worker, d dispatch, events chan<- event) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			fault = &panicError{value: r, stack: debug.Stack()}
		}
	}()

	events <- event{
		kind:       eventStatus,
		slot:       w.slot,
		generation: w.generation,
		status:     WorkerStatusProcessing,
		taskID:     d.ID,
	}

	start := m.clock.Now()
	result, err := m.processor.Process(ctx, d.Type, d.Payload)

	done := event{
		kind:       eventComplete,
		slot:       w.slot,
		generation: w.generation,
		taskID:     d.ID,
	}
	if err == nil {
		done.data, err = encodeResult(result)
	}
	done.err = err
	done.processingTime = m.clock.Since(start)

	events <- done
	return nil
}

func encodeResult(result any) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task result: %w", err)
	}
	return data, nil
}
