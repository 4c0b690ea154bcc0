package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vishalm/staycrest-sub000/internal/redact"
)

// eventsPerWorker sizes the shared event channel. A worker emits at most a
// handful of events per task, so a small multiple of the pool size keeps
// workers from waiting on the router under normal load.
const eventsPerWorker = 4

// Manager owns a fixed set of worker goroutines and the queue of tasks
// waiting for them. All mutations of the queue and the worker table happen
// under mu; worker events are consumed by a single router goroutine.
type Manager struct {
	config    Config
	processor Processor
	logger    *slog.Logger
	clock     quartz.Clock
	metrics   *Metrics

	mu             sync.Mutex
	running        bool
	workers        []*worker
	queue          *taskQueue
	stats          counters
	nextGeneration uint64

	// events, stopRouter and routerDone belong to the current run and are
	// replaced on every Initialize
	events     chan event
	stopRouter chan struct{}
	routerDone chan struct{}

	// drained is closed once the most recent Shutdown has finished
	drained chan struct{}
}

// NewManager creates a Manager. No workers run until Initialize is called.
func NewManager(config Config, processor Processor, logger *slog.Logger, opts ...Option) *Manager {
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = DefaultMaxQueueSize
	}

	m := &Manager{
		config:    config,
		processor: processor,
		logger:    logger.With("component", "task_manager"),
		clock:     quartz.NewReal(),
		queue:     newTaskQueue(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize starts workerCount workers bound to slots 0..workerCount-1.
// A non-positive count means DefaultWorkerCount. Calling Initialize on a
// running Manager does nothing. Workers whose start hook fails leave their
// slot vacant; ErrNoWorkers is returned only if every slot stayed vacant.
func (m *Manager) Initialize(workerCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if m.drained != nil {
		select {
		case <-m.drained:
			m.drained = nil
		default:
			return fmt.Errorf("%w: previous shutdown is still draining", ErrPoolShutdown)
		}
	}

	if workerCount <= 0 {
		workerCount = DefaultWorkerCount()
		m.logger.Debug("using default worker count", "worker_count", workerCount)
	}

	m.events = make(chan event, workerCount*eventsPerWorker)
	m.stopRouter = make(chan struct{})
	m.routerDone = make(chan struct{})
	m.workers = make([]*worker, workerCount)
	m.running = true

	go m.route(m.events, m.stopRouter, m.routerDone)

	started := 0
	for slot := range m.workers {
		if m.spawnLocked(slot) {
			started++
		}
	}

	if started == 0 {
		m.running = false
		m.workers = nil
		close(m.stopRouter)
		<-m.routerDone
		return fmt.Errorf("%w: %d slots requested", ErrNoWorkers, workerCount)
	}

	m.logger.Info("worker pool initialized",
		"worker_count", workerCount,
		"started", started,
		"max_queue_size", m.config.MaxQueueSize)

	m.observeLocked()
	m.scheduleLocked()
	return nil
}

// spawnLocked starts a new worker generation for slot. It reports whether
// the slot is now occupied.
func (m *Manager) spawnLocked(slot int) bool {
	if m.config.OnWorkerStart != nil {
		if err := m.config.OnWorkerStart(slot); err != nil {
			m.logger.Error("failed to start worker, slot left vacant",
				"worker_id", slot,
				"error", redact.Error(err))
			return false
		}
	}

	m.nextGeneration++
	w := newWorker(slot, m.nextGeneration)
	m.workers[slot] = w

	go m.runWorker(w, m.events)
	return true
}

// Running reports whether the Manager accepts submissions
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Submit queues a task and returns its Future. It never blocks: admission
// is decided synchronously and a rejected task's Future is already settled
// with ErrQueueFull on return.
func (m *Manager) Submit(taskType string, payload any, opts ...SubmitOption) *Future {
	options := submitOptions{maxQueueSize: m.config.MaxQueueSize}
	for _, opt := range opts {
		opt(&options)
	}

	id := uuid.NewString()
	future := newFuture(id, m.logger)

	data, err := json.Marshal(payload)
	if err != nil {
		future.fail(newTaskError(id, taskType, fmt.Errorf("%w: %v", ErrInvalidPayload, err)))
		return future
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		future.fail(ErrPoolNotRunning)
		return future
	}

	if total, _ := m.workerCountsLocked(); total == 0 && m.refillLocked() == 0 {
		m.logger.Error("task rejected, no workers could be started",
			"task_id", id,
			"task_type", taskType)
		future.fail(fmt.Errorf("%w: every worker slot is vacant", ErrNoWorkers))
		return future
	}

	if waiting := m.queue.waitingLen(); waiting >= options.maxQueueSize {
		m.stats.rejected++
		m.metrics.taskRejected(taskType)
		m.logger.Warn("task rejected, queue full",
			"task_id", id,
			"task_type", taskType,
			"queue_len", waiting,
			"queue_cap", options.maxQueueSize)
		future.fail(fmt.Errorf("%w: %d tasks waiting, limit %d", ErrQueueFull, waiting, options.maxQueueSize))
		return future
	}

	m.queue.push(&record{
		id:         id,
		taskType:   taskType,
		payload:    data,
		future:     future,
		enqueuedAt: m.clock.Now(),
		workerID:   -1,
	})
	m.stats.queued++
	m.stats.observeQueueLength(m.queue.waitingLen())
	m.metrics.taskSubmitted(taskType)

	m.logger.Debug("task enqueued",
		"task_id", id,
		"task_type", taskType,
		"queue_len", m.queue.waitingLen())

	m.scheduleLocked()
	return future
}

// scheduleLocked pairs idle workers, in slot order, with the oldest tasks
// awaiting assignment until either runs out.
func (m *Manager) scheduleLocked() {
	defer m.observeLocked()

	if !m.running {
		return
	}

	for _, w := range m.workers {
		if w == nil || w.busy {
			continue
		}

		rec := m.queue.nextWaiting()
		if rec == nil {
			return
		}

		now := m.clock.Now()
		m.queue.markProcessing(rec, w.slot)
		w.busy = true
		w.currentTaskID = rec.id
		w.dispatchedAt = now

		w.inbox <- dispatch{ID: rec.id, Type: rec.taskType, Payload: rec.payload}

		m.logger.Debug("task dispatched",
			"task_id", rec.id,
			"task_type", rec.taskType,
			"worker_id", w.slot,
			"queued_for", now.Sub(rec.enqueuedAt))
	}
}

// route consumes worker events until stop is closed, then handles whatever
// is still buffered. Callers close stop only after every worker has exited,
// so nothing is sent once the buffer is empty.
func (m *Manager) route(events <-chan event, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case ev := <-events:
			m.handle(ev)
		case <-stop:
			for {
				select {
				case ev := <-events:
					m.handle(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) handle(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.currentWorkerLocked(ev.slot, ev.generation)
	if w == nil {
		m.logger.Debug("ignoring event from replaced worker",
			"event", ev.kind.String(),
			"worker_id", ev.slot,
			"generation", ev.generation)
		return
	}

	switch ev.kind {
	case eventStatus:
		m.logger.Debug("worker status",
			"worker_id", ev.slot,
			"status", string(ev.status),
			"task_id", ev.taskID)

	case eventComplete:
		m.completeLocked(w, ev)

	case eventFault:
		var perr *panicError
		if errors.As(ev.cause, &perr) {
			m.logger.Error("worker panicked",
				"worker_id", w.slot,
				"task_id", ev.taskID,
				"error", redact.Error(perr),
				"stack", string(perr.stack))
		}
		m.crashLocked(w, ev.cause)

	case eventExit:
		if ev.code == exitClean {
			m.logger.Debug("worker exited", "worker_id", w.slot)
			return
		}
		m.crashLocked(w, fmt.Errorf("worker exited with code %d", ev.code))
	}
}

// currentWorkerLocked returns the worker in slot if it belongs to generation
func (m *Manager) currentWorkerLocked(slot int, generation uint64) *worker {
	if slot < 0 || slot >= len(m.workers) {
		return nil
	}
	w := m.workers[slot]
	if w == nil || w.generation != generation {
		return nil
	}
	return w
}

func (m *Manager) completeLocked(w *worker, ev event) {
	w.busy = false
	w.currentTaskID = ""
	w.dispatchedAt = time.Time{}
	defer m.scheduleLocked()

	rec := m.queue.remove(ev.taskID)
	if rec == nil {
		m.logger.Warn("completion for unknown task ignored",
			"task_id", ev.taskID,
			"worker_id", w.slot)
		return
	}

	m.stats.observeProcessing(ev.processingTime)
	m.metrics.taskProcessed(rec.taskType, ev.processingTime)

	if ev.err != nil {
		m.stats.failed++
		m.metrics.taskCompleted(rec.taskType, OutcomeFailed)
		m.logger.Warn("task failed",
			"task_id", rec.id,
			"task_type", rec.taskType,
			"worker_id", w.slot,
			"error", redact.Error(ev.err))
		rec.future.fail(newTaskError(rec.id, rec.taskType, ev.err))
		return
	}

	m.stats.succeeded++
	m.metrics.taskCompleted(rec.taskType, OutcomeSucceeded)
	m.logger.Debug("task completed",
		"task_id", rec.id,
		"task_type", rec.taskType,
		"worker_id", w.slot,
		"processing_time", ev.processingTime)
	rec.future.resolve(ev.data)
}

// crashLocked fails the crashed worker's in-flight task and, while the pool
// is running, refills the slot and every other vacant slot.
func (m *Manager) crashLocked(w *worker, cause error) {
	m.logger.Error("worker crashed",
		"worker_id", w.slot,
		"generation", w.generation,
		"task_id", w.currentTaskID,
		"error", redact.Error(cause))

	if w.currentTaskID != "" {
		if rec := m.queue.remove(w.currentTaskID); rec != nil {
			m.stats.crashed++
			m.metrics.taskCompleted(rec.taskType, OutcomeCrashed)
			rec.future.fail(&WorkerCrashError{TaskID: rec.id, WorkerID: w.slot, Cause: cause})
		}
	}

	m.workers[w.slot] = nil
	defer m.scheduleLocked()

	if !m.running {
		return
	}

	if m.refillLocked() == 0 {
		if total, _ := m.workerCountsLocked(); total == 0 {
			m.failWaitingLocked(fmt.Errorf("%w: every worker slot is vacant", ErrNoWorkers))
		}
	}
}

// refillLocked spawns a worker into every vacant slot and returns how many
// were started
func (m *Manager) refillLocked() int {
	started := 0
	for slot, cur := range m.workers {
		if cur != nil {
			continue
		}
		if m.spawnLocked(slot) {
			started++
			m.stats.replaced++
			m.metrics.workerReplaced()
			m.logger.Info("worker replaced",
				"worker_id", slot,
				"generation", m.workers[slot].generation)
		}
	}
	return started
}

// failWaitingLocked fails every task still awaiting assignment. They are
// counted as abandoned.
func (m *Manager) failWaitingLocked(err error) {
	var failed int
	for {
		rec := m.queue.nextWaiting()
		if rec == nil {
			break
		}
		m.queue.remove(rec.id)
		m.stats.abandoned++
		m.metrics.taskCompleted(rec.taskType, OutcomeAbandoned)
		rec.future.fail(err)
		failed++
	}
	if failed > 0 {
		m.logger.Error("no workers left, failed waiting tasks",
			"failed_tasks", failed,
			"error", err)
	}
}

// observeLocked publishes pool gauges
func (m *Manager) observeLocked() {
	total, busy := m.workerCountsLocked()
	m.metrics.setPool(total, busy, m.queue.waitingLen())
}

func (m *Manager) workerCountsLocked() (total, busy int) {
	for _, w := range m.workers {
		if w == nil {
			continue
		}
		total++
		if w.busy {
			busy++
		}
	}
	return total, busy
}

// Stats returns a snapshot of pool statistics
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total, busy := m.workerCountsLocked()
	return Stats{
		Workers: WorkerStats{
			Total:     total,
			Busy:      busy,
			Available: total - busy,
		},
		Queue: QueueStats{
			Current:    m.queue.waitingLen(),
			Processing: m.queue.len() - m.queue.waitingLen(),
			Max:        m.stats.maxQueueLength,
			Limit:      m.config.MaxQueueSize,
		},
		Tasks:           m.stats.taskStats(),
		WorkersReplaced: m.stats.replaced,
	}
}

// Workers returns a snapshot of every occupied worker slot in slot order
func (m *Manager) Workers() []WorkerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]WorkerInfo, 0, len(m.workers))
	for _, w := range m.workers {
		if w != nil {
			infos = append(infos, w.info())
		}
	}
	return infos
}

// Shutdown stops accepting tasks and terminates every worker. Workers finish
// their current task first and its result is still delivered. Tasks that
// were never assigned fail with ErrPoolShutdown. If ctx ends before the
// workers have exited, Shutdown returns the context error and draining
// continues in the background; a later Shutdown call waits for it again.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		drained := m.drained
		m.mu.Unlock()
		if drained == nil {
			return nil
		}
		return waitDrained(ctx, drained)
	}

	m.running = false
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		if w != nil {
			close(w.inbox)
			workers = append(workers, w)
		}
	}
	drained := make(chan struct{})
	m.drained = drained
	stop, routerDone := m.stopRouter, m.routerDone

	m.logger.Info("shutting down worker pool",
		"workers", len(workers),
		"queued", m.queue.waitingLen(),
		"processing", m.queue.len()-m.queue.waitingLen())
	m.mu.Unlock()

	go m.finishShutdown(workers, stop, routerDone, drained)

	return waitDrained(ctx, drained)
}

func (m *Manager) finishShutdown(workers []*worker, stop, routerDone, drained chan struct{}) {
	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error {
			<-w.done
			return nil
		})
	}
	_ = g.Wait()

	close(stop)
	<-routerDone

	m.mu.Lock()
	abandoned := m.queue.drain()
	for _, rec := range abandoned {
		m.stats.abandoned++
		m.metrics.taskCompleted(rec.taskType, OutcomeAbandoned)
		rec.future.fail(ErrPoolShutdown)
	}
	m.workers = nil
	m.observeLocked()
	m.mu.Unlock()

	m.logger.Info("worker pool shut down", "abandoned_tasks", len(abandoned))
	close(drained)
}

func waitDrained(ctx context.Context, drained <-chan struct{}) error {
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers to exit: %w", ctx.Err())
	}
}
