package task

import (
	"errors"
	"fmt"
)

// Common errors returned by the Manager and delivered through Futures
var (
	ErrQueueFull      = errors.New("task queue is full")
	ErrPoolNotRunning = errors.New("worker pool is not running")
	ErrPoolShutdown   = errors.New("worker pool is shutting down")
	ErrWorkerCrashed  = errors.New("worker crashed while processing task")
	ErrNoWorkers      = errors.New("no workers could be started")
	ErrInvalidPayload = errors.New("invalid task payload")
	ErrTaskFailed     = errors.New("task failed")
)

// TaskError reports a task whose handler returned an error. It matches
// ErrTaskFailed and unwraps to the handler's error.
type TaskError struct {
	TaskID  string
	Type    string
	Message string
	Err     error
}

func newTaskError(taskID, taskType string, err error) *TaskError {
	return &TaskError{
		TaskID:  taskID,
		Type:    taskType,
		Message: err.Error(),
		Err:     err,
	}
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %s", e.TaskID, e.Type, e.Message)
}

// Is reports whether target is ErrTaskFailed
func (e *TaskError) Is(target error) bool {
	return target == ErrTaskFailed
}

// Unwrap returns the handler's error
func (e *TaskError) Unwrap() error {
	return e.Err
}

// WorkerCrashError is delivered to the Future of a task whose worker
// panicked or exited while processing it. The task is not requeued.
type WorkerCrashError struct {
	TaskID   string
	WorkerID int
	Cause    error
}

func (e *WorkerCrashError) Error() string {
	return fmt.Sprintf("worker %d crashed while processing task %s: %v", e.WorkerID, e.TaskID, e.Cause)
}

// Is reports whether target is ErrWorkerCrashed
func (e *WorkerCrashError) Is(target error) bool {
	return target == ErrWorkerCrashed
}

// Unwrap returns the crash cause
func (e *WorkerCrashError) Unwrap() error {
	return e.Cause
}

// panicError carries a recovered panic value and the worker stack
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
