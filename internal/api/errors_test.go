package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/vishalm/staycrest-sub000/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{
			name:           "nil error",
			err:            nil,
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name:           "queue full",
			err:            task.ErrQueueFull,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "wrapped queue full",
			err:            fmt.Errorf("%w: 3 tasks waiting, limit 3", task.ErrQueueFull),
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "pool not running",
			err:            task.ErrPoolNotRunning,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "pool shutting down",
			err:            task.ErrPoolShutdown,
			expectedStatus: http.StatusServiceUnavailable,
		},
		{
			name:           "worker crash",
			err:            &task.WorkerCrashError{TaskID: "t1", WorkerID: 2, Cause: errors.New("panic: nil map")},
			expectedStatus: http.StatusBadGateway,
		},
		{
			name:           "handler failure",
			err:            &task.TaskError{TaskID: "t1", Type: "hash", Message: "unsupported algorithm", Err: errors.New("unsupported algorithm")},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "request deadline",
			err:            context.DeadlineExceeded,
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name:           "request canceled",
			err:            fmt.Errorf("await: %w", context.Canceled),
			expectedStatus: http.StatusGatewayTimeout,
		},
		{
			name:           "unknown error",
			err:            errors.New("unknown error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "An unexpected error occurred",
		},
		{
			name:     "queue full hides counts",
			err:      fmt.Errorf("%w: 3 tasks waiting, limit 3", task.ErrQueueFull),
			expected: "Task queue is full, try again later",
		},
		{
			name:     "shutdown",
			err:      task.ErrPoolShutdown,
			expected: "Worker pool is not available",
		},
		{
			name:     "worker crash hides cause",
			err:      &task.WorkerCrashError{TaskID: "t1", WorkerID: 0, Cause: errors.New("panic: /srv/app/secret.go")},
			expected: "Worker crashed while processing the task",
		},
		{
			name:     "handler failure keeps message",
			err:      &task.TaskError{TaskID: "t1", Type: "hash", Message: "unsupported algorithm: md5"},
			expected: "Task failed: unsupported algorithm: md5",
		},
		{
			name:     "handler failure is redacted",
			err:      &task.TaskError{TaskID: "t1", Type: "derive_key", Message: "bad input password=hunter22"},
			expected: "Task failed: bad input password=[REDACTED]",
		},
		{
			name:     "deadline",
			err:      context.DeadlineExceeded,
			expected: "Task did not complete before the request ended",
		},
		{
			name:     "unknown error",
			err:      errors.New("database is on fire"),
			expected: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	type sample struct {
		Type         string `validate:"required"`
		MaxQueueSize int    `validate:"omitempty,gte=1,lte=10"`
	}
	v := validator.New()

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "required field",
			err:      v.Struct(sample{MaxQueueSize: 2}),
			expected: "Invalid Type: required field",
		},
		{
			name:     "too large",
			err:      v.Struct(sample{Type: "echo", MaxQueueSize: 11}),
			expected: "Invalid MaxQueueSize: too large",
		},
		{
			name:     "not a validation error",
			err:      errors.New("payload is not valid JSON"),
			expected: "Validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeValidationError(tt.err))
		})
	}
}

func TestGetValidationTagMessage(t *testing.T) {
	assert.Equal(t, "required field", getValidationTagMessage("required"))
	assert.Equal(t, "too small", getValidationTagMessage("gte"))
	assert.Equal(t, "too large", getValidationTagMessage("max"))
	assert.Equal(t, "invalid value", getValidationTagMessage("oneof"))
	assert.Equal(t, "validation failed", getValidationTagMessage("uuid"))
}
