package api

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Task response statuses
const (
	TaskStatusCompleted = "completed"
	TaskStatusAccepted  = "accepted"
)

// SubmitTaskRequest defines the payload for the task submission endpoint.
type SubmitTaskRequest struct {
	// Type selects the handler. Unknown types produce a structured
	// "unknown task type" result rather than an error.
	Type string `json:"type" validate:"required,max=64"`

	// Payload is passed to the handler unchanged
	Payload json.RawMessage `json:"payload"`

	// MaxQueueSize overrides the admission bound for this submission
	MaxQueueSize int `json:"maxQueueSize,omitempty" validate:"omitempty,gte=1,lte=100000"`

	// Wait controls whether the response carries the result (default) or
	// returns as soon as the task is admitted
	Wait *bool `json:"wait,omitempty"`
}

// Validate checks the request beyond its struct tags.
func (r *SubmitTaskRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return errors.New("payload is not valid JSON")
	}
	return nil
}

// ShouldWait reports whether the caller wants the task result in the response
func (r *SubmitTaskRequest) ShouldWait() bool {
	return r.Wait == nil || *r.Wait
}

// TaskResponse defines the successful response for the task submission endpoint.
type TaskResponse struct {
	// ID is the task id assigned by the pool
	ID string `json:"id"`

	// Type echoes the submitted task type
	Type string `json:"type"`

	// Status is "completed" when Result is set, "accepted" otherwise
	Status string `json:"status"`

	// Result is the handler's output
	Result json.RawMessage `json:"result,omitempty"`
}
