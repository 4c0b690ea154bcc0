package api

import (
	"log/slog"
	"net/http"

	"github.com/vishalm/staycrest-sub000/internal/api/shared"
	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
	"github.com/vishalm/staycrest-sub000/internal/task"
)

// maxRequestBodyBytes bounds a submission body
const maxRequestBodyBytes = 1 << 20

// TaskPool is the part of the worker pool the handlers use
type TaskPool interface {
	Submit(taskType string, payload any, opts ...task.SubmitOption) *task.Future
	Stats() task.Stats
	Workers() []task.WorkerInfo
}

// TaskHandler handles task submission and pool inspection requests.
type TaskHandler struct {
	pool   TaskPool
	logger *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(pool TaskPool, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		pool:   pool,
		logger: logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /api/tasks requests.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	var opts []task.SubmitOption
	if req.MaxQueueSize > 0 {
		opts = append(opts, task.WithMaxQueueSize(req.MaxQueueSize))
	}

	future := h.pool.Submit(req.Type, req.Payload, opts...)
	log.Debug("task submitted",
		"task_id", future.ID(),
		"task_type", req.Type,
		"wait", req.ShouldWait())

	if !req.ShouldWait() {
		// Admission failures settle the future before Submit returns.
		select {
		case <-future.Done():
			if _, err := future.Await(r.Context()); err != nil {
				HandleAPIError(w, r, err, "")
				return
			}
		default:
		}

		shared.RespondWithJSON(w, r, http.StatusAccepted, TaskResponse{
			ID:     future.ID(),
			Type:   req.Type,
			Status: TaskStatusAccepted,
		})
		return
	}

	result, err := future.Await(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{
		ID:     future.ID(),
		Type:   req.Type,
		Status: TaskStatusCompleted,
		Result: result,
	})
}

// GetStats handles GET /api/pool/stats requests.
func (h *TaskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.pool.Stats())
}

// WorkersResponse defines the response for the worker listing endpoint.
type WorkersResponse struct {
	Workers []task.WorkerInfo `json:"workers"`
}

// GetWorkers handles GET /api/pool/workers requests.
func (h *TaskHandler) GetWorkers(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, WorkersResponse{Workers: h.pool.Workers()})
}
