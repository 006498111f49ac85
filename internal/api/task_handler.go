package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lexigraph/lexigraph/internal/api/shared"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/platform/logger"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	taskService *task.Service
	caseStore   store.CaseStore
	logger      *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *task.Service, caseStore store.CaseStore, log *slog.Logger) *TaskHandler {
	if log == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		caseStore:   caseStore,
		logger:      log.With(slog.String("component", "task_handler")),
	}
}

// ProcessCase handles POST /cases/{caseID}/process requests.
// It verifies the caller owns the case, then enqueues a text
// extraction task and returns 202 Accepted with the task record.
func (h *TaskHandler) ProcessCase(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, caseID, ok := requireUserAndPathUUID(w, r, "caseID")
	if !ok {
		return
	}

	c, err := h.caseStore.GetByID(r.Context(), caseID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Ownership is checked at enqueue time and re-checked by the worker;
	// a task for a foreign case must never be created.
	if c.UploadedBy != userID {
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden,
			GetSafeErrorMessage(domain.ErrUnauthorized), domain.ErrUnauthorized)
		return
	}

	created, err := h.taskService.Create(r.Context(), domain.TaskTypeTextExtraction, userID, caseID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("case processing enqueued",
		slog.String("case_id", caseID.String()),
		slog.String("task_id", created.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(created))
}

// GetStatus handles GET /tasks/{taskID}/status requests.
func (h *TaskHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := requireUserAndPathUUID(w, r, "taskID")
	if !ok {
		return
	}

	t, err := h.taskService.Get(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if t.UserID != userID {
		shared.RespondWithErrorAndLog(w, r, http.StatusForbidden,
			GetSafeErrorMessage(domain.ErrUnauthorized), domain.ErrUnauthorized)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}

// List handles GET /tasks requests. Supports optional status, type and
// limit query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponse(tasks))
}

// Retry handles POST /tasks/{taskID}/retry requests. A successful
// retry creates a brand-new task and returns it with 202 Accepted.
func (h *TaskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, taskID, ok := requireUserAndPathUUID(w, r, "taskID")
	if !ok {
		return
	}

	retried, err := h.taskService.Retry(r.Context(), taskID, userID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Info("task retry enqueued",
		slog.String("previous_task_id", taskID.String()),
		slog.String("task_id", retried.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusAccepted, taskToResponse(retried))
}

// parseTaskFilter builds a store filter from query parameters.
func parseTaskFilter(r *http.Request) (store.TaskFilter, error) {
	var filter store.TaskFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.TaskStatus(raw)
		switch status {
		case domain.TaskStatusPending, domain.TaskStatusInProgress,
			domain.TaskStatusCompleted, domain.TaskStatusFailed:
			filter.Status = &status
		default:
			return filter, domain.ErrValidation
		}
	}

	if raw := r.URL.Query().Get("type"); raw != "" {
		taskType := domain.TaskType(raw)
		if !domain.IsValidTaskType(taskType) {
			return filter, domain.ErrInvalidTaskType
		}
		filter.Type = &taskType
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, domain.ErrValidation
		}
		filter.Limit = limit
	}

	return filter, nil
}
