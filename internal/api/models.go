package api

import (
	"time"

	"github.com/lexigraph/lexigraph/internal/domain"
)

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	TaskID      string         `json:"task_id"`
	TaskType    string         `json:"task_type"`
	CaseID      string         `json:"case_id"`
	Status      string         `json:"status"`
	Progress    int            `json:"progress"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// taskToResponse transforms a domain task into its API representation.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:      t.ID.String(),
		TaskType:    string(t.Type),
		CaseID:      t.CaseID.String(),
		Status:      string(t.Status),
		Progress:    t.Progress,
		Result:      t.Result,
		Error:       t.Error,
		RetryCount:  t.RetryCount,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
}

// tasksToResponse transforms a task list.
func tasksToResponse(tasks []*domain.Task) TaskListResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToResponse(t))
	}
	return TaskListResponse{Tasks: out, Count: len(out)}
}
