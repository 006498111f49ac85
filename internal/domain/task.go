package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Possible task status values. A task starts in pending, moves to
// in_progress when a worker claims it, and ends in completed or failed.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// TaskType identifies which pipeline stage a task executes.
type TaskType string

// The closed set of task types. Dispatch happens through a stage
// registry keyed by TaskType, never through string comparison at
// call sites.
const (
	TaskTypeTextExtraction   TaskType = "text_extraction"
	TaskTypeEntityExtraction TaskType = "entity_extraction"
)

// MaxTaskRetries bounds how many times a failed task may be retried.
const MaxTaskRetries = 3

// Common validation errors for Task.
var (
	ErrEmptyTaskID     = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID = errors.New("task user ID cannot be empty")
	ErrEmptyTaskCaseID = errors.New("task case ID cannot be empty")
	ErrInvalidTaskType = errors.New("invalid task type")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")
)

// Task represents one unit of asynchronous pipeline work tied to a
// case and its owning user. A task is mutated only by the worker that
// claims it; retries are modeled as brand-new tasks carrying an
// incremented RetryCount.
type Task struct {
	ID          uuid.UUID      `json:"task_id"`
	Type        TaskType       `json:"task_type"`
	UserID      uuid.UUID      `json:"user_id"`
	CaseID      uuid.UUID      `json:"case_id"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewTask creates a new pending Task for the given type, user and case.
// It generates a new UUID for the task ID and sets the creation
// timestamp. Returns an error if validation fails.
func NewTask(taskType TaskType, userID, caseID uuid.UUID) (*Task, error) {
	t := &Task{
		ID:        uuid.New(),
		Type:      taskType,
		UserID:    userID,
		CaseID:    caseID,
		Status:    TaskStatusPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}

	if t.CaseID == uuid.Nil {
		return ErrEmptyTaskCaseID
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !isValidTaskStatus(t.Status) {
		return ErrInvalidStatus
	}

	if t.Progress < 0 || t.Progress > 100 {
		return ErrInvalidProgress
	}

	return nil
}

// IsTerminal reports whether the status is completed or failed.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether the state machine permits moving
// from s to next. Terminal states permit no further transitions.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusInProgress
	case TaskStatusInProgress:
		return next.IsTerminal()
	default:
		return false
	}
}

// IsValidTaskType checks if the given type is in the closed task type set.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeTextExtraction, TaskTypeEntityExtraction:
		return true
	default:
		return false
	}
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
