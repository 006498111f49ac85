package api

import (
	"errors"
	"net/http"

	"github.com/lexigraph/lexigraph/internal/auth"
	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/network"
	"github.com/lexigraph/lexigraph/internal/queue"
	"github.com/lexigraph/lexigraph/internal/store"
	"github.com/lexigraph/lexigraph/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error
// types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound),
		errors.Is(err, store.ErrCaseNotFound),
		errors.Is(err, network.ErrEntityNotFound):
		return http.StatusNotFound

	// Conflict errors: retry requested in an incompatible state
	case errors.Is(err, task.ErrNotRetryable),
		errors.Is(err, task.ErrRetryExhausted):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// The delivery log is down
	case errors.Is(err, queue.ErrUnavailable),
		errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal
// details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, domain.ErrUnauthorized):
		return "You do not own this resource"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrCaseNotFound):
		return "Case not found"

	case errors.Is(err, network.ErrEntityNotFound):
		return "Entity not found"

	case errors.Is(err, task.ErrNotRetryable):
		return "Only failed tasks can be retried"

	case errors.Is(err, task.ErrRetryExhausted):
		return "Task retry limit reached"

	case errors.Is(err, domain.ErrInvalidTaskType):
		return "Invalid task type"

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	case errors.Is(err, queue.ErrUnavailable),
		errors.Is(err, queue.ErrClosed):
		return "Task queue is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}
