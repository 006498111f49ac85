package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnauthorized is returned when a task's user does not own the
	// case it references, or an API caller requests a foreign resource.
	ErrUnauthorized = errors.New("unauthorized operation")

	// ErrInvalidInput is returned when a pipeline stage cannot run
	// because its input is missing, e.g. a case without a stored file
	// or entity extraction over empty text.
	ErrInvalidInput = errors.New("invalid input")
)
