package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a board engine error code.
type ErrorCode string

const (
	ErrPlacement      ErrorCode = "PLACEMENT"       // invalid index or container, recovered as a no-op
	ErrNotFound       ErrorCode = "NOT_FOUND"       // stale item reference
	ErrPersist        ErrorCode = "PERSIST"         // durable write failed, item flagged for retry
	ErrStream         ErrorCode = "STREAM"          // annotation transport failed
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// BoardError represents a structured error with code, message, and details.
type BoardError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *BoardError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *BoardError) Unwrap() error {
	return e.Err
}

// NewPlacement creates an error for a move that cannot be applied.
func NewPlacement(msg string, details map[string]any) *BoardError {
	return &BoardError{
		Code:    ErrPlacement,
		Message: msg,
		Details: details,
	}
}

// NewNotFound creates an error for an item id that no container holds.
func NewNotFound(itemID string) *BoardError {
	return &BoardError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("item not found: %s", itemID),
		Details: map[string]any{"item_id": itemID},
	}
}

// NewPersonaNotFound creates an error for a persona id missing from the catalog.
func NewPersonaNotFound(personaID string) *BoardError {
	return &BoardError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("persona not found: %s", personaID),
		Details: map[string]any{"persona_id": personaID},
	}
}

// NewPersist wraps a durable store failure for one item.
func NewPersist(itemID string, err error) *BoardError {
	return &BoardError{
		Code:    ErrPersist,
		Message: fmt.Sprintf("bank deposit failed for %s", itemID),
		Details: map[string]any{"item_id": itemID},
		Err:     err,
	}
}

// NewStream wraps an annotation transport failure.
func NewStream(msg string, err error) *BoardError {
	return &BoardError{
		Code:    ErrStream,
		Message: msg,
		Err:     err,
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *BoardError {
	return &BoardError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *BoardError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &BoardError{
		Code:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err, or anything it wraps, is a BoardError with the given code.
func Is(err error, code ErrorCode) bool {
	var bErr *BoardError
	if stderrors.As(err, &bErr) {
		return bErr.Code == code
	}
	return false
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	var bErr *BoardError
	if !stderrors.As(err, &bErr) {
		return 500
	}
	switch bErr.Code {
	case ErrInvalidRequest, ErrPlacement:
		return 400
	case ErrNotFound:
		return 404
	case ErrPersist, ErrStream:
		return 502
	default:
		return 500
	}
}
