package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// BackendErrorMessage describes a failed call to one of the remote APIs.
	BackendErrorMessage = "backend request failed"
	// BackendDecodeMessage describes a backend reply that could not be understood.
	BackendDecodeMessage = "invalid backend response"
	// ValidationErrorMessage describes input rejected before any network call.
	ValidationErrorMessage = "invalid input"
)

// AppError wraps an underlying error with an HTTP-like status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Validation marks err as a synchronous input rejection.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadRequest, ValidationErrorMessage)
}

// StatusOf returns the status carried by the first AppError in the chain,
// or 0 when there is none.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	return StatusOf(err) == http.StatusBadRequest
}
