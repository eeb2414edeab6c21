package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails attaches a details payload rendered alongside the error.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	e.Details = details
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest reports malformed or invalid input.
func BadRequest(message string, err error) *AppError {
	return NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
}

// NotFound reports a missing resource.
func NotFound(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

// Conflict reports a request that clashes with the current resource state.
func Conflict(code, message string, err error) *AppError {
	return NewAppError(code, message, http.StatusConflict, err)
}

// Internal wraps an unexpected failure without leaking its text to clients.
func Internal(err error) *AppError {
	return NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
