package main

import (
	"errors"
	"fmt"
)

type ErrorType string

const (
	ValidationError ErrorType = "VALIDATION_ERROR"
	NotFoundError   ErrorType = "NOT_FOUND"
	ConflictError   ErrorType = "CONFLICT_ERROR"
	InternalError   ErrorType = "INTERNAL_ERROR"
)

// ErrCheckInFlight is returned when a check for the same monitor is already running.
var ErrCheckInFlight = errors.New("check already in flight")

// AppError is an error surfaced to API callers.
type AppError struct {
	Type    ErrorType      `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string, details map[string]any) *AppError {
	return &AppError{Type: ValidationError, Message: msg, Details: details}
}

func NewNotFoundError(msg string, details map[string]any) *AppError {
	return &AppError{Type: NotFoundError, Message: msg, Details: details}
}

func NewConflictError(msg string, err error, details map[string]any) *AppError {
	return &AppError{Type: ConflictError, Message: msg, Details: details, Err: err}
}

func NewInternalError(msg string, err error, details map[string]any) *AppError {
	return &AppError{Type: InternalError, Message: msg, Details: details, Err: err}
}

// IsType reports whether err is, or wraps, an AppError of the given type.
func IsType(err error, target ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == target
	}
	return false
}

func monitorNotFound(id string) *AppError {
	return NewNotFoundError("monitor not found", map[string]any{"id": id})
}
