package errors

import (
	"errors"
	"fmt"
)

// Error types for different failure classes
type ErrorType string

const (
	ErrorTypeInsufficientData ErrorType = "insufficient_data"
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeUpstream         ErrorType = "upstream"
	ErrorTypeInternal         ErrorType = "internal"
	ErrorTypeNotFound         ErrorType = "not_found"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

// NewInsufficientDataError signals that a minimum sample requirement was not
// met. It is an expected, recoverable condition: callers assembling a report
// should omit the section and continue with the rest.
func NewInsufficientDataError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInsufficientData,
		Code:      "INSUFFICIENT_DATA",
		Message:   message,
		Retryable: false,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:      ErrorTypeNotFound,
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("%s not found", resource),
		Retryable: false,
	}
}

// NewUpstreamError wraps a repository or query failure. These propagate to
// the caller unmodified; the core performs no retries.
func NewUpstreamError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeUpstream,
		Code:      "UPSTREAM_FAILURE",
		Message:   message,
		Retryable: true,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsInsufficientData reports whether err is the expected short-series case.
func IsInsufficientData(err error) bool {
	return IsType(err, ErrorTypeInsufficientData)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
