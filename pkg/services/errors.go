// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// ErrWorkflowNotFound covers workflows that do not exist and workflows
	// owned by someone else.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrValidation is returned before any store access for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthenticated is returned when no principal was supplied.
	ErrUnauthenticated = errors.New("principal is required")

	// ErrNotEntitled is returned when the principal's plan does not allow the operation.
	ErrNotEntitled = errors.New("principal is not entitled to this operation")

	// ErrVersionConflict is returned when a graph save was based on a stale version.
	ErrVersionConflict = errors.New("workflow version conflict")
)

// Error codes reported to API clients.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidPage     = "INVALID_PAGE"
	CodeInvalidPageSize = "INVALID_PAGE_SIZE"
	CodeNameRequired    = "NAME_REQUIRED"
	CodeInvalidGraph    = "INVALID_GRAPH"
	CodeInvalidNodeData = "INVALID_NODE_DATA"
	CodeNotFound        = "WORKFLOW_NOT_FOUND"
	CodeNotEntitled     = "NOT_ENTITLED"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeVersionConflict = "VERSION_CONFLICT"
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsConflictError checks if an error is a version conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     ErrValidation,
	}
}

func newNotFoundError(op string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    CodeNotFound,
		Message: "workflow not found",
		Err:     ErrWorkflowNotFound,
	}
}

// CodeOf returns the API error code carried by err, if any.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}

	return ""
}
