// Package services implements the definition store, lifecycle and execution operations
// exposed by the API and the workers.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/workflow"
)

// Client errors (4xx).
var (
	// 400 Bad Request.
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidModule    = errors.New("invalid module")
	ErrValidationFailed = errors.New("workflow validation failed")

	// 404 Not Found.
	ErrNotFound = errors.New("not found")

	// 409 Conflict.
	ErrConflict = errors.New("conflict")

	ErrNoEventBus = errors.New("no event bus configured")
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

// ValidationError is returned when a definition fails the checks of an operation.
// It carries every violation found, never only the first.
type ValidationError struct {
	Op         string
	WorkflowID string
	Violations []graph.Violation
	Warnings   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: workflow %s has %d violation(s)", e.Op, e.WorkflowID, len(e.Violations))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func newValidationError(op, workflowID string, result *graph.ValidationResult) *ValidationError {
	return &ValidationError{
		Op:         op,
		WorkflowID: workflowID,
		Violations: result.Violations,
		Warnings:   result.Warnings,
	}
}

// NewInvalidRequest creates a 400 error with a message for the client.
func NewInvalidRequest(op, code, message string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     ErrInvalidRequest,
	}
}

// IsValidationError checks if an error should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidModule) ||
		errors.Is(err, ErrValidationFailed)
}

// IsNotFound checks if an error should return HTTP 404.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// translate maps storage and engine errors onto the service taxonomy. Errors it does not
// know are returned wrapped and surface as 500s.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case persistence.IsWorkflowNotFound(err), persistence.IsExecutionNotFound(err):
		return &ServiceError{Op: op, Code: "not_found", Err: fmt.Errorf("%w: %w", ErrNotFound, err)}
	case persistence.IsVersionConflict(err):
		return &ServiceError{Op: op, Code: "version_conflict", Message: "definition was modified concurrently, reload and retry", Err: fmt.Errorf("%w: %w", ErrConflict, err)}
	case errors.Is(err, persistence.ErrWorkflowAlreadyExists):
		return &ServiceError{Op: op, Code: "already_exists", Err: fmt.Errorf("%w: %w", ErrConflict, err)}
	case errors.Is(err, persistence.ErrInvalidSortField):
		return &ServiceError{Op: op, Code: "invalid_sort_field", Err: fmt.Errorf("%w: %w", ErrInvalidSortField, err)}
	case errors.Is(err, workflow.ErrInvalidTransition):
		return &ServiceError{Op: op, Code: "invalid_transition", Err: fmt.Errorf("%w: %w", ErrConflict, err)}
	case errors.Is(err, workflow.ErrWorkflowNotPublished):
		return &ServiceError{Op: op, Code: "not_published", Err: fmt.Errorf("%w: %w", ErrConflict, err)}
	case errors.Is(err, protocol.ErrRecordNotFound):
		return &ServiceError{Op: op, Code: "record_not_found", Err: fmt.Errorf("%w: %w", ErrNotFound, err)}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
