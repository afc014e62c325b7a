package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowAlreadyExists indicates a workflow with the same identifier already exists.
	ErrWorkflowAlreadyExists = errors.New("workflow already exists")

	// ErrVersionConflict indicates a save against a stale version.
	ErrVersionConflict = errors.New("workflow version conflict")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrInvalidSortField indicates a list was requested with an unsupported sort field.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op          string // Operation being performed (e.g., "Get", "Save", "Delete")
	WorkspaceID string
	WorkflowID  string
	Err         error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s in workspace %s: %v", e.Op, e.WorkflowID, e.WorkspaceID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewWorkflowError(op, workspaceID, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:          op,
		WorkspaceID: workspaceID,
		WorkflowID:  workflowID,
		Err:         err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionConflict checks if an error indicates a stale version.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
