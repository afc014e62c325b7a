// Package persistence defines the storage contracts for workflow definitions and their
// execution records.
package persistence

import (
	"context"

	"github.com/dukex/workgraph/pkg/models"
)

type Persistence interface {
	Workflows() WorkflowRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Definitions are scoped to a workspace;
// a lookup with the wrong workspace behaves as if the definition did not exist.
type WorkflowRepository interface {
	// Create stores a new definition. An empty ID is assigned, Version is set to 1.
	Create(ctx context.Context, workflow *models.Workflow) error

	Get(ctx context.Context, workspaceID, id string) (*models.Workflow, error)

	List(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)

	// Save fully replaces a stored definition when its stored version equals
	// expectedVersion. On success workflow.Version is incremented. A stale version
	// returns ErrVersionConflict.
	Save(ctx context.Context, workflow *models.Workflow, expectedVersion int64) error

	Delete(ctx context.Context, workspaceID, id string) error

	// FindPublishedByTrigger lists published definitions with the given trigger type.
	// An empty workspaceID searches every workspace.
	FindPublishedByTrigger(ctx context.Context, workspaceID, triggerType string) ([]*models.Workflow, error)
}

// ExecutionRepository stores execution records.
type ExecutionRepository interface {
	Save(ctx context.Context, record *models.ExecutionRecord) error

	Get(ctx context.Context, workspaceID, id string) (*models.ExecutionRecord, error)

	// ListByWorkflow returns the newest records first, at most limit of them.
	ListByWorkflow(ctx context.Context, workspaceID, workflowID string, limit int) ([]*models.ExecutionRecord, error)
}
