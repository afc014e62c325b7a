package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const workflowColumns = `
			id
		  , workspace_id
		  , name
		  , description
		  , module
		  , trigger_type
		  , trigger_config
		  , status
		  , version
		  , nodes
		  , edges
		  , viewport
		  , created_at
		  , updated_at
		  , published_at`

// WorkflowRepository handles workflow-related database operations. The graph is stored
// in JSONB columns and always replaced as a whole.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

type graphColumns struct {
	triggerConfig []byte
	nodes         []byte
	edges         []byte
	viewport      []byte
}

func marshalGraph(workflow *models.Workflow) (*graphColumns, error) {
	var (
		cols graphColumns
		err  error
	)

	triggerConfig := workflow.TriggerConfig
	if triggerConfig == nil {
		triggerConfig = map[string]any{}
	}

	if cols.triggerConfig, err = json.Marshal(triggerConfig); err != nil {
		return nil, fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	nodes := workflow.Nodes
	if nodes == nil {
		nodes = []*models.Node{}
	}

	if cols.nodes, err = json.Marshal(nodes); err != nil {
		return nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edges := workflow.Edges
	if edges == nil {
		edges = []*models.Edge{}
	}

	if cols.edges, err = json.Marshal(edges); err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	if cols.viewport, err = json.Marshal(workflow.Viewport); err != nil {
		return nil, fmt.Errorf("failed to marshal viewport: %w", err)
	}

	return &cols, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		cols        graphColumns
		publishedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.WorkspaceID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Module,
		&workflow.TriggerType,
		&cols.triggerConfig,
		&workflow.Status,
		&workflow.Version,
		&cols.nodes,
		&cols.edges,
		&cols.viewport,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&publishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cols.triggerConfig, &workflow.TriggerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	if err := json.Unmarshal(cols.nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
	}

	if err := json.Unmarshal(cols.edges, &workflow.Edges); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
	}

	if err := json.Unmarshal(cols.viewport, &workflow.Viewport); err != nil {
		return nil, fmt.Errorf("failed to unmarshal viewport: %w", err)
	}

	if publishedAt.Valid {
		t := publishedAt.Time.UTC()
		workflow.PublishedAt = &t
	}

	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	return &workflow, nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

// Create inserts a new workflow with version 1.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version = 1

	cols, err := marshalGraph(workflow)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, workspace_id, name, description, module, trigger_type, trigger_config,
			status, version, nodes, edges, viewport, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.WorkspaceID,
		workflow.Name,
		workflow.Description,
		workflow.Module,
		workflow.TriggerType,
		cols.triggerConfig,
		workflow.Status,
		workflow.Version,
		cols.nodes,
		cols.edges,
		cols.viewport,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		workflow.PublishedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return persistence.NewWorkflowError("Create", workflow.WorkspaceID, workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) Get(ctx context.Context, workspaceID, id string) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
	`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, workspaceID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewWorkflowError("Get", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// List returns paginated and filtered workflows of one workspace.
func (r *WorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	where := `WHERE deleted_at IS NULL AND workspace_id = $1`
	args := []any{opts.WorkspaceID}

	if opts.Module != "" {
		args = append(args, opts.Module)
		where += fmt.Sprintf(" AND module = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, *opts.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	// SortBy and SortOrder are checked against an allowlist by Normalize.
	query := fmt.Sprintf(`SELECT %s FROM workflows %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		workflowColumns, where, opts.SortBy, opts.SortOrder, opts.SortOrder, len(args)+1, len(args)+2)

	workflows, err := r.queryWorkflows(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, err
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  total,
		HasNextPage: int64(opts.Offset+len(workflows)) < total,
	}, nil
}

// Save replaces the workflow row when the stored version equals expectedVersion.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow, expectedVersion int64) error {
	cols, err := marshalGraph(workflow)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	query := `
		UPDATE workflows SET
			name = $4,
			description = $5,
			module = $6,
			trigger_type = $7,
			trigger_config = $8,
			status = $9,
			nodes = $10,
			edges = $11,
			viewport = $12,
			published_at = $13,
			updated_at = $14,
			version = version + 1
		WHERE workspace_id = $1 AND id = $2 AND version = $3 AND deleted_at IS NULL
		RETURNING version, created_at
	`

	var (
		version   int64
		createdAt time.Time
	)

	err = r.db.QueryRowContext(ctx, query,
		workflow.WorkspaceID,
		workflow.ID,
		expectedVersion,
		workflow.Name,
		workflow.Description,
		workflow.Module,
		workflow.TriggerType,
		cols.triggerConfig,
		workflow.Status,
		cols.nodes,
		cols.edges,
		cols.viewport,
		workflow.PublishedAt,
		now,
	).Scan(&version, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, workflow.WorkspaceID, workflow.ID); getErr != nil {
			return getErr
		}

		return persistence.NewWorkflowError("Save", workflow.WorkspaceID, workflow.ID, persistence.ErrVersionConflict)
	}

	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	workflow.Version = version
	workflow.CreatedAt = createdAt.UTC()
	workflow.UpdatedAt = now

	return nil
}

// Delete soft deletes a workflow by setting deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, workspaceID, id string) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, workspaceID, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) FindPublishedByTrigger(ctx context.Context, workspaceID, triggerType string) ([]*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE deleted_at IS NULL
		  AND status = 'published'
		  AND trigger_type = $1
		  AND ($2::text = '' OR workspace_id = $2::text)
		ORDER BY created_at
	`

	return r.queryWorkflows(ctx, query, triggerType, workspaceID)
}
