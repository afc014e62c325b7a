package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
)

// ExecutionRepository stores execution records as JSONB documents with indexed
// lookup columns.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal execution record: %w", err)
	}

	query := `
		INSERT INTO executions (id, workspace_id, workflow_id, mode, status, record, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			record = EXCLUDED.record,
			completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.WorkspaceID,
		record.WorkflowID,
		record.Mode,
		record.Status,
		data,
		record.StartedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution record: %w", err)
	}

	return nil
}

func (r *ExecutionRepository) Get(ctx context.Context, workspaceID, id string) (*models.ExecutionRecord, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT record FROM executions WHERE workspace_id = $1 AND id = $2`, workspaceID, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrExecutionNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query execution record: %w", err)
	}

	var record models.ExecutionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	return &record, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workspaceID, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	if limit <= 0 || limit > persistence.MaxListLimit {
		limit = persistence.MaxListLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT record FROM executions
		WHERE workspace_id = $1 AND workflow_id = $2
		ORDER BY started_at DESC, id DESC
		LIMIT $3
	`, workspaceID, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution records: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}

		var record models.ExecutionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution records: %w", err)
	}

	return records, nil
}
