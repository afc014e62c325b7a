package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
)

// ExecutionRepository stores records as <root>/executions/<workspace>/<id>.json.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir(workspaceID string) string {
	return filepath.Join(er.root, "executions", workspaceID)
}

func (er *ExecutionRepository) Save(_ context.Context, record *models.ExecutionRecord) error {
	if !safeSegment(record.WorkspaceID) || !safeSegment(record.ID) {
		return fmt.Errorf("invalid execution record %q in workspace %q", record.ID, record.WorkspaceID)
	}

	return writeJSON(filepath.Join(er.dir(record.WorkspaceID), record.ID+".json"), record)
}

func (er *ExecutionRepository) Get(_ context.Context, workspaceID, id string) (*models.ExecutionRecord, error) {
	if !safeSegment(workspaceID) || !safeSegment(id) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrExecutionNotFound, id)
	}

	var record models.ExecutionRecord

	err := readJSON(filepath.Join(er.dir(workspaceID), id+".json"), &record)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrExecutionNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &record, nil
}

func (er *ExecutionRepository) ListByWorkflow(ctx context.Context, workspaceID, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	if !safeSegment(workspaceID) {
		return []*models.ExecutionRecord{}, nil
	}

	files, err := listJSON(er.dir(workspaceID))
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, file := range files {
		record, err := er.Get(ctx, workspaceID, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}

	slices.SortFunc(records, func(a, b *models.ExecutionRecord) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}

		return strings.Compare(b.ID, a.ID)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}
