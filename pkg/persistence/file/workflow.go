package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository stores definitions as <root>/workflows/<workspace>/<id>.json.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) workspaceDir(workspaceID string) string {
	return filepath.Join(wr.root, "workflows", workspaceID)
}

func (wr *WorkflowRepository) path(workspaceID, id string) string {
	return filepath.Join(wr.workspaceDir(workspaceID), id+".json")
}

// Create stores a new workflow.
func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	if !safeSegment(workflow.WorkspaceID) {
		return fmt.Errorf("invalid workspace id %q", workflow.WorkspaceID)
	}

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if !safeSegment(workflow.ID) {
		return fmt.Errorf("invalid workflow id %q", workflow.ID)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	filePath := wr.path(workflow.WorkspaceID, workflow.ID)
	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewWorkflowError("Create", workflow.WorkspaceID, workflow.ID, persistence.ErrWorkflowAlreadyExists)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version = 1

	return writeJSON(filePath, workflow)
}

// Get returns a workflow of a workspace by its ID.
func (wr *WorkflowRepository) Get(_ context.Context, workspaceID, id string) (*models.Workflow, error) {
	return wr.load(workspaceID, id)
}

func (wr *WorkflowRepository) load(workspaceID, id string) (*models.Workflow, error) {
	if !safeSegment(workspaceID) || !safeSegment(id) {
		return nil, persistence.NewWorkflowError("Get", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	var workflow models.Workflow

	err := readJSON(wr.path(workspaceID, id), &workflow)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, persistence.NewWorkflowError("Get", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) all(workspaceID string) ([]*models.Workflow, error) {
	if !safeSegment(workspaceID) {
		return nil, nil
	}

	files, err := listJSON(wr.workspaceDir(workspaceID))
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		workflow, err := wr.load(workspaceID, file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// List returns paginated and filtered workflows of one workspace.
func (wr *WorkflowRepository) List(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	workflows, err := wr.all(opts.WorkspaceID)
	if err != nil {
		return nil, err
	}

	return persistence.Page(workflows, opts), nil
}

// Save replaces a stored workflow when its version matches expectedVersion.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow, expectedVersion int64) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	current, err := wr.load(workflow.WorkspaceID, workflow.ID)
	if err != nil {
		return err
	}

	if current.Version != expectedVersion {
		return persistence.NewWorkflowError("Save", workflow.WorkspaceID, workflow.ID, persistence.ErrVersionConflict)
	}

	next := *workflow
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	next.Version = expectedVersion + 1

	if err := writeJSON(wr.path(workflow.WorkspaceID, workflow.ID), &next); err != nil {
		return err
	}

	*workflow = next

	return nil
}

// Delete removes a workflow.
func (wr *WorkflowRepository) Delete(_ context.Context, workspaceID, id string) error {
	if !safeSegment(workspaceID) || !safeSegment(id) {
		return persistence.NewWorkflowError("Delete", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.path(workspaceID, id))
	if errors.Is(err, fs.ErrNotExist) {
		return persistence.NewWorkflowError("Delete", workspaceID, id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// FindPublishedByTrigger lists the published workflows with the given trigger type.
// An empty workspaceID searches every workspace.
func (wr *WorkflowRepository) FindPublishedByTrigger(_ context.Context, workspaceID, triggerType string) ([]*models.Workflow, error) {
	workspaces := []string{workspaceID}

	if workspaceID == "" {
		var err error

		workspaces, err = wr.workspaces()
		if err != nil {
			return nil, err
		}
	}

	var out []*models.Workflow

	for _, ws := range workspaces {
		workflows, err := wr.all(ws)
		if err != nil {
			return nil, err
		}

		for _, workflow := range workflows {
			if workflow.IsPublished() && workflow.TriggerType == triggerType {
				out = append(out, workflow)
			}
		}
	}

	return out, nil
}

func (wr *WorkflowRepository) workspaces() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(wr.root, "workflows"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var out []string

	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, entry.Name())
		}
	}

	return out, nil
}
