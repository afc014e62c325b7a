package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	assert.NoError(t, fp.Close(t.Context()))
}

func TestPersistence_HealthCheck(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.Error(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()))
}

func TestWorkflowRepository_CreateAndGet(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	wf := testutil.CreateTestWorkflow()
	wf.ID = ""
	wf.Version = 0

	require.NoError(t, repo.Create(ctx, wf))
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, int64(1), wf.Version)

	got, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)

	assert.Equal(t, wf.Name, got.Name)
	assert.Equal(t, wf.TriggerType, got.TriggerType)
	require.Len(t, got.Nodes, 2)
	assert.IsType(t, &models.TriggerNode{}, got.Nodes[0].Data)
	assert.IsType(t, &models.ActionNode{}, got.Nodes[1].Data)
	assert.Equal(t, wf.Edges, got.Edges)

	err = repo.Create(ctx, wf)
	assert.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)
}

func TestWorkflowRepository_GetIsWorkspaceScoped(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	wf := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Create(ctx, wf))

	_, err := repo.Get(ctx, "ws-other", wf.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	_, err = repo.Get(ctx, wf.WorkspaceID, "../"+wf.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_SaveVersioning(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	wf := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Create(ctx, wf))

	first, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)

	second, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)

	first.Name = "Renamed once"
	require.NoError(t, repo.Save(ctx, first, 1))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "Renamed concurrently"
	err = repo.Save(ctx, second, second.Version)
	require.ErrorIs(t, err, persistence.ErrVersionConflict)

	stored, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed once", stored.Name)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, wf.CreatedAt.Unix(), stored.CreatedAt.Unix())

	missing := testutil.CreateTestWorkflow()
	assert.ErrorIs(t, repo.Save(ctx, missing, 1), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_Delete(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	wf := testutil.CreateTestWorkflow()
	require.NoError(t, repo.Create(ctx, wf))

	require.NoError(t, repo.Delete(ctx, wf.WorkspaceID, wf.ID))

	_, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, wf.WorkspaceID, wf.ID), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_List(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"Charlie", "Alpha", "Bravo"} {
		wf := testutil.CreateTestWorkflow()
		wf.Name = name
		wf.CreatedAt = base.Add(time.Duration(i) * time.Hour)

		if name == "Bravo" {
			wf.Module = models.ModuleTickets
		}

		require.NoError(t, repo.Create(ctx, wf))
	}

	other := testutil.CreateTestWorkflow(testutil.WithWorkspace("ws-other"))
	require.NoError(t, repo.Create(ctx, other))

	tests := []struct {
		name     string
		opts     persistence.ListWorkflowsOptions
		want     []string
		total    int64
		nextPage bool
		wantErr  error
	}{
		{
			name:  "default order is newest first",
			opts:  persistence.ListWorkflowsOptions{WorkspaceID: "ws-test"},
			want:  []string{"Bravo", "Alpha", "Charlie"},
			total: 3,
		},
		{
			name:  "by name ascending",
			opts:  persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", SortBy: "name", SortOrder: "asc"},
			want:  []string{"Alpha", "Bravo", "Charlie"},
			total: 3,
		},
		{
			name:     "paginated",
			opts:     persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", SortBy: "name", SortOrder: "asc", Limit: 2},
			want:     []string{"Alpha", "Bravo"},
			total:    3,
			nextPage: true,
		},
		{
			name:  "offset past the end",
			opts:  persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", Offset: 10},
			want:  []string{},
			total: 3,
		},
		{
			name:  "module filter",
			opts:  persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", Module: models.ModuleTickets},
			want:  []string{"Bravo"},
			total: 1,
		},
		{
			name:    "sql injection attempt is an invalid sort field",
			opts:    persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", SortBy: "name; DROP TABLE workflows; --"},
			wantErr: persistence.ErrInvalidSortField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)

			names := make([]string, 0, len(result.Workflows))
			for _, wf := range result.Workflows {
				names = append(names, wf.Name)
			}

			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.total, result.TotalCount)
			assert.Equal(t, tt.nextPage, result.HasNextPage)
		})
	}
}

func TestWorkflowRepository_FindPublishedByTrigger(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Workflows()
	ctx := t.Context()

	draft := testutil.CreateTestWorkflow()
	live := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusPublished))
	elsewhere := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusPublished), testutil.WithWorkspace("ws-b"))

	for _, wf := range []*models.Workflow{draft, live, elsewhere} {
		require.NoError(t, repo.Create(ctx, wf))
	}

	found, err := repo.FindPublishedByTrigger(ctx, "ws-test", models.TriggerTypeRecordCreated)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, live.ID, found[0].ID)

	found, err = repo.FindPublishedByTrigger(ctx, "", models.TriggerTypeRecordCreated)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = repo.FindPublishedByTrigger(ctx, "ws-test", models.TriggerTypeManual)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestExecutionRepository(t *testing.T) {
	repo := NewPersistence(t.TempDir()).Executions()
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"01A", "01B", "01C"} {
		record := &models.ExecutionRecord{
			ID:          id,
			WorkflowID:  "wf-1",
			WorkspaceID: "ws-test",
			Mode:        models.ExecutionModeLive,
			Status:      models.ExecutionStatusSucceeded,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			Nodes: []*models.NodeOutcome{
				{NodeID: "a", Kind: models.NodeKindAction, Status: models.NodeStatusSucceeded, Output: "ok"},
			},
		}
		require.NoError(t, repo.Save(ctx, record))
	}

	require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{ID: "01D", WorkflowID: "wf-2", WorkspaceID: "ws-test", StartedAt: base}))

	got, err := repo.Get(ctx, "ws-test", "01B")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", got.WorkflowID)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "ok", got.Nodes[0].Output)

	_, err = repo.Get(ctx, "ws-other", "01B")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	list, err := repo.ListByWorkflow(ctx, "ws-test", "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01C", list[0].ID)
	assert.Equal(t, "01B", list[1].ID)

	list, err = repo.ListByWorkflow(ctx, "ws-none", "wf-1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
