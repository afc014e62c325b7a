package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/persistence/postgresql"
	"github.com/dukex/workgraph/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func TestMain(m *testing.M) {
	code := m.Run()

	if postgresContainer != nil {
		if err := testcontainers.TerminateContainer(postgresContainer); err != nil {
			slog.Error("Failed to terminate postgres container", "error", err)
		}
	}

	os.Exit(code)
}

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"executions", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("workgraph_test"),
			postgres.WithUsername("workgraph"),
			postgres.WithPassword("workgraph"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "executions", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	assert.NoError(t, p.HealthCheck(ctx))
}

func TestWorkflowRepository_CreateGetSave(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.Workflows()

	wf := testutil.CreateTestWorkflow()
	wf.ID = ""

	require.NoError(t, repo.Create(ctx, wf))
	assert.NotEmpty(t, wf.ID)
	assert.Equal(t, int64(1), wf.Version)

	got, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.Name, got.Name)
	assert.Equal(t, models.ModuleCRM, got.Module)
	assert.Equal(t, models.TriggerTypeRecordCreated, got.TriggerType)
	require.Len(t, got.Nodes, 2)
	assert.IsType(t, &models.ActionNode{}, got.Nodes[1].Data)
	assert.Equal(t, wf.Edges, got.Edges)
	assert.InDelta(t, 1.0, got.Viewport.Zoom, 0.0001)

	_, err = repo.Get(ctx, "ws-other", wf.ID)
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	assert.ErrorIs(t, repo.Create(ctx, wf), persistence.ErrWorkflowAlreadyExists)

	got.Name = "Renamed"
	require.NoError(t, repo.Save(ctx, got, 1))
	assert.Equal(t, int64(2), got.Version)

	stale := *wf
	stale.Name = "Stale"
	assert.ErrorIs(t, repo.Save(ctx, &stale, 1), persistence.ErrVersionConflict)

	stored, err := repo.Get(ctx, wf.WorkspaceID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)

	missing := testutil.CreateTestWorkflow()
	assert.ErrorIs(t, repo.Save(ctx, missing, 1), persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_ListAndDelete(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.Workflows()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := make([]string, 0, 3)

	for i, name := range []string{"Charlie", "Alpha", "Bravo"} {
		wf := testutil.CreateTestWorkflow()
		wf.Name = name
		wf.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, wf))

		ids = append(ids, wf.ID)
	}

	result, err := repo.List(ctx, persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Workflows, 2)
	assert.Equal(t, "Alpha", result.Workflows[0].Name)
	assert.Equal(t, int64(3), result.TotalCount)
	assert.True(t, result.HasNextPage)

	_, err = repo.List(ctx, persistence.ListWorkflowsOptions{WorkspaceID: "ws-test", SortBy: "id; DROP TABLE workflows"})
	assert.ErrorIs(t, err, persistence.ErrInvalidSortField)

	require.NoError(t, repo.Delete(ctx, "ws-test", ids[0]))
	assert.ErrorIs(t, repo.Delete(ctx, "ws-test", ids[0]), persistence.ErrWorkflowNotFound)

	result, err = repo.List(ctx, persistence.ListWorkflowsOptions{WorkspaceID: "ws-test"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)
	assert.Equal(t, "Bravo", result.Workflows[0].Name)
}

func TestWorkflowRepository_FindPublishedByTrigger(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.Workflows()

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
}

func TestExecutionRepository(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.Executions()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"01A", "01B", "01C"} {
		completed := base.Add(time.Duration(i)*time.Minute + time.Second)

		require.NoError(t, repo.Save(ctx, &models.ExecutionRecord{
			ID:          id,
			WorkflowID:  "wf-1",
			WorkspaceID: "ws-test",
			Mode:        models.ExecutionModeDryRun,
			Status:      models.ExecutionStatusPartialFailure,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: &completed,
			Nodes: []*models.NodeOutcome{
				{NodeID: "a", Kind: models.NodeKindAction, Status: models.NodeStatusFailed, ErrorKind: models.ErrorKindTimeout},
			},
		}))
	}

	got, err := repo.Get(ctx, "ws-test", "01A")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionModeDryRun, got.Mode)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, models.ErrorKindTimeout, got.Nodes[0].ErrorKind)

	_, err = repo.Get(ctx, "ws-test", "missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)

	list, err := repo.ListByWorkflow(ctx, "ws-test", "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01C", list[0].ID)
}
