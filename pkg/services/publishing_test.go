package services

import (
	"errors"
	"testing"

	"github.com/dukex/workgraph/pkg/events"
	"github.com/dukex/workgraph/pkg/graph"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishing_Publish(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, testutil.CreateTestWorkflow())

	wf, err := f.publishing.Publish(t.Context(), created.WorkspaceID, created.ID)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusPublished, wf.Status)
	assert.NotNil(t, wf.PublishedAt)
	assert.Equal(t, int64(2), wf.Version)

	evs := published[events.WorkflowPublished](f.bus)
	require.Len(t, evs, 1)
	assert.Equal(t, wf.ID, evs[0].WorkflowID)
	assert.Equal(t, models.TriggerTypeRecordCreated, evs[0].TriggerType)
	assert.Equal(t, int64(2), evs[0].Version)

	t.Run("publishing twice is an invalid transition", func(t *testing.T) {
		_, err := f.publishing.Publish(t.Context(), wf.WorkspaceID, wf.ID)
		require.Error(t, err)
		assert.True(t, IsConflictError(err))
	})
}

func TestPublishing_PublishRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name  string
		graph models.Graph
		code  graph.ViolationCode
	}{
		{
			name:  "no trigger",
			graph: testutil.Graph([]*models.Node{testutil.ActionNode("a", "log")}),
			code:  graph.ViolationMissingTrigger,
		},
		{
			name: "no reachable action",
			graph: testutil.Graph([]*models.Node{
				testutil.TriggerNode("trigger", models.TriggerTypeRecordCreated, nil),
				testutil.ActionNode("a", "log"),
			}),
			code: graph.ViolationNoReachableAction,
		},
		{
			name: "invalid trigger config",
			graph: testutil.Graph(
				[]*models.Node{
					testutil.TriggerNode("trigger", models.TriggerTypeFieldChanged, map[string]any{}),
					testutil.ActionNode("a", "log"),
				},
				testutil.Edge("trigger", "a"),
			),
			code: graph.ViolationInvalidTriggerConfig,
		},
		{
			name: "bad cron expression",
			graph: testutil.Graph(
				[]*models.Node{
					testutil.TriggerNode("trigger", models.TriggerTypeScheduleCron, map[string]any{"cron": "every day"}),
					testutil.ActionNode("a", "log"),
				},
				testutil.Edge("trigger", "a"),
			),
			code: graph.ViolationInvalidTriggerConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			created := f.create(t, testutil.CreateTestWorkflow(testutil.WithGraph(tt.graph)))

			_, err := f.publishing.Publish(t.Context(), created.WorkspaceID, created.ID)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.True(t, (&graph.ValidationResult{Violations: verr.Violations}).Has(tt.code))

			stored, err := f.workflows.Get(t.Context(), created.WorkspaceID, created.ID)
			require.NoError(t, err)
			assert.Equal(t, models.WorkflowStatusDraft, stored.Status)
			assert.Equal(t, int64(1), stored.Version)

			assert.Empty(t, published[events.WorkflowPublished](f.bus))
		})
	}
}

func TestPublishing_Unpublish(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, testutil.CreateTestWorkflow())

	wf, err := f.publishing.Publish(t.Context(), created.WorkspaceID, created.ID)
	require.NoError(t, err)

	first, err := f.publishing.Unpublish(t.Context(), wf.WorkspaceID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, first.Status)
	assert.Nil(t, first.PublishedAt)

	second, err := f.publishing.Unpublish(t.Context(), wf.WorkspaceID, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, second.Status)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, first.Graph, second.Graph)

	assert.Len(t, published[events.WorkflowUnpublished](f.bus), 1)
}

func TestPublishing_Validate(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, testutil.CreateTestWorkflow())

	result, err := f.publishing.Validate(t.Context(), created.WorkspaceID, created.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = f.publishing.Validate(t.Context(), created.WorkspaceID, "missing")
	assert.True(t, IsNotFound(err))
}

func TestPublishing_InvalidatesCaches(t *testing.T) {
	f := newFixture(t)
	cache := &invalidations{}

	notifier := NewNotifier(f.bus, testLogger(), cache)
	publishing := NewPublishing(f.persistence, nil, notifier)

	created := f.create(t, testutil.CreateTestWorkflow())

	_, err := publishing.Publish(t.Context(), created.WorkspaceID, created.ID)
	require.NoError(t, err)

	_, err = publishing.Unpublish(t.Context(), created.WorkspaceID, created.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"ws-test", "ws-test"}, cache.workspaces)
}
