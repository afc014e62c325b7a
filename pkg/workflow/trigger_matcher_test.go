package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFinder struct {
	workflows []*models.Workflow
	calls     int
	err       error
}

func (f *countingFinder) FindPublishedByTrigger(_ context.Context, workspaceID, triggerType string) ([]*models.Workflow, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	var out []*models.Workflow

	for _, wf := range f.workflows {
		if wf.WorkspaceID == workspaceID && wf.TriggerType == triggerType && wf.IsPublished() {
			out = append(out, wf)
		}
	}

	return out, nil
}

func fieldChangedWorkflow(config map[string]any) *models.Workflow {
	return testutil.CreateTestWorkflow(
		testutil.WithStatus(models.WorkflowStatusPublished),
		testutil.WithGraph(testutil.Graph(
			[]*models.Node{
				testutil.TriggerNode("t", models.TriggerTypeFieldChanged, config),
				testutil.ActionNode("a", "log"),
			},
			testutil.Edge("t", "a"),
		)),
	)
}

func TestTriggerMatcher_Filters(t *testing.T) {
	stage := fieldChangedWorkflow(map[string]any{"field": "stage"})
	won := fieldChangedWorkflow(map[string]any{"field": "stage", "to": "won"})
	owner := fieldChangedWorkflow(map[string]any{"field": "owner"})

	finder := &countingFinder{workflows: []*models.Workflow{stage, won, owner}}
	matcher := NewTriggerMatcher(finder, time.Minute, slog.Default())

	tests := []struct {
		name  string
		event *models.TriggerEvent
		want  []*models.Workflow
	}{
		{
			name: "field match",
			event: &models.TriggerEvent{
				WorkspaceID: "ws-test",
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "stage", "new_value": "lost"},
			},
			want: []*models.Workflow{stage},
		},
		{
			name: "field and value match",
			event: &models.TriggerEvent{
				WorkspaceID: "ws-test",
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "stage", "new_value": "won"},
			},
			want: []*models.Workflow{stage, won},
		},
		{
			name: "explicit workflow",
			event: &models.TriggerEvent{
				WorkspaceID: "ws-test",
				WorkflowID:  owner.ID,
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "owner"},
			},
			want: []*models.Workflow{owner},
		},
		{
			name: "other module",
			event: &models.TriggerEvent{
				WorkspaceID: "ws-test",
				Module:      models.ModuleTickets,
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "stage"},
			},
		},
		{
			name: "other workspace",
			event: &models.TriggerEvent{
				WorkspaceID: "ws-other",
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "stage"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := matcher.Match(context.Background(), tt.event)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestTriggerMatcher_CachesAndInvalidates(t *testing.T) {
	finder := &countingFinder{workflows: []*models.Workflow{fieldChangedWorkflow(nil)}}
	matcher := NewTriggerMatcher(finder, time.Minute, slog.Default())

	ev := &models.TriggerEvent{WorkspaceID: "ws-test", TriggerType: models.TriggerTypeFieldChanged}

	for range 3 {
		got, err := matcher.Match(context.Background(), ev)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	}

	assert.Equal(t, 1, finder.calls)

	matcher.InvalidateWorkspace("ws-other")
	_, err := matcher.Match(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 1, finder.calls)

	matcher.InvalidateWorkspace("ws-test")
	_, err = matcher.Match(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 2, finder.calls)
}

func TestTriggerMatcher_FinderError(t *testing.T) {
	finder := &countingFinder{err: errors.New("store down")}
	matcher := NewTriggerMatcher(finder, time.Minute, slog.Default())

	_, err := matcher.Match(context.Background(), &models.TriggerEvent{WorkspaceID: "ws", TriggerType: models.TriggerTypeManual})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store down")
}
