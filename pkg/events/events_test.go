package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event interface{ GetType() EventType }
		want  EventType
	}{
		{TriggerReceived{}, TriggerReceivedEvent},
		{WorkflowPublished{}, WorkflowPublishedEvent},
		{WorkflowUnpublished{}, WorkflowUnpublishedEvent},
		{WorkflowExecutionCompleted{}, WorkflowExecutionCompletedEvent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.GetType())
	}
}

func TestNewWorkflowExecutionCompleted(t *testing.T) {
	started := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(1500 * time.Millisecond)

	record := &models.ExecutionRecord{
		ID:          "exec-1",
		WorkflowID:  "wf-1",
		WorkspaceID: "ws-1",
		Mode:        models.ExecutionModeLive,
		Status:      models.ExecutionStatusPartialFailure,
		StartedAt:   started,
		CompletedAt: &completed,
		Nodes: []*models.NodeOutcome{
			{NodeID: "a", Status: models.NodeStatusSucceeded},
			{NodeID: "b", Status: models.NodeStatusTimedOut},
			{NodeID: "c", Status: models.NodeStatusSkipped},
			{NodeID: "d", Status: models.NodeStatusFailed},
		},
	}

	ev := NewWorkflowExecutionCompleted("evt-1", record)

	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, WorkflowExecutionCompletedEvent, ev.Type)
	assert.Equal(t, "ws-1", ev.WorkspaceID)
	assert.Equal(t, "exec-1", ev.ExecutionID)
	assert.Equal(t, 1500*time.Millisecond, ev.Duration)
	assert.Equal(t, []string{"b", "d"}, ev.FailedNodes)
}

func TestTriggerReceived_JSON(t *testing.T) {
	ev := TriggerReceived{
		BaseEvent: NewBaseEvent("evt-2", TriggerReceivedEvent, "ws-1", ""),
		Trigger: &models.TriggerEvent{
			WorkspaceID: "ws-1",
			TriggerType: models.TriggerTypeFieldChanged,
			TriggerData: map[string]any{"field": "stage", "new_value": "won"},
		},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "trigger.received", raw["type"])
	assert.Equal(t, "ws-1", raw["workspace_id"])
	assert.NotContains(t, raw, "workflow_id")

	trigger, ok := raw["trigger"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "field.changed", trigger["trigger_type"])
}
