// Package events defines the messages exchanged over the event bus: trigger deliveries
// and workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/workgraph/pkg/models"
)

type EventType string

// Topic carries every workgraph event.
const Topic = "workgraph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	TriggerReceivedEvent EventType = "trigger.received"

	WorkflowPublishedEvent   EventType = "workflow.published"
	WorkflowUnpublishedEvent EventType = "workflow.unpublished"

	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
)

type BaseEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	WorkspaceID string    `json:"workspace_id"`
	WorkflowID  string    `json:"workflow_id,omitempty"`
}

func NewBaseEvent(id string, eventType EventType, workspaceID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:          id,
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkspaceID: workspaceID,
		WorkflowID:  workflowID,
	}
}

// TriggerReceived delivers a trigger payload to the workers.
type TriggerReceived struct {
	BaseEvent

	Trigger *models.TriggerEvent `json:"trigger"`
}

func (TriggerReceived) GetType() EventType {
	return TriggerReceivedEvent
}

type WorkflowPublished struct {
	BaseEvent

	TriggerType string `json:"trigger_type"`
	Version     int64  `json:"version"`
}

func (WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

type WorkflowUnpublished struct {
	BaseEvent

	TriggerType string `json:"trigger_type"`
	Version     int64  `json:"version"`
}

func (WorkflowUnpublished) GetType() EventType {
	return WorkflowUnpublishedEvent
}

// WorkflowExecutionCompleted summarizes a finished run.
type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	Mode        models.ExecutionMode   `json:"mode"`
	Status      models.ExecutionStatus `json:"status"`
	Duration    time.Duration          `json:"duration"`
	FailedNodes []string               `json:"failed_nodes,omitempty"`
}

func (WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

// NewWorkflowExecutionCompleted builds the completion event of record.
func NewWorkflowExecutionCompleted(id string, record *models.ExecutionRecord) WorkflowExecutionCompleted {
	ev := WorkflowExecutionCompleted{
		BaseEvent:   NewBaseEvent(id, WorkflowExecutionCompletedEvent, record.WorkspaceID, record.WorkflowID),
		ExecutionID: record.ID,
		Mode:        record.Mode,
		Status:      record.Status,
	}

	if record.CompletedAt != nil {
		ev.Duration = record.CompletedAt.Sub(record.StartedAt)
	}

	for _, o := range record.Nodes {
		if o.Status == models.NodeStatusFailed || o.Status == models.NodeStatusTimedOut {
			ev.FailedNodes = append(ev.FailedNodes, o.NodeID)
		}
	}

	return ev
}
