package models

import "time"

// Built-in trigger types.
const (
	TriggerTypeRecordCreated = "record.created"
	TriggerTypeRecordUpdated = "record.updated"
	TriggerTypeFieldChanged  = "field.changed"
	TriggerTypeScheduleCron  = "schedule.cron"
	TriggerTypeManual        = "manual"
)

// TriggerEvent is a payload delivered by a trigger source.
type TriggerEvent struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"          validate:"required"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Module      Module         `json:"module,omitempty"`
	TriggerType string         `json:"trigger_type"          validate:"required"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
