// Package web provides the REST API for editing, publishing and testing workflows.
package web

import (
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// The graph is optional.
type CreateWorkflowRequest struct {
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Module      models.Module   `json:"module"      validate:"required"`
	Nodes       []*models.Node  `json:"nodes"`
	Edges       []*models.Edge  `json:"edges"`
	Viewport    models.Viewport `json:"viewport"`
}

// UpdateWorkflowRequest changes descriptive fields. All fields but version are optional.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string        `json:"description,omitempty"`
	Module      *models.Module `json:"module,omitempty"`
	Version     int64          `json:"version"               validate:"required,min=1"`
}

// SaveGraphRequest replaces the graph of a workflow.
type SaveGraphRequest struct {
	Nodes    []*models.Node  `json:"nodes"    validate:"required"`
	Edges    []*models.Edge  `json:"edges"`
	Viewport models.Viewport `json:"viewport"`
	Version  int64           `json:"version"  validate:"required,min=1"`
}

type SetTriggerRequest struct {
	TriggerType   string         `json:"trigger_type"   validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config"`
	Version       int64          `json:"version"        validate:"required,min=1"`
}

type TestRunRequest struct {
	RecordID    string         `json:"record_id,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// TriggerEventRequest is an event reported by a business module.
type TriggerEventRequest struct {
	WorkflowID  string         `json:"workflow_id,omitempty"`
	Module      models.Module  `json:"module,omitempty"`
	TriggerType string         `json:"trigger_type"          validate:"required"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
	Record      map[string]any `json:"record,omitempty"`
}

// ActionResponse describes a registered action.
type ActionResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

func TransformActionResponse(f protocol.ActionFactory) ActionResponse {
	return ActionResponse{
		ID:          f.ID(),
		Name:        f.Name(),
		Description: f.Description(),
		Schema:      f.Schema(),
	}
}
