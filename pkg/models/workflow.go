// Package models defines the core domain models for graph-based workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable by live triggers
	WorkflowStatusPublished WorkflowStatus = "published" // Eligible for live trigger dispatch
)

// Module is the business area a workflow belongs to.
type Module string

const (
	ModuleCRM      Module = "crm"
	ModuleTickets  Module = "tickets"
	ModuleHiring   Module = "hiring"
	ModuleBooking  Module = "booking"
	ModuleLeave    Module = "leave"
	ModuleProjects Module = "projects"
	ModuleGeneral  Module = "general"
)

var modules = []Module{
	ModuleCRM,
	ModuleTickets,
	ModuleHiring,
	ModuleBooking,
	ModuleLeave,
	ModuleProjects,
	ModuleGeneral,
}

// Modules returns every known module.
func Modules() []Module {
	return append([]Module(nil), modules...)
}

func (m Module) Valid() bool {
	for _, known := range modules {
		if m == known {
			return true
		}
	}

	return false
}

// Viewport is the canvas camera state. It is persisted but never used by execution.
type Viewport struct {
	X    float64 `json:"x"    yaml:"x"`
	Y    float64 `json:"y"    yaml:"y"`
	Zoom float64 `json:"zoom" yaml:"zoom"`
}

// Graph is the executable payload of a workflow: nodes, edges and the canvas viewport.
type Graph struct {
	Nodes    []*Node  `json:"nodes"    yaml:"nodes"`
	Edges    []*Edge  `json:"edges"    yaml:"edges"`
	Viewport Viewport `json:"viewport" yaml:"viewport"`
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	for _, n := range g.Nodes {
		if n != nil && n.ID == id {
			return n
		}
	}

	return nil
}

// Trigger returns the first trigger node of the graph, or nil.
func (g *Graph) Trigger() *Node {
	for _, n := range g.Nodes {
		if n != nil && n.Kind() == NodeKindTrigger {
			return n
		}
	}

	return nil
}

// Workflow is a persisted workflow definition.
type Workflow struct {
	ID            string         `json:"id"             yaml:"id"`
	WorkspaceID   string         `json:"workspace_id"   yaml:"workspace_id"   validate:"required"`
	Name          string         `json:"name"           yaml:"name"           validate:"required,min=3"`
	Description   string         `json:"description"    yaml:"description"`
	Module        Module         `json:"module"         yaml:"module"         validate:"required"`
	TriggerType   string         `json:"trigger_type"   yaml:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config" yaml:"trigger_config"`
	Status        WorkflowStatus `json:"status"         yaml:"status"`
	Version       int64          `json:"version"        yaml:"version"`

	Graph `yaml:",inline"`

	CreatedAt   time.Time  `json:"created_at"             yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"             yaml:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
}

func (w *Workflow) IsPublished() bool {
	return w.Status == WorkflowStatusPublished
}

// SyncTrigger copies the trigger node's type and config onto the definition.
func (w *Workflow) SyncTrigger() {
	trigger := w.Trigger()
	if trigger == nil {
		return
	}

	data, ok := trigger.Data.(*TriggerNode)
	if !ok || data == nil {
		return
	}

	w.TriggerType = data.TriggerType
	w.TriggerConfig = data.TriggerConfig
}
