// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/google/uuid"
)

// TriggerNode creates a trigger node of the given trigger type.
func TriggerNode(id, triggerType string, config map[string]any) *models.Node {
	return &models.Node{
		ID:   id,
		Data: &models.TriggerNode{TriggerType: triggerType, TriggerConfig: config},
	}
}

// ActionNode creates a synchronous action node with default values that can be overridden.
func ActionNode(id, actionID string, overrides ...func(*models.InvocationSpec)) *models.Node {
	data := &models.ActionNode{InvocationSpec: defaultSpec(id, actionID)}
	apply(&data.InvocationSpec, overrides)

	return &models.Node{ID: id, Position: models.Position{X: 100, Y: 200}, Data: data}
}

// AgentNode creates a synchronous agent node with default values that can be overridden.
func AgentNode(id, agentID string, overrides ...func(*models.InvocationSpec)) *models.Node {
	data := &models.AgentNode{InvocationSpec: defaultSpec(id, agentID)}
	apply(&data.InvocationSpec, overrides)

	return &models.Node{ID: id, Position: models.Position{X: 100, Y: 200}, Data: data}
}

func defaultSpec(id, target string) models.InvocationSpec {
	return models.InvocationSpec{
		Label:             "Test " + id,
		TargetID:          target,
		InputMapping:      map[string]string{},
		WaitForCompletion: true,
		TimeoutSeconds:    30,
	}
}

func apply(spec *models.InvocationSpec, overrides []func(*models.InvocationSpec)) {
	for _, override := range overrides {
		override(spec)
	}
}

// WithInput maps an input argument to a dotted context path.
func WithInput(name, path string) func(*models.InvocationSpec) {
	return func(s *models.InvocationSpec) {
		s.InputMapping[name] = path
	}
}

// WithRequired marks input arguments as required.
func WithRequired(names ...string) func(*models.InvocationSpec) {
	return func(s *models.InvocationSpec) {
		s.RequiredInputs = append(s.RequiredInputs, names...)
	}
}

// WithOutput sets the output variable.
func WithOutput(variable string) func(*models.InvocationSpec) {
	return func(s *models.InvocationSpec) {
		s.OutputVariable = variable
	}
}

// WithTimeout sets the node timeout in seconds.
func WithTimeout(seconds int) func(*models.InvocationSpec) {
	return func(s *models.InvocationSpec) {
		s.TimeoutSeconds = seconds
	}
}

// FireAndForget configures the node to not wait for completion.
func FireAndForget() func(*models.InvocationSpec) {
	return func(s *models.InvocationSpec) {
		s.WaitForCompletion = false
	}
}

// Edge creates an edge between two nodes.
func Edge(source, target string) *models.Edge {
	return &models.Edge{ID: source + "->" + target, Source: source, Target: target}
}

// Graph assembles nodes and edges into a graph.
func Graph(nodes []*models.Node, edges ...*models.Edge) models.Graph {
	return models.Graph{
		Nodes:    nodes,
		Edges:    edges,
		Viewport: models.Viewport{Zoom: 1},
	}
}

// CreateTestWorkflow creates a draft workflow with a trigger and one log action.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	wf := &models.Workflow{
		ID:          uuid.NewString(),
		WorkspaceID: "ws-test",
		Name:        "Test Workflow",
		Description: "A workflow used in tests",
		Module:      models.ModuleCRM,
		Status:      models.WorkflowStatusDraft,
		Version:     1,
		Graph: Graph(
			[]*models.Node{
				TriggerNode("trigger", models.TriggerTypeRecordCreated, nil),
				ActionNode("log", "log", WithInput("message", "record.name")),
			},
			Edge("trigger", "log"),
		),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(wf)
	}

	wf.SyncTrigger()

	return wf
}

// WithGraph replaces the workflow graph.
func WithGraph(g models.Graph) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Graph = g
	}
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithWorkspace sets the workspace id.
func WithWorkspace(workspaceID string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.WorkspaceID = workspaceID
	}
}
