// Package protocol defines the contracts between the runner and the actions, agents and
// external services it calls.
package protocol

import (
	"context"
	"log/slog"

	"github.com/dukex/workgraph/pkg/models"
)

// Action performs one unit of work. Execute may cause external side effects; Simulate
// must not, and is used for dry runs.
type Action interface {
	Execute(ctx context.Context, inv Invocation, logger *slog.Logger) (any, error)
	Simulate(ctx context.Context, inv Invocation, logger *slog.Logger) (any, error)
}

// ActionFactory creates action instances and provides metadata about the action type.
type ActionFactory interface {
	// ID is the value action nodes reference as target_id
	ID() string

	Name() string

	Description() string

	// Create builds an action from its registry-level configuration
	Create(ctx context.Context, config map[string]any) (Action, error)

	// Schema is the JSON schema of the action's input arguments
	Schema() map[string]any
}

// Invocation is a single call to an action or agent.
type Invocation struct {
	ExecutionID string               `json:"execution_id"`
	WorkflowID  string               `json:"workflow_id"`
	WorkspaceID string               `json:"workspace_id"`
	NodeID      string               `json:"node_id"`
	Kind        models.NodeKind      `json:"kind"`
	TargetID    string               `json:"target_id"`
	Inputs      map[string]any       `json:"inputs"`
	Mode        models.ExecutionMode `json:"mode"`
}

func (i Invocation) DryRun() bool {
	return i.Mode == models.ExecutionModeDryRun
}

type ResultStatus string

const (
	ResultStatusSucceeded ResultStatus = "succeeded"
	ResultStatusFailed    ResultStatus = "failed"
)

// Result is what an invoker returns for a completed invocation.
type Result struct {
	Output any          `json:"output"`
	Status ResultStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Invoker dispatches an invocation to the action or agent it targets.
// Implementations must honor ctx cancellation.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Result, error)
}

// AgentInvoker runs an AI agent. Only the invocation contract is defined here.
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, inv Invocation) (any, error)
}

// RecordProvider loads business records owned by other services, used to seed test runs.
type RecordProvider interface {
	FetchRecord(ctx context.Context, workspaceID string, module models.Module, recordID string) (map[string]any, error)
}
