package models

import "time"

// ExecutionMode selects between real side effects and simulation.
type ExecutionMode string

const (
	ExecutionModeLive   ExecutionMode = "live"
	ExecutionModeDryRun ExecutionMode = "dry_run"
)

// ExecutionStatus is the overall outcome of a run.
type ExecutionStatus string

const (
	ExecutionStatusRunning        ExecutionStatus = "running"
	ExecutionStatusSucceeded      ExecutionStatus = "succeeded"       // No node failed or timed out
	ExecutionStatusPartialFailure ExecutionStatus = "partial_failure" // At least one success and one failure
	ExecutionStatusFailed         ExecutionStatus = "failed"          // Failures and no successes
	ExecutionStatusCancelled      ExecutionStatus = "cancelled"       // Host cancelled before completion
)

// NodeStatus is the state of a single node within a run.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusSucceeded NodeStatus = "succeeded"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
	NodeStatusTimedOut  NodeStatus = "timed_out"
)

func (s NodeStatus) Terminal() bool {
	switch s {
	case NodeStatusSucceeded, NodeStatusFailed, NodeStatusSkipped, NodeStatusTimedOut:
		return true
	default:
		return false
	}
}

// ErrorKind classifies why a node did not succeed.
type ErrorKind string

const (
	ErrorKindMissingInput   ErrorKind = "missing_input"
	ErrorKindInvocation     ErrorKind = "invocation_error"
	ErrorKindTimeout        ErrorKind = "timeout"
	ErrorKindCancelled      ErrorKind = "cancelled"
	ErrorKindAncestorFailed ErrorKind = "ancestor_failed"
	ErrorKindInvalidMapping ErrorKind = "invalid_mapping"
)

// NodeOutcome records what happened to one node in a run.
type NodeOutcome struct {
	NodeID      string         `json:"node_id"`
	Kind        NodeKind       `json:"kind"`
	TargetID    string         `json:"target_id,omitempty"`
	Status      NodeStatus     `json:"status"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	Error       string         `json:"error,omitempty"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Output      any            `json:"output,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ExecutionRecord is the result of one run of a workflow.
type ExecutionRecord struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	WorkspaceID string          `json:"workspace_id"`
	TriggerType string          `json:"trigger_type"`
	Mode        ExecutionMode   `json:"mode"`
	Status      ExecutionStatus `json:"status"`
	Nodes       []*NodeOutcome  `json:"nodes"`
	Warnings    []string        `json:"warnings,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Outcome returns the outcome recorded for nodeID, or nil.
func (r *ExecutionRecord) Outcome(nodeID string) *NodeOutcome {
	for _, o := range r.Nodes {
		if o.NodeID == nodeID {
			return o
		}
	}

	return nil
}
