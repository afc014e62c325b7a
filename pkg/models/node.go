package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeKind is the discriminator written to the `type` field of a serialized node.
type NodeKind string

const (
	NodeKindTrigger NodeKind = "trigger" // Entry point, receives the trigger payload
	NodeKindAction  NodeKind = "action"  // Invokes a registered action
	NodeKindAgent   NodeKind = "agent"   // Invokes an AI agent
)

var ErrUnknownNodeKind = errors.New("unknown node kind")

// NodeData is the closed set of node payloads. Only the types in this package implement it.
type NodeData interface {
	Kind() NodeKind
	sealed()
}

// Invocable is implemented by node payloads that call out to an action or agent.
type Invocable interface {
	NodeData
	Invocation() *InvocationSpec
}

// TriggerNode is the payload of the single entry node of a graph.
type TriggerNode struct {
	TriggerType   string         `json:"trigger_type"             yaml:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty" yaml:"trigger_config,omitempty"`
}

func (*TriggerNode) Kind() NodeKind { return NodeKindTrigger }
func (*TriggerNode) sealed()        {}

// InvocationSpec describes how an action or agent node is invoked and how its result flows on.
type InvocationSpec struct {
	Label             string            `json:"label"                     yaml:"label"`
	TargetID          string            `json:"target_id"                 yaml:"target_id"`
	InputMapping      map[string]string `json:"input_mapping,omitempty"   yaml:"input_mapping,omitempty"`
	RequiredInputs    []string          `json:"required_inputs,omitempty" yaml:"required_inputs,omitempty"`
	OutputVariable    string            `json:"output_variable,omitempty" yaml:"output_variable,omitempty"`
	WaitForCompletion bool              `json:"wait_for_completion"       yaml:"wait_for_completion"`
	TimeoutSeconds    int               `json:"timeout_seconds"           yaml:"timeout_seconds"`
}

// ActionNode invokes a registered action; TargetID is the action id.
type ActionNode struct {
	InvocationSpec `yaml:",inline"`
}

func (*ActionNode) Kind() NodeKind                 { return NodeKindAction }
func (*ActionNode) sealed()                        {}
func (a *ActionNode) Invocation() *InvocationSpec { return &a.InvocationSpec }

// AgentNode invokes an AI agent; TargetID is the agent id.
type AgentNode struct {
	InvocationSpec `yaml:",inline"`
}

func (*AgentNode) Kind() NodeKind                 { return NodeKindAgent }
func (*AgentNode) sealed()                        {}
func (a *AgentNode) Invocation() *InvocationSpec { return &a.InvocationSpec }

// Position is the canvas location of a node. It has no execution meaning.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a vertex of a workflow graph.
type Node struct {
	ID       string
	Position Position
	Data     NodeData
}

// Kind reports the node kind, or an empty kind when the node carries no data.
func (n *Node) Kind() NodeKind {
	if n.Data == nil {
		return ""
	}

	return n.Data.Kind()
}

// Invocation returns the invocation spec of an action or agent node.
func (n *Node) Invocation() (*InvocationSpec, bool) {
	inv, ok := n.Data.(Invocable)
	if !ok {
		return nil, false
	}

	return inv.Invocation(), true
}

func newNodeData(kind NodeKind) (NodeData, error) {
	switch kind {
	case NodeKindTrigger:
		return &TriggerNode{}, nil
	case NodeKindAction:
		return &ActionNode{}, nil
	case NodeKindAgent:
		return &AgentNode{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}
}

type jsonNode struct {
	ID       string          `json:"id"`
	Type     NodeKind        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data,omitempty"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	out := struct {
		ID       string   `json:"id"`
		Type     NodeKind `json:"type"`
		Position Position `json:"position"`
		Data     NodeData `json:"data"`
	}{n.ID, n.Kind(), n.Position, n.Data}

	return json.Marshal(out)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var raw jsonNode
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := newNodeData(raw.Type)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}

	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("node %q: failed to decode %s data: %w", raw.ID, raw.Type, err)
		}
	}

	n.ID = raw.ID
	n.Position = raw.Position
	n.Data = data

	return nil
}

type yamlNode struct {
	ID       string    `yaml:"id"`
	Type     NodeKind  `yaml:"type"`
	Position Position  `yaml:"position"`
	Data     yaml.Node `yaml:"data"`
}

func (n Node) MarshalYAML() (any, error) {
	return struct {
		ID       string   `yaml:"id"`
		Type     NodeKind `yaml:"type"`
		Position Position `yaml:"position"`
		Data     NodeData `yaml:"data"`
	}{n.ID, n.Kind(), n.Position, n.Data}, nil
}

func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlNode
	if err := value.Decode(&raw); err != nil {
		return err
	}

	data, err := newNodeData(raw.Type)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.ID, err)
	}

	if !raw.Data.IsZero() {
		if err := raw.Data.Decode(data); err != nil {
			return fmt.Errorf("node %q: failed to decode %s data: %w", raw.ID, raw.Type, err)
		}
	}

	n.ID = raw.ID
	n.Position = raw.Position
	n.Data = data

	return nil
}

// Edge is a directed dependency: Target runs after Source.
type Edge struct {
	ID     string `json:"id"     yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}
