// Package graph validates workflow graphs and derives their execution order.
package graph

import (
	"fmt"
	"slices"

	"github.com/dukex/workgraph/pkg/models"
)

// ViolationCode identifies a class of structural problem.
type ViolationCode string

const (
	ViolationMissingTrigger       ViolationCode = "missing_trigger"
	ViolationMultipleTriggers     ViolationCode = "multiple_triggers"
	ViolationEmptyNodeID          ViolationCode = "empty_node_id"
	ViolationDuplicateNodeID      ViolationCode = "duplicate_node_id"
	ViolationMissingNodeData      ViolationCode = "missing_node_data"
	ViolationDanglingEdge         ViolationCode = "dangling_edge"
	ViolationTriggerIncomingEdge  ViolationCode = "trigger_incoming_edge"
	ViolationCycle                ViolationCode = "cycle"
	ViolationNoReachableAction    ViolationCode = "no_reachable_action"
	ViolationMissingTriggerType   ViolationCode = "missing_trigger_type"
	ViolationInvalidTriggerConfig ViolationCode = "invalid_trigger_config"
	ViolationMissingTarget        ViolationCode = "missing_target"
)

// Violation is one reason a graph cannot be published or executed.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
	NodeIDs []string      `json:"node_ids,omitempty"`
	EdgeIDs []string      `json:"edge_ids,omitempty"`
}

func (v Violation) Error() string {
	return v.Message
}

// ValidationResult lists every violation found. Warnings never make a graph invalid.
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
	Warnings   []string    `json:"warnings,omitempty"`
}

func (r *ValidationResult) add(v Violation) {
	r.Violations = append(r.Violations, v)
	r.Valid = false
}

// Add appends a violation found by a caller-side check.
func (r *ValidationResult) Add(code ViolationCode, message string, nodeIDs ...string) {
	r.add(Violation{Code: code, Message: message, NodeIDs: nodeIDs})
}

// Has reports whether a violation with the given code was found.
func (r *ValidationResult) Has(code ViolationCode) bool {
	return slices.ContainsFunc(r.Violations, func(v Violation) bool { return v.Code == code })
}

// Validate checks the structural invariants of g and reports every violation found.
// Malformed input is reported, never returned as an error. g must not be nil.
func Validate(g *models.Graph) *ValidationResult {
	if g == nil {
		panic("graph: Validate called with nil graph")
	}

	result := &ValidationResult{Valid: true, Violations: []Violation{}}

	ids := make(map[string]*models.Node, len(g.Nodes))

	var triggers []string

	for i, n := range g.Nodes {
		if n == nil || n.ID == "" {
			result.add(Violation{
				Code:    ViolationEmptyNodeID,
				Message: fmt.Sprintf("node at position %d has no id", i),
			})

			continue
		}

		if _, dup := ids[n.ID]; dup {
			result.add(Violation{
				Code:    ViolationDuplicateNodeID,
				Message: fmt.Sprintf("node id %q is used more than once", n.ID),
				NodeIDs: []string{n.ID},
			})

			continue
		}

		ids[n.ID] = n

		switch n.Kind() {
		case models.NodeKindTrigger:
			triggers = append(triggers, n.ID)
		case models.NodeKindAction, models.NodeKindAgent:
		default:
			result.add(Violation{
				Code:    ViolationMissingNodeData,
				Message: fmt.Sprintf("node %q has no data", n.ID),
				NodeIDs: []string{n.ID},
			})
		}
	}

	switch len(triggers) {
	case 0:
		result.add(Violation{Code: ViolationMissingTrigger, Message: "graph has no trigger node"})
	case 1:
	default:
		result.add(Violation{
			Code:    ViolationMultipleTriggers,
			Message: fmt.Sprintf("graph has %d trigger nodes, expected exactly one", len(triggers)),
			NodeIDs: triggers,
		})
	}

	for i, e := range g.Edges {
		if e == nil {
			result.add(Violation{Code: ViolationDanglingEdge, Message: fmt.Sprintf("edge at position %d is empty", i)})

			continue
		}

		for _, end := range []string{e.Source, e.Target} {
			if _, ok := ids[end]; !ok {
				result.add(Violation{
					Code:    ViolationDanglingEdge,
					Message: fmt.Sprintf("edge %q references unknown node %q", e.ID, end),
					EdgeIDs: []string{e.ID},
				})
			}
		}

		if target, ok := ids[e.Target]; ok && target.Kind() == models.NodeKindTrigger {
			result.add(Violation{
				Code:    ViolationTriggerIncomingEdge,
				Message: fmt.Sprintf("trigger node %q cannot have incoming edge %q", e.Target, e.ID),
				NodeIDs: []string{e.Target},
				EdgeIDs: []string{e.ID},
			})
		}
	}

	result.Warnings = FireAndForgetWarnings(g)

	if cycle := findCycle(g, ids); cycle != nil {
		result.add(Violation{
			Code:    ViolationCycle,
			Message: fmt.Sprintf("graph contains a cycle through %v", cycle),
			NodeIDs: cycle,
		})
	}

	return result
}

// FireAndForgetWarnings lists configuration warnings for nodes that set an output
// variable without waiting for completion. Such outputs are never bound.
func FireAndForgetWarnings(g *models.Graph) []string {
	var warnings []string

	for _, n := range g.Nodes {
		if n == nil {
			continue
		}

		if spec, ok := n.Invocation(); ok && !spec.WaitForCompletion && spec.OutputVariable != "" {
			warnings = append(warnings, fireAndForgetWarning(n.ID, spec.OutputVariable))
		}
	}

	return warnings
}

func fireAndForgetWarning(nodeID, variable string) string {
	return fmt.Sprintf("node %q does not wait for completion; output variable %q will never be bound", nodeID, variable)
}

const (
	white = iota
	grey
	black
)

// findCycle runs a depth-first search with a recursion stack over edges between known
// non-trigger nodes and returns the node ids of the first cycle found.
func findCycle(g *models.Graph, ids map[string]*models.Node) []string {
	adj := make(map[string][]string, len(ids))

	for _, e := range g.Edges {
		if e == nil {
			continue
		}

		src, okSrc := ids[e.Source]
		dst, okDst := ids[e.Target]

		if !okSrc || !okDst || src.Kind() == models.NodeKindTrigger || dst.Kind() == models.NodeKindTrigger {
			continue
		}

		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	keys := make([]string, 0, len(ids))
	for id := range ids {
		keys = append(keys, id)
	}

	slices.Sort(keys)

	color := make(map[string]int, len(ids))

	var stack []string

	var visit func(id string) []string

	visit = func(id string) []string {
		color[id] = grey
		stack = append(stack, id)

		for _, next := range adj[id] {
			switch color[next] {
			case grey:
				start := slices.Index(stack, next)

				return append([]string(nil), stack[start:]...)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black

		return nil
	}

	for _, id := range keys {
		if color[id] == white {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}

	return nil
}
