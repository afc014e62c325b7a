package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/workgraph/pkg/models"
)

var (
	ErrNoTrigger = errors.New("graph has no trigger node")
	ErrCyclic    = errors.New("graph contains a cycle")
)

// Reachable returns the ids of the action and agent nodes reachable from the trigger,
// sorted ascending.
func Reachable(g *models.Graph) []string {
	trigger := g.Trigger()
	if trigger == nil {
		return nil
	}

	children := Children(g)
	seen := map[string]bool{trigger.ID: true}
	queue := []string{trigger.ID}

	var out []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, child := range children[id] {
			if seen[child] {
				continue
			}

			seen[child] = true

			if n := g.Node(child); n != nil && n.Kind() != models.NodeKindTrigger {
				out = append(out, child)
				queue = append(queue, child)
			}
		}
	}

	slices.Sort(out)

	return out
}

// TopologicalOrder orders the action and agent nodes reachable from the trigger so that
// every edge's source precedes its target. Ties are broken by ascending node id, so the
// order is deterministic. Validate the graph first; a cycle returns ErrCyclic.
func TopologicalOrder(g *models.Graph) ([]string, error) {
	trigger := g.Trigger()
	if trigger == nil {
		return nil, ErrNoTrigger
	}

	reachable := Reachable(g)
	in := make(map[string]bool, len(reachable))

	for _, id := range reachable {
		in[id] = true
	}

	indegree := make(map[string]int, len(reachable))
	adj := make(map[string][]string, len(reachable))

	for _, e := range g.Edges {
		if e == nil || !in[e.Source] || !in[e.Target] {
			continue
		}

		adj[e.Source] = append(adj[e.Source], e.Target)
		indegree[e.Target]++
	}

	var ready []string

	for _, id := range reachable {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(reachable))

	for len(ready) > 0 {
		slices.Sort(ready)

		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, next := range adj[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(order) != len(reachable) {
		return nil, fmt.Errorf("%w: %d of %d nodes could not be ordered", ErrCyclic, len(reachable)-len(order), len(reachable))
	}

	return order, nil
}

// Children maps each node id to the targets of its outgoing edges, in edge order.
func Children(g *models.Graph) map[string][]string {
	out := make(map[string][]string)

	for _, e := range g.Edges {
		if e != nil {
			out[e.Source] = append(out[e.Source], e.Target)
		}
	}

	return out
}

// Parents maps each node id to the sources of its incoming edges, in edge order.
func Parents(g *models.Graph) map[string][]string {
	out := make(map[string][]string)

	for _, e := range g.Edges {
		if e != nil {
			out[e.Target] = append(out[e.Target], e.Source)
		}
	}

	return out
}

// Descendants returns every node reachable from id through outgoing edges, excluding id.
func Descendants(g *models.Graph, id string) []string {
	children := Children(g)
	seen := map[string]bool{id: true}
	stack := slices.Clone(children[id])

	var out []string

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[next] {
			continue
		}

		seen[next] = true
		out = append(out, next)
		stack = append(stack, children[next]...)
	}

	slices.Sort(out)

	return out
}
