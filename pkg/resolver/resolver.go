// Package resolver binds node input arguments to values in the execution context and
// feeds node outputs back into it.
package resolver

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/oliveagle/jsonpath"
)

// ResolutionError reports an input mapping whose path cannot be parsed.
type ResolutionError struct {
	Argument string
	Path     string
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("invalid path %q for input %q: %s", e.Path, e.Argument, e.Reason)
}

// Resolution holds the resolved arguments of one node. Arguments whose path did not
// resolve are listed in Absent and left out of Values.
type Resolution struct {
	Values map[string]any
	Absent []string
}

// Require returns a *protocol.MissingInputError naming the required arguments that are absent.
func (r *Resolution) Require(names []string) error {
	var missing []string

	for _, name := range names {
		if _, ok := r.Values[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	slices.Sort(missing)

	return &protocol.MissingInputError{Names: missing}
}

// ResolveInputs evaluates every path of mapping against a snapshot of ctx.
// A path that walks through a missing key, a nil value or a non-container yields an
// absent argument, not an error. Resolved values are deep copies, so a node that
// mutates its inputs cannot change the context or another node's inputs.
func ResolveInputs(mapping map[string]string, ctx *models.ExecutionContext) (*Resolution, error) {
	res := &Resolution{Values: make(map[string]any, len(mapping))}
	if len(mapping) == 0 {
		return res, nil
	}

	snapshot := ctx.Snapshot()

	for _, arg := range sortedKeys(mapping) {
		path := mapping[arg]

		segments, err := splitPath(path)
		if err != nil {
			return nil, &ResolutionError{Argument: arg, Path: path, Reason: err.Error()}
		}

		value, ok := walk(snapshot, segments)
		if !ok {
			res.Absent = append(res.Absent, arg)

			continue
		}

		res.Values[arg] = models.CloneValue(value)
	}

	return res, nil
}

// Lookup resolves a single dotted path against ctx.
func Lookup(path string, ctx *models.ExecutionContext) (any, bool) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	value, ok := walk(ctx.Snapshot(), segments)
	if !ok {
		return nil, false
	}

	return models.CloneValue(value), true
}

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}

	segments := strings.Split(path, ".")

	for i, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("segment %d is empty", i)
		}

		if strings.ContainsAny(segment, "[]()*$@?'\"") {
			return nil, fmt.Errorf("segment %q contains reserved characters", segment)
		}
	}

	return segments, nil
}

// walk descends one segment at a time. On a map the segment is always a key, numeric
// or not; on a list it must be an index.
func walk(current any, segments []string) (any, bool) {
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			value, err := jsonpath.JsonPathLookup(node, "$."+segment)
			if err != nil {
				return nil, false
			}

			current = value
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}

			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// BindOutput writes a succeeded synchronous node's output into ctx under its output
// variable. Later bindings to the same name replace earlier ones. Fire-and-forget nodes
// are never bound; the returned warning explains why a configured variable was ignored.
func BindOutput(spec *models.InvocationSpec, outcome *models.NodeOutcome, ctx *models.ExecutionContext) string {
	if spec.OutputVariable == "" || outcome.Status != models.NodeStatusSucceeded {
		return ""
	}

	if !spec.WaitForCompletion {
		return fmt.Sprintf("output variable %q ignored: node does not wait for completion", spec.OutputVariable)
	}

	if spec.OutputVariable == models.ContextRecordKey || spec.OutputVariable == models.ContextTriggerDataKey {
		return fmt.Sprintf("output variable %q ignored: name is reserved", spec.OutputVariable)
	}

	ctx.Set(spec.OutputVariable, models.CloneValue(outcome.Output))

	return ""
}
