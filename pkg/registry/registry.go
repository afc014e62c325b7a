// Package registry holds the actions, agents and trigger types available to workflows
// and dispatches node invocations to them.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger *slog.Logger

	mu              sync.RWMutex
	actionFactories map[string]protocol.ActionFactory
	actionConfig    map[string]map[string]any
	triggerTypes    map[string]protocol.TriggerType
	agents          protocol.AgentInvoker
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
		actionConfig:    make(map[string]map[string]any),
		triggerTypes:    make(map[string]protocol.TriggerType),
	}
}

// RegisterAction makes an action available under its factory id. config is passed to the
// factory every time the action is created.
func (r *Registry) RegisterAction(factory protocol.ActionFactory, config map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actionFactories[factory.ID()] = factory
	r.actionConfig[factory.ID()] = config
}

func (r *Registry) RegisterTriggerType(tt protocol.TriggerType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.triggerTypes[tt.ID] = tt
}

// SetAgentInvoker sets the invoker used for agent nodes.
func (r *Registry) SetAgentInvoker(agents protocol.AgentInvoker) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents = agents
}

func (r *Registry) ActionFactory(id string) (protocol.ActionFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.actionFactories[id]

	return f, ok
}

func (r *Registry) TriggerType(id string) (protocol.TriggerType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tt, ok := r.triggerTypes[id]

	return tt, ok
}

// HealthCheck reports whether any action is registered.
func (r *Registry) HealthCheck() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.actionFactories) == 0 {
		return "No actions registered", false
	}

	return fmt.Sprintf("%d actions registered", len(r.actionFactories)), true
}

// GetAvailableActions returns all registered action factories sorted by id.
func (r *Registry) GetAvailableActions() []protocol.ActionFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.ActionFactory, 0, len(r.actionFactories))
	for _, f := range r.actionFactories {
		out = append(out, f)
	}

	slices.SortFunc(out, func(a, b protocol.ActionFactory) int { return strings.Compare(a.ID(), b.ID()) })

	return out
}

// GetAvailableTriggerTypes returns all registered trigger types sorted by id.
func (r *Registry) GetAvailableTriggerTypes() []protocol.TriggerType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.TriggerType, 0, len(r.triggerTypes))
	for _, tt := range r.triggerTypes {
		out = append(out, tt)
	}

	slices.SortFunc(out, func(a, b protocol.TriggerType) int { return strings.Compare(a.ID, b.ID) })

	return out
}

// Invoke implements protocol.Invoker. Action inputs are validated against the action's
// schema first; missing required properties surface as protocol.ErrMissingInput.
func (r *Registry) Invoke(ctx context.Context, inv protocol.Invocation) (*protocol.Result, error) {
	logger := r.logger.With(
		"node_id", inv.NodeID,
		"execution_id", inv.ExecutionID,
		"target_id", inv.TargetID,
		"mode", inv.Mode,
	)

	switch inv.Kind {
	case models.NodeKindAction:
		return r.invokeAction(ctx, inv, logger)
	case models.NodeKindAgent:
		r.mu.RLock()
		agents := r.agents
		r.mu.RUnlock()

		if agents == nil {
			return nil, fmt.Errorf("%w: no agent invoker configured for agent %q", protocol.ErrUnknownTarget, inv.TargetID)
		}

		output, err := agents.InvokeAgent(ctx, inv)
		if err != nil {
			return nil, err
		}

		return &protocol.Result{Output: output, Status: protocol.ResultStatusSucceeded}, nil
	default:
		return nil, fmt.Errorf("%w: node kind %q cannot be invoked", protocol.ErrUnknownTarget, inv.Kind)
	}
}

func (r *Registry) invokeAction(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (*protocol.Result, error) {
	r.mu.RLock()
	factory, ok := r.actionFactories[inv.TargetID]
	config := r.actionConfig[inv.TargetID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: action type '%s' not registered", protocol.ErrUnknownTarget, inv.TargetID)
	}

	if err := validateInputs(factory.Schema(), inv.Inputs); err != nil {
		return nil, err
	}

	action, err := factory.Create(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create action %s: %w", inv.TargetID, err)
	}

	var output any

	if inv.DryRun() {
		output, err = action.Simulate(ctx, inv, logger)
	} else {
		output, err = action.Execute(ctx, inv, logger)
	}

	if err != nil {
		return &protocol.Result{Status: protocol.ResultStatusFailed, Error: err.Error()}, nil
	}

	return &protocol.Result{Output: output, Status: protocol.ResultStatusSucceeded}, nil
}

func validateInputs(schema map[string]any, inputs map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	if inputs == nil {
		inputs = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(inputs))
	if err != nil {
		return fmt.Errorf("failed to validate inputs: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var (
		missing  []string
		problems []string
	)

	for _, desc := range result.Errors() {
		if desc.Type() == "required" {
			if property, ok := desc.Details()["property"].(string); ok {
				missing = append(missing, property)

				continue
			}
		}

		problems = append(problems, desc.String())
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return &protocol.MissingInputError{Names: missing}
	}

	return fmt.Errorf("invalid inputs: %s", strings.Join(problems, "; "))
}
