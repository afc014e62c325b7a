// Package transform provides an action that reshapes its inputs with a template expression.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/template"
)

type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "transform"
}

func (*ActionFactory) Name() string {
	return "Transform"
}

func (*ActionFactory) Description() string {
	return "Renders a template expression against its inputs. JSON output is decoded into structured data."
}

func (*ActionFactory) Create(_ context.Context, _ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "text/template expression. Without a data input, every other input is available at the root.",
				"examples": []string{
					"Hello {{.name}}",
					`{"full_name": "{{.first}} {{.last}}"}`,
				},
			},
			"data": map[string]any{
				"description": "Value the expression is rendered against.",
			},
		},
		"required": []string{"expression"},
	}
}

type Action struct{}

func (a *Action) Execute(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	expression, ok := inv.Inputs["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string, got %T", inv.Inputs["expression"])
	}

	data, ok := inv.Inputs["data"]
	if !ok {
		rest := make(map[string]any, len(inv.Inputs))

		for k, v := range inv.Inputs {
			if k != "expression" {
				rest[k] = v
			}
		}

		data = rest
	}

	result, err := template.Render(expression, data)
	if err != nil {
		return nil, fmt.Errorf("transformation failed: %w", err)
	}

	logger.DebugContext(ctx, "transform completed", "node_id", inv.NodeID)

	return result, nil
}

// Simulate behaves as Execute; rendering is pure.
func (a *Action) Simulate(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	return a.Execute(ctx, inv, logger)
}
