// Package log provides an action that writes a message to the structured log.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/workgraph/pkg/protocol"
)

// ActionFactory is the factory for creating log actions.
type ActionFactory struct{}

func NewActionFactory() *ActionFactory {
	return &ActionFactory{}
}

func (*ActionFactory) ID() string {
	return "log"
}

func (*ActionFactory) Name() string {
	return "Log"
}

func (*ActionFactory) Description() string {
	return "Logs a message at a specified level."
}

func (*ActionFactory) Create(_ context.Context, _ map[string]any) (protocol.Action, error) {
	return &Action{}, nil
}

func (*ActionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"description": "The message to log.",
				"examples":    []string{"Deal moved to {{stage}}"},
			},
			"level": map[string]any{
				"type":        "string",
				"description": "Log level for the message",
				"default":     "info",
				"enum":        []string{"debug", "info", "warn", "warning", "error"},
			},
		},
		"required": []string{"message"},
	}
}

// Action writes its message input to the logger and echoes it as output.
type Action struct{}

func (a *Action) Execute(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	message := fmt.Sprint(inv.Inputs["message"])

	level, _ := inv.Inputs["level"].(string)
	if level == "" {
		level = "info"
	}

	logger.Log(ctx, parseLevel(level), message, "action_type", "log", "workflow_id", inv.WorkflowID)

	return map[string]any{
		"message": message,
		"level":   level,
	}, nil
}

// Simulate behaves as Execute; logging has no external side effects.
func (a *Action) Simulate(ctx context.Context, inv protocol.Invocation, logger *slog.Logger) (any, error) {
	return a.Execute(ctx, inv, logger.With("simulated", true))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
