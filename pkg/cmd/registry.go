// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/agent"
	"github.com/dukex/workgraph/pkg/registry"
)

// AgentConfig configures the agent invoker. Agents are disabled when ProfilesFile is empty.
type AgentConfig struct {
	ProfilesFile string
	APIKey       string
	BaseURL      string
	Model        string
}

// NewRegistry registers the built-in actions and trigger types and, when configured, the
// OpenAI backed agent invoker.
func NewRegistry(ctx context.Context, logger *slog.Logger, agents AgentConfig) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	reg.RegisterDefaultActions(nil)
	reg.RegisterDefaultTriggerTypes()

	if agents.ProfilesFile == "" {
		logger.InfoContext(ctx, "No agent profiles configured, agent nodes will fail")

		return reg, nil
	}

	profiles, err := agent.LoadProfiles(agents.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	completer := agent.NewOpenAI(agents.APIKey, agents.BaseURL, agents.Model)
	reg.SetAgentInvoker(agent.NewInvoker(profiles, completer, logger.With("module", "agent")))

	logger.InfoContext(ctx, "Loaded agent profiles", "count", len(profiles))

	return reg, nil
}
