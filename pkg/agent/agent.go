// Package agent invokes AI agents configured as named profiles.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dukex/workgraph/pkg/protocol"
	"gopkg.in/yaml.v3"
)

var ErrUnknownAgent = fmt.Errorf("%w: agent", protocol.ErrUnknownTarget)

// Profile describes how an agent is prompted.
type Profile struct {
	ID           string   `yaml:"id"            json:"id"`
	Name         string   `yaml:"name"          json:"name"`
	Model        string   `yaml:"model"         json:"model,omitempty"`
	Instructions string   `yaml:"instructions"  json:"instructions"`
	Temperature  *float64 `yaml:"temperature"   json:"temperature,omitempty"`
	MaxTokens    int64    `yaml:"max_tokens"    json:"max_tokens,omitempty"`
	JSONOutput   bool     `yaml:"json_output"   json:"json_output"` // Decode the reply as a JSON value
}

type profilesFile struct {
	Agents []Profile `yaml:"agents"`
}

// LoadProfiles reads agent profiles from a YAML file with a top-level `agents` list.
func LoadProfiles(path string) ([]Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent profiles: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse agent profiles: %w", err)
	}

	for i, p := range f.Agents {
		if p.ID == "" {
			return nil, fmt.Errorf("agent profile %d has no id", i)
		}
	}

	return f.Agents, nil
}

// Completer sends a prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, profile Profile, prompt string) (string, error)
}

// Invoker implements protocol.AgentInvoker over a set of profiles.
type Invoker struct {
	profiles  map[string]Profile
	completer Completer
	logger    *slog.Logger
}

func NewInvoker(profiles []Profile, completer Completer, logger *slog.Logger) *Invoker {
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	return &Invoker{profiles: byID, completer: completer, logger: logger}
}

// InvokeAgent prompts the agent with the invocation inputs. Dry runs return the prompt
// that would be sent without calling the model.
func (i *Invoker) InvokeAgent(ctx context.Context, inv protocol.Invocation) (any, error) {
	profile, ok := i.profiles[inv.TargetID]
	if !ok {
		return nil, fmt.Errorf("%w %q not configured", ErrUnknownAgent, inv.TargetID)
	}

	prompt, err := buildPrompt(inv.Inputs)
	if err != nil {
		return nil, err
	}

	logger := i.logger.With("agent_id", profile.ID, "node_id", inv.NodeID, "execution_id", inv.ExecutionID)

	if inv.DryRun() {
		logger.InfoContext(ctx, "simulated agent invocation")

		return map[string]any{
			"simulated": true,
			"agent_id":  profile.ID,
			"prompt":    prompt,
		}, nil
	}

	if i.completer == nil {
		return nil, errors.New("no language model configured")
	}

	logger.InfoContext(ctx, "invoking agent")

	reply, err := i.completer.Complete(ctx, profile, prompt)
	if err != nil {
		return nil, fmt.Errorf("agent %s failed: %w", profile.ID, err)
	}

	if !profile.JSONOutput {
		return map[string]any{"text": reply}, nil
	}

	var out any
	if err := json.Unmarshal([]byte(stripFence(reply)), &out); err != nil {
		return nil, fmt.Errorf("agent %s returned invalid JSON: %w", profile.ID, err)
	}

	return out, nil
}

// buildPrompt renders inputs as an indented JSON document, keys sorted.
func buildPrompt(inputs map[string]any) (string, error) {
	if len(inputs) == 0 {
		return "{}", nil
	}

	b, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode agent inputs: %w", err)
	}

	return string(b), nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
