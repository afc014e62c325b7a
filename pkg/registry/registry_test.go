package registry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAgent struct {
	calls []protocol.Invocation
}

func (e *echoAgent) InvokeAgent(_ context.Context, inv protocol.Invocation) (any, error) {
	e.calls = append(e.calls, inv)

	return map[string]any{"agent": inv.TargetID, "inputs": inv.Inputs}, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry(slog.Default())
	r.RegisterDefaultActions(nil)
	r.RegisterDefaultTriggerTypes()

	return r
}

func TestRegistry_GetAvailableActions(t *testing.T) {
	r := newTestRegistry()

	ids := make([]string, 0)
	for _, f := range r.GetAvailableActions() {
		ids = append(ids, f.ID())
	}

	assert.Equal(t, []string{"http_request", "log", "transform"}, ids)

	_, ok := r.ActionFactory("log")
	assert.True(t, ok)
}

func TestRegistry_Invoke_Action(t *testing.T) {
	r := newTestRegistry()

	res, err := r.Invoke(context.Background(), protocol.Invocation{
		Kind:     models.NodeKindAction,
		TargetID: "transform",
		Inputs:   map[string]any{"expression": "Hello {{.name}}", "name": "Ada"},
		Mode:     models.ExecutionModeLive,
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultStatusSucceeded, res.Status)
	assert.Equal(t, "Hello Ada", res.Output)
}

func TestRegistry_Invoke_MissingRequiredInput(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Invoke(context.Background(), protocol.Invocation{
		Kind:     models.NodeKindAction,
		TargetID: "log",
		Inputs:   map[string]any{"level": "info"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrMissingInput)

	var missing *protocol.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"message"}, missing.Names)
}

func TestRegistry_Invoke_ActionFailureIsResult(t *testing.T) {
	r := newTestRegistry()

	res, err := r.Invoke(context.Background(), protocol.Invocation{
		Kind:     models.NodeKindAction,
		TargetID: "transform",
		Inputs:   map[string]any{"expression": "{{"},
	})
	require.NoError(t, err)
	assert.Equal(t, protocol.ResultStatusFailed, res.Status)
	assert.Contains(t, res.Error, "transformation failed")
}

func TestRegistry_Invoke_DryRunSimulates(t *testing.T) {
	r := newTestRegistry()

	res, err := r.Invoke(context.Background(), protocol.Invocation{
		Kind:     models.NodeKindAction,
		TargetID: "http_request",
		Inputs:   map[string]any{"url": "https://example.invalid/hook", "method": "POST"},
		Mode:     models.ExecutionModeDryRun,
	})
	require.NoError(t, err)
	assert.Equal(t, true, res.Output.(map[string]any)["simulated"])
}

func TestRegistry_Invoke_UnknownTargets(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Invoke(context.Background(), protocol.Invocation{Kind: models.NodeKindAction, TargetID: "nope"})
	assert.ErrorIs(t, err, protocol.ErrUnknownTarget)

	_, err = r.Invoke(context.Background(), protocol.Invocation{Kind: models.NodeKindAgent, TargetID: "summarizer"})
	assert.ErrorIs(t, err, protocol.ErrUnknownTarget)

	_, err = r.Invoke(context.Background(), protocol.Invocation{Kind: models.NodeKindTrigger})
	assert.ErrorIs(t, err, protocol.ErrUnknownTarget)
}

func TestRegistry_Invoke_Agent(t *testing.T) {
	r := newTestRegistry()
	agent := &echoAgent{}
	r.SetAgentInvoker(agent)

	res, err := r.Invoke(context.Background(), protocol.Invocation{
		Kind:     models.NodeKindAgent,
		TargetID: "summarizer",
		Inputs:   map[string]any{"text": "long"},
		Mode:     models.ExecutionModeDryRun,
	})
	require.NoError(t, err)
	assert.Equal(t, "summarizer", res.Output.(map[string]any)["agent"])
	require.Len(t, agent.calls, 1)
	assert.Equal(t, models.ExecutionModeDryRun, agent.calls[0].Mode)
}

func TestRegistry_ValidateTriggerConfig(t *testing.T) {
	r := newTestRegistry()

	assert.NoError(t, r.ValidateTriggerConfig(models.TriggerTypeFieldChanged, map[string]any{"field": "stage"}))
	assert.ErrorIs(t, r.ValidateTriggerConfig(models.TriggerTypeFieldChanged, nil), protocol.ErrMissingInput)
	assert.Error(t, r.ValidateTriggerConfig(models.TriggerTypeFieldChanged, map[string]any{"field": 3}))
	assert.NoError(t, r.ValidateTriggerConfig("custom.unregistered", map[string]any{"anything": true}))
	assert.NoError(t, r.ValidateTriggerConfig(models.TriggerTypeManual, nil))

	types := r.GetAvailableTriggerTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, models.TriggerTypeFieldChanged, types[0].ID)
}

func TestStaticRecords(t *testing.T) {
	records := NewStaticRecords()
	records.Put("ws", models.ModuleCRM, "r1", map[string]any{"name": "Ada"})

	got, err := records.FetchRecord(context.Background(), "ws", models.ModuleCRM, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])

	_, err = records.FetchRecord(context.Background(), "ws", models.ModuleTickets, "r1")
	assert.ErrorIs(t, err, protocol.ErrRecordNotFound)
}

func TestLoadStaticRecords(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name: "valid",
			content: `records:
  - workspace_id: ws-1
    module: crm
    id: lead-1
    values:
      name: Ada
`,
		},
		{
			name: "unknown module",
			content: `records:
  - workspace_id: ws-1
    module: spaceships
    id: lead-1
`,
			wantErr: true,
		},
		{name: "not yaml", content: "records: [", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "records.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			records, err := LoadStaticRecords(path)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			record, err := records.FetchRecord(t.Context(), "ws-1", models.ModuleCRM, "lead-1")
			require.NoError(t, err)
			assert.Equal(t, "Ada", record["name"])
		})
	}
}
