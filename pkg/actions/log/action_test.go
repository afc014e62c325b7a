package log

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	action, err := NewActionFactory().Create(context.Background(), nil)
	require.NoError(t, err)

	out, err := action.Execute(context.Background(), protocol.Invocation{
		WorkflowID: "wf-1",
		Inputs:     map[string]any{"message": "stage changed", "level": "warn"},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"message": "stage changed", "level": "warn"}, out)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="stage changed"`)
}

func TestAction_Simulate(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	out, err := (&Action{}).Simulate(context.Background(), protocol.Invocation{
		Inputs: map[string]any{"message": 42},
	}, logger)
	require.NoError(t, err)

	assert.Equal(t, "42", out.(map[string]any)["message"])
	assert.Contains(t, buf.String(), "simulated=true")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("unknown"))
}
