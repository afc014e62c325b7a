package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/dukex/workgraph/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "file url", url: "file://" + dir},
		{name: "bare path", url: filepath.Join(dir, "store")},
		{name: "empty file url", url: "file://", wantErr: true},
		{name: "unknown provider", url: "mongodb://localhost", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPersistence(t.Context(), logger, tt.url)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.IsType(t, &file.Persistence{}, p)
			assert.NoError(t, p.Close(t.Context()))
		})
	}
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("", "", "test", logger)
	require.NoError(t, err)
	assert.Nil(t, bus)

	bus, err = NewEventBus("memory", "", "test", logger)
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.NotEmpty(t, bus.GenerateID())
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", "", "test", logger)
	require.Error(t, err)
}

func TestNewRegistry(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	reg, err := NewRegistry(t.Context(), logger, AgentConfig{})
	require.NoError(t, err)

	_, ok := reg.ActionFactory("log")
	assert.True(t, ok)

	_, ok = reg.TriggerType("schedule.cron")
	assert.True(t, ok)

	_, err = NewRegistry(t.Context(), logger, AgentConfig{ProfilesFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	reg, err := NewRegistry(t.Context(), logger, AgentConfig{})
	require.NoError(t, err)

	_, err = NewEngine(t.Context(), logger, EngineConfig{PoolSize: -1}, file.NewPersistence(t.TempDir()), reg, nil)
	require.Error(t, err)

	engine, err := NewEngine(t.Context(), logger, EngineConfig{}, file.NewPersistence(t.TempDir()), reg, nil)
	require.NoError(t, err)
	assert.NoError(t, engine.Close(t.Context()))
}
