package redisstream

import (
	"log/slog"
	"testing"

	"github.com/dukex/workgraph/pkg/models"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]any
		want    *models.TriggerEvent
		wantErr bool
	}{
		{
			name: "json event",
			values: map[string]any{
				EventField: `{"id":"ev-1","workspace_id":"ws","trigger_type":"record.created","record":{"name":"Ada"}}`,
			},
			want: &models.TriggerEvent{
				ID:          "ev-1",
				WorkspaceID: "ws",
				TriggerType: models.TriggerTypeRecordCreated,
				Record:      map[string]any{"name": "Ada"},
			},
		},
		{
			name: "flat fields",
			values: map[string]any{
				"workspace_id": "ws",
				"module":       "tickets",
				"trigger_type": "field.changed",
				"trigger_data": `{"field":"status","new_value":"closed"}`,
			},
			want: &models.TriggerEvent{
				ID:          "1-0",
				WorkspaceID: "ws",
				Module:      models.ModuleTickets,
				TriggerType: models.TriggerTypeFieldChanged,
				TriggerData: map[string]any{"field": "status", "new_value": "closed"},
			},
		},
		{
			name:    "missing trigger type",
			values:  map[string]any{"workspace_id": "ws"},
			wantErr: true,
		},
		{
			name:    "malformed event",
			values:  map[string]any{EventField: "{"},
			wantErr: true,
		},
		{
			name:    "malformed record",
			values:  map[string]any{"workspace_id": "ws", "trigger_type": "manual", "record": "[1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeMessage(redis.XMessage{ID: "1-0", Values: tt.values})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)

				return
			}

			require.NoError(t, err)
			assert.False(t, got.OccurredAt.IsZero())

			got.OccurredAt = tt.want.OccurredAt
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSource(t *testing.T) {
	_, err := NewSource(Config{}, slog.Default())
	assert.Error(t, err)

	_, err = NewSource(Config{URL: "not a url"}, slog.Default())
	assert.Error(t, err)

	s, err := NewSource(Config{URL: "redis://localhost:6379/0"}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, s.config.Stream)
	assert.Equal(t, DefaultGroup, s.config.Group)
	assert.Equal(t, int64(10), s.config.Count)
}
