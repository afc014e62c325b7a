package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneValue(t *testing.T) {
	type profile struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{name: "nil", input: nil, want: nil},
		{name: "scalar", input: "x", want: "x"},
		{name: "nested map", input: map[string]any{"a": map[string]any{"b": []any{1}}}, want: map[string]any{"a": map[string]any{"b": []any{1}}}},
		{name: "struct becomes map", input: profile{Name: "Ada"}, want: map[string]any{"name": "Ada"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CloneValue(tt.input))
		})
	}
}

func TestNewExecutionContext_CopiesSeeds(t *testing.T) {
	record := map[string]any{"values": map[string]any{"name": "Ada"}}

	ctx := NewExecutionContext(record, nil)
	record["values"].(map[string]any)["name"] = "changed"

	v, ok := ctx.Get(ContextRecordKey)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"values": map[string]any{"name": "Ada"}}, v)

	data, ok := ctx.Get(ContextTriggerDataKey)
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, data)
}
