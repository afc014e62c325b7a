package registry

import (
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
)

// DefaultTriggerTypes are the trigger types every deployment understands.
func DefaultTriggerTypes() []protocol.TriggerType {
	return []protocol.TriggerType{
		{
			ID:          models.TriggerTypeRecordCreated,
			Name:        "Record created",
			Description: "Fires when a record is created in the workflow's module.",
			Schema:      map[string]any{"type": "object"},
		},
		{
			ID:          models.TriggerTypeRecordUpdated,
			Name:        "Record updated",
			Description: "Fires when any field of a record changes.",
			Schema:      map[string]any{"type": "object"},
		},
		{
			ID:          models.TriggerTypeFieldChanged,
			Name:        "Field changed",
			Description: "Fires when a specific field of a record changes value.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"field": map[string]any{
						"type":        "string",
						"minLength":   1,
						"description": "Name of the watched field",
					},
					"to": map[string]any{
						"description": "Only fire when the new value equals this value",
					},
				},
				"required": []string{"field"},
			},
		},
		{
			ID:          models.TriggerTypeScheduleCron,
			Name:        "Schedule",
			Description: "Fires on a cron schedule.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cron": map[string]any{
						"type":        "string",
						"description": "Five-field cron expression",
						"examples":    []string{"0 9 * * 1-5", "*/15 * * * *"},
					},
				},
				"required": []string{"cron"},
			},
		},
		{
			ID:          models.TriggerTypeManual,
			Name:        "Manual",
			Description: "Fires only when started explicitly through the API.",
		},
	}
}

// RegisterDefaultTriggerTypes registers DefaultTriggerTypes.
func (r *Registry) RegisterDefaultTriggerTypes() {
	for _, tt := range DefaultTriggerTypes() {
		r.RegisterTriggerType(tt)
	}
}

// ValidateTriggerConfig checks config against the schema of a registered trigger type.
// Unregistered trigger types and types without a schema accept any config.
func (r *Registry) ValidateTriggerConfig(triggerType string, config map[string]any) error {
	tt, ok := r.TriggerType(triggerType)
	if !ok {
		return nil
	}

	return validateInputs(tt.Schema, config)
}
