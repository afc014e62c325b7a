package protocol

import (
	"context"

	"github.com/dukex/workgraph/pkg/models"
)

// TriggerType describes a kind of event workflows can start from.
type TriggerType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Modules     []models.Module `json:"modules,omitempty"` // Empty means every module
	Schema      map[string]any  `json:"schema,omitempty"`  // JSON schema of trigger_config
}

// TriggerCallback receives events emitted by a trigger source.
type TriggerCallback func(ctx context.Context, event *models.TriggerEvent) error

// TriggerSource delivers trigger events until ctx is cancelled or Stop is called.
type TriggerSource interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
}
