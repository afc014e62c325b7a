package models

import (
	"maps"
	"sync"
)

// Reserved top-level names of the execution context.
const (
	ContextRecordKey      = "record"
	ContextTriggerDataKey = "trigger_data"
)

// ExecutionContext is the namespace available to input mappings during one run.
// It is seeded with the trigger payload and grows as nodes bind their output variables.
// The seed maps are copied, and top-level values are replaced, never mutated in place,
// so a snapshot stays stable.
type ExecutionContext struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewExecutionContext(record, triggerData map[string]any) *ExecutionContext {
	if record == nil {
		record = map[string]any{}
	}

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	return &ExecutionContext{
		values: map[string]any{
			ContextRecordKey:      CloneValues(record),
			ContextTriggerDataKey: CloneValues(triggerData),
		},
	}
}

func (c *ExecutionContext) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.values[name]

	return v, ok
}

// Set binds name to value, replacing any earlier binding.
func (c *ExecutionContext) Set(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[name] = value
}

// Snapshot returns a shallow copy of the current bindings.
func (c *ExecutionContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.values)
}
