package services

import (
	"context"
	"log/slog"

	"github.com/dukex/workgraph/pkg/eventbus"
	"github.com/dukex/workgraph/pkg/events"
	"github.com/dukex/workgraph/pkg/models"
)

// CacheInvalidator drops cached lookups of a workspace, see workflow.TriggerMatcher.
type CacheInvalidator interface {
	InvalidateWorkspace(workspaceID string)
}

// Notifier tells the rest of the system that definitions changed or runs completed.
// A nil Notifier, or one without a bus, only logs. Publish failures are logged and never
// fail the operation that triggered them: the change is already stored.
type Notifier struct {
	bus    eventbus.EventBus
	caches []CacheInvalidator
	logger *slog.Logger
}

func NewNotifier(bus eventbus.EventBus, logger *slog.Logger, caches ...CacheInvalidator) *Notifier {
	return &Notifier{
		bus:    bus,
		caches: caches,
		logger: logger.With("module", "notifier"),
	}
}

func (n *Notifier) invalidate(workspaceID string) {
	for _, c := range n.caches {
		c.InvalidateWorkspace(workspaceID)
	}
}

func (n *Notifier) publish(ctx context.Context, key string, event eventbus.Event) {
	if n.bus == nil {
		return
	}

	if err := n.bus.Publish(ctx, key, event); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}

// Changed is called after a stored edit of wf.
func (n *Notifier) Changed(_ context.Context, wf *models.Workflow) {
	if n == nil {
		return
	}

	n.invalidate(wf.WorkspaceID)
}

func (n *Notifier) Published(ctx context.Context, wf *models.Workflow) {
	if n == nil {
		return
	}

	n.invalidate(wf.WorkspaceID)

	id := ""
	if n.bus != nil {
		id = n.bus.GenerateID()
	}

	n.publish(ctx, wf.WorkspaceID, events.WorkflowPublished{
		BaseEvent:   events.NewBaseEvent(id, events.WorkflowPublishedEvent, wf.WorkspaceID, wf.ID),
		TriggerType: wf.TriggerType,
		Version:     wf.Version,
	})
}

func (n *Notifier) Unpublished(ctx context.Context, wf *models.Workflow) {
	if n == nil {
		return
	}

	n.invalidate(wf.WorkspaceID)

	id := ""
	if n.bus != nil {
		id = n.bus.GenerateID()
	}

	n.publish(ctx, wf.WorkspaceID, events.WorkflowUnpublished{
		BaseEvent:   events.NewBaseEvent(id, events.WorkflowUnpublishedEvent, wf.WorkspaceID, wf.ID),
		TriggerType: wf.TriggerType,
		Version:     wf.Version,
	})
}

func (n *Notifier) ExecutionCompleted(ctx context.Context, record *models.ExecutionRecord) {
	if n == nil || n.bus == nil {
		return
	}

	n.publish(ctx, record.WorkspaceID, events.NewWorkflowExecutionCompleted(n.bus.GenerateID(), record))
}

// PublishTrigger hands ev to the workers over the bus.
func (n *Notifier) PublishTrigger(ctx context.Context, ev *models.TriggerEvent) error {
	if n == nil || n.bus == nil {
		return ErrNoEventBus
	}

	if ev.ID == "" {
		ev.ID = n.bus.GenerateID()
	}

	return n.bus.Publish(ctx, ev.WorkspaceID, events.TriggerReceived{
		BaseEvent: events.NewBaseEvent(n.bus.GenerateID(), events.TriggerReceivedEvent, ev.WorkspaceID, ev.WorkflowID),
		Trigger:   ev,
	})
}
