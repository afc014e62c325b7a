// Package worker consumes trigger deliveries and lifecycle notifications from the event
// bus and feeds trigger sources into the execution service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/eventbus"
	"github.com/dukex/workgraph/pkg/events"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/dukex/workgraph/pkg/services"
)

type TriggerHandler interface {
	HandleTrigger(ctx context.Context, ev *models.TriggerEvent) ([]*models.ExecutionRecord, error)
}

// Reloader resyncs state derived from the published definitions, e.g. cron entries.
type Reloader interface {
	Reload(ctx context.Context) error
}

type Worker struct {
	id        string
	bus       eventbus.EventBus
	triggers  TriggerHandler
	caches    []services.CacheInvalidator
	reloaders []Reloader
	sources   []protocol.TriggerSource
	logger    *slog.Logger
}

type Option func(*Worker)

// WithCache registers caches to drop when a workspace's definitions are (un)published.
func WithCache(caches ...services.CacheInvalidator) Option {
	return func(w *Worker) { w.caches = append(w.caches, caches...) }
}

func WithReloader(reloaders ...Reloader) Option {
	return func(w *Worker) { w.reloaders = append(w.reloaders, reloaders...) }
}

// WithSource adds trigger sources whose events are handled by this worker.
func WithSource(sources ...protocol.TriggerSource) Option {
	return func(w *Worker) { w.sources = append(w.sources, sources...) }
}

// New creates a worker. bus may be nil, then only the configured sources deliver triggers.
func New(id string, bus eventbus.EventBus, triggers TriggerHandler, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		id:       id,
		bus:      bus,
		triggers: triggers,
		logger:   logger.With("module", "worker", "worker_id", id),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start registers the event handlers, subscribes to the bus and starts the sources. It
// returns once everything is running; consumption stops when ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "sources", len(w.sources))

	if w.bus != nil {
		handlers := map[events.EventType]eventbus.EventHandler{
			events.TriggerReceivedEvent:     w.handleTriggerReceived,
			events.WorkflowPublishedEvent:   w.handleLifecycle,
			events.WorkflowUnpublishedEvent: w.handleLifecycle,
		}

		for eventType, handler := range handlers {
			if err := w.bus.Handle(eventType, handler); err != nil {
				return fmt.Errorf("failed to register %s handler: %w", eventType, err)
			}
		}

		if err := w.bus.Subscribe(ctx); err != nil {
			return err
		}
	}

	for _, source := range w.sources {
		if err := source.Start(ctx, w.handleTrigger); err != nil {
			return fmt.Errorf("failed to start trigger source: %w", err)
		}
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

// Stop stops every source. Bus consumption ends with the Start context.
func (w *Worker) Stop(ctx context.Context) error {
	var errs []error

	for _, source := range w.sources {
		if err := source.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// handleTrigger runs the definitions matching ev. Runs that started are never retried:
// an error is only returned when nothing ran and a redelivery could succeed.
func (w *Worker) handleTrigger(ctx context.Context, ev *models.TriggerEvent) error {
	records, err := w.triggers.HandleTrigger(ctx, ev)
	if err == nil {
		return nil
	}

	if services.IsValidationError(err) {
		w.logger.WarnContext(ctx, "Dropping invalid trigger event", "error", err)

		return nil
	}

	if len(records) > 0 {
		w.logger.ErrorContext(ctx, "Some matched workflows did not run", "started", len(records), "error", err)

		return nil
	}

	return err
}

func (w *Worker) handleTriggerReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.TriggerReceived)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for TriggerReceived")

		return nil
	}

	if received.Trigger == nil {
		w.logger.WarnContext(ctx, "Dropping trigger delivery without payload", "event_id", received.ID)

		return nil
	}

	if received.Trigger.ID == "" {
		received.Trigger.ID = received.ID
	}

	w.logger.DebugContext(ctx, "Processing trigger received event", "event_id", received.ID, "workspace_id", received.WorkspaceID)

	return w.handleTrigger(ctx, received.Trigger)
}

func (w *Worker) handleLifecycle(ctx context.Context, event any) error {
	var base events.BaseEvent

	switch ev := event.(type) {
	case *events.WorkflowPublished:
		base = ev.BaseEvent
	case *events.WorkflowUnpublished:
		base = ev.BaseEvent
	default:
		w.logger.ErrorContext(ctx, "Invalid lifecycle event type")

		return nil
	}

	w.logger.InfoContext(ctx, "Definition lifecycle changed", "event_type", base.Type, "workflow_id", base.WorkflowID, "workspace_id", base.WorkspaceID)

	for _, c := range w.caches {
		c.InvalidateWorkspace(base.WorkspaceID)
	}

	for _, r := range w.reloaders {
		if err := r.Reload(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to reload after lifecycle change", "error", err)
		}
	}

	return nil
}
