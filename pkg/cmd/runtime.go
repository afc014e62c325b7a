package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/workgraph/pkg/eventbus"
	"github.com/dukex/workgraph/pkg/otelhelper"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/dukex/workgraph/pkg/registry"
	"github.com/urfave/cli/v3"
)

// Runtime holds everything a binary built from CommonFlags needs.
type Runtime struct {
	Logger      *slog.Logger
	Persistence persistence.Persistence
	Registry    *registry.Registry
	EventBus    eventbus.EventBus
	Engine      *Engine

	closers []func(context.Context) error
}

// NewRuntime connects the store and the event bus and wires the engine. Close releases
// whatever was opened, also when NewRuntime fails halfway.
func NewRuntime(ctx context.Context, command *cli.Command, serviceName string, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Logger: logger}

	if command.Bool("otel") {
		shutdown, err := otelhelper.Setup(ctx, serviceName)
		if err != nil {
			return rt, fmt.Errorf("failed to set up tracing: %w", err)
		}

		rt.closers = append(rt.closers, shutdown)
	}

	reg, err := NewRegistry(ctx, logger, AgentConfigFrom(command))
	if err != nil {
		return rt, err
	}

	rt.Registry = reg

	store, err := NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return rt, err
	}

	rt.Persistence = store
	rt.closers = append(rt.closers, store.Close)

	bus, err := NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return rt, err
	}

	if bus != nil {
		rt.EventBus = bus
		rt.closers = append(rt.closers, func(context.Context) error { return bus.Close() })
	}

	engine, err := NewEngine(ctx, logger, EngineConfigFrom(command), store, reg, rt.EventBus)
	if err != nil {
		return rt, err
	}

	rt.Engine = engine
	rt.closers = append(rt.closers, engine.Close)

	return rt, nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	r.closers = nil

	return errors.Join(errs...)
}
