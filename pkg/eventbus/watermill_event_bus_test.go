package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/workgraph/pkg/channels/gochannel"
	"github.com/dukex/workgraph/pkg/eventbus"
	"github.com/dukex/workgraph/pkg/events"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{}, gochannel.Config{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_DeliversDecodedEvents(t *testing.T) {
	bus := newBus(t)

	received := make(chan *events.TriggerReceived, 1)

	require.NoError(t, bus.Handle(events.TriggerReceivedEvent, func(_ context.Context, event any) error {
		ev, ok := event.(*events.TriggerReceived)
		if !ok {
			return errors.New("unexpected event type")
		}

		received <- ev

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.TriggerReceived{
		BaseEvent: events.NewBaseEvent(bus.GenerateID(), events.TriggerReceivedEvent, "ws-1", ""),
		Trigger: &models.TriggerEvent{
			WorkspaceID: "ws-1",
			TriggerType: models.TriggerTypeRecordCreated,
			Record:      map[string]any{"name": "Ada"},
		},
	}

	require.NoError(t, bus.Publish(ctx, "ws-1", sent))

	select {
	case got := <-received:
		assert.Equal(t, sent.ID, got.ID)
		require.NotNil(t, got.Trigger)
		assert.Equal(t, models.TriggerTypeRecordCreated, got.Trigger.TriggerType)
		assert.Equal(t, "Ada", got.Trigger.Record["name"])
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_IgnoresUnhandledTypes(t *testing.T) {
	bus := newBus(t)

	var calls atomic.Int32

	done := make(chan struct{})

	require.NoError(t, bus.Handle(events.WorkflowPublishedEvent, func(context.Context, any) error {
		calls.Add(1)
		close(done)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "ws", events.WorkflowUnpublished{
		BaseEvent: events.NewBaseEvent("1", events.WorkflowUnpublishedEvent, "ws", "wf"),
	}))
	require.NoError(t, bus.Publish(ctx, "ws", events.WorkflowPublished{
		BaseEvent: events.NewBaseEvent("2", events.WorkflowPublishedEvent, "ws", "wf"),
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("published event was not delivered")
	}

	assert.Equal(t, int32(1), calls.Load())
}

func TestWatermillEventBus_HandleRejectsUnknownType(t *testing.T) {
	bus := newBus(t)

	assert.Error(t, bus.Handle("made.up", func(context.Context, any) error { return nil }))
}
