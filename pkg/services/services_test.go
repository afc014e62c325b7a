package services

import (
	"log/slog"
	"testing"

	"github.com/dukex/workgraph/pkg/mocks"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence/file"
	"github.com/dukex/workgraph/pkg/registry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	persistence *file.Persistence
	bus         *mocks.MockEventBus
	notifier    *Notifier
	workflows   *Workflow
	publishing  *Publishing
}

type invalidations struct {
	workspaces []string
}

func (i *invalidations) InvalidateWorkspace(workspaceID string) {
	i.workspaces = append(i.workspaces, workspaceID)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	bus := &mocks.MockEventBus{}
	bus.On("GenerateID").Return("evt-1").Maybe()
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	reg := registry.NewRegistry(testLogger())
	reg.RegisterDefaultTriggerTypes()

	notifier := NewNotifier(bus, testLogger())

	return &fixture{
		persistence: p,
		bus:         bus,
		notifier:    notifier,
		workflows:   NewWorkflow(p, reg, notifier),
		publishing:  NewPublishing(p, reg, notifier),
	}
}

func (f *fixture) create(t *testing.T, wf *models.Workflow) *models.Workflow {
	t.Helper()

	created, err := f.workflows.Create(t.Context(), wf)
	require.NoError(t, err)

	return created
}

// published returns the events of type T handed to the bus.
func published[T any](bus *mocks.MockEventBus) []T {
	var out []T

	for _, call := range bus.Calls {
		if call.Method != "Publish" {
			continue
		}

		if ev, ok := call.Arguments.Get(2).(T); ok {
			out = append(out, ev)
		}
	}

	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
