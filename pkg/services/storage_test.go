package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/workgraph/pkg/mocks"
	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/testutil"
	"github.com/dukex/workgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

type fixedMatcher []*models.Workflow

func (m fixedMatcher) Match(context.Context, *models.TriggerEvent) ([]*models.Workflow, error) {
	return m, nil
}

func TestWorkflow_HealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		healthy bool
	}{
		{name: "healthy", healthy: true},
		{name: "unhealthy", err: errDiskFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mocks.NewMockPersistence()
			p.On("HealthCheck", mock.Anything).Return(tt.err)

			msg, ok := NewWorkflow(p, nil, nil).HealthCheck(t.Context())
			assert.Equal(t, tt.healthy, ok)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestWorkflow_GetSurfacesStorageErrors(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.WorkflowRepo.On("Get", mock.Anything, "ws-test", "wf-1").Return(nil, errDiskFull)

	_, err := NewWorkflow(p, nil, nil).Get(t.Context(), "ws-test", "wf-1")
	require.ErrorIs(t, err, errDiskFull)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsValidationError(err))
}

func TestExecution_HandleTriggerReturnsRecordsWhenStoreFails(t *testing.T) {
	wf := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusPublished))

	p := mocks.NewMockPersistence()
	p.ExecutionRepo.On("Save", mock.Anything, mock.Anything).Return(errDiskFull)

	pool := workflow.NewPool(2, testLogger())
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	svc := NewExecution(p, workflow.NewRunner(echo(), pool, testLogger()), fixedMatcher{wf}, nil, nil, testLogger())

	recs, err := svc.HandleTrigger(t.Context(), &models.TriggerEvent{
		WorkspaceID: wf.WorkspaceID,
		TriggerType: models.TriggerTypeRecordCreated,
		Record:      map[string]any{"name": "Ada"},
	})
	require.ErrorIs(t, err, errDiskFull)
	require.Len(t, recs, 1)
	assert.Equal(t, models.ExecutionStatusSucceeded, recs[0].Status)

	p.ExecutionRepo.AssertExpectations(t)
}
