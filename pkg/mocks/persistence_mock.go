package mocks

import (
	"context"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Get(ctx context.Context, workspaceID, id string) (*models.Workflow, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockWorkflowRepository) List(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*persistence.WorkflowListResult), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.Workflow, expectedVersion int64) error {
	args := m.Called(ctx, workflow, expectedVersion)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, workspaceID, id string) error {
	args := m.Called(ctx, workspaceID, id)

	return args.Error(0)
}

func (m *MockWorkflowRepository) FindPublishedByTrigger(ctx context.Context, workspaceID, triggerType string) ([]*models.Workflow, error) {
	args := m.Called(ctx, workspaceID, triggerType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Workflow), args.Error(1)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	args := m.Called(ctx, record)

	return args.Error(0)
}

func (m *MockExecutionRepository) Get(ctx context.Context, workspaceID, id string) (*models.ExecutionRecord, error) {
	args := m.Called(ctx, workspaceID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionRecord), args.Error(1)
}

func (m *MockExecutionRepository) ListByWorkflow(ctx context.Context, workspaceID, workflowID string, limit int) ([]*models.ExecutionRecord, error) {
	args := m.Called(ctx, workspaceID, workflowID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.ExecutionRecord), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	WorkflowRepo  *MockWorkflowRepository
	ExecutionRepo *MockExecutionRepository
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		WorkflowRepo:  &MockWorkflowRepository{},
		ExecutionRepo: &MockExecutionRepository{},
	}
}

func (m *MockPersistence) Workflows() persistence.WorkflowRepository {
	return m.WorkflowRepo
}

func (m *MockPersistence) Executions() persistence.ExecutionRepository {
	return m.ExecutionRepo
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
