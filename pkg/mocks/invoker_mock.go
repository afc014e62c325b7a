package mocks

import (
	"context"

	"github.com/dukex/workgraph/pkg/models"
	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockInvoker is a mock implementation of protocol.Invoker interface.
type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) Invoke(ctx context.Context, inv protocol.Invocation) (*protocol.Result, error) {
	args := m.Called(ctx, inv)
	if fn, ok := args.Get(0).(func(context.Context, protocol.Invocation) (*protocol.Result, error)); ok {
		return fn(ctx, inv)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.Result), args.Error(1)
}

// MockRecordProvider is a mock implementation of protocol.RecordProvider interface.
type MockRecordProvider struct {
	mock.Mock
}

func (m *MockRecordProvider) FetchRecord(ctx context.Context, workspaceID string, module models.Module, recordID string) (map[string]any, error) {
	args := m.Called(ctx, workspaceID, module, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}
