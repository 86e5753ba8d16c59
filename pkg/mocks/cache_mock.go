package mocks

import (
	"context"

	"github.com/dukex/nodeflow/pkg/cache"
	"github.com/stretchr/testify/mock"
)

// MockGraphCache is a mock implementation of services.GraphCache interface.
type MockGraphCache struct {
	mock.Mock
}

func (m *MockGraphCache) Get(ctx context.Context, workflowID string) (*cache.Entry, bool, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*cache.Entry), args.Bool(1), args.Error(2)
}

func (m *MockGraphCache) Set(ctx context.Context, entry *cache.Entry) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockGraphCache) Delete(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)

	return args.Error(0)
}
