package sourcemock

import (
	"context"

	"github.com/nodeenergy/nodeenergy/pkg/source"
	"github.com/nodeenergy/nodeenergy/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockSource struct {
	mock.Mock
}

var _ source.Source = (*MockSource)(nil)

func (m *MockSource) GetState(ctx context.Context, entityID string) (types.EntityState, error) {
	args := m.Called(ctx, entityID)
	return args.Get(0).(types.EntityState), args.Error(1)
}

func (m *MockSource) ListStates(ctx context.Context) ([]types.EntityState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.EntityState), args.Error(1)
}

func (m *MockSource) PutState(ctx context.Context, st types.EntityState) error {
	args := m.Called(ctx, st)
	return args.Error(0)
}

func (m *MockSource) Close() error {
	args := m.Called()
	return args.Error(0)
}
