package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/deploytrack/internal/model"
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Register(ctx context.Context, svc *model.Service) error {
	args := m.Called(ctx, svc)
	return args.Error(0)
}

func (m *mockRegistry) GetByID(ctx context.Context, id string) (*model.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *mockRegistry) List(ctx context.Context) ([]model.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Service), args.Error(1)
}

func (m *mockRegistry) Refresh(ctx context.Context, id string) (*model.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Service), args.Error(1)
}

func (m *mockRegistry) RefreshAll(ctx context.Context) ([]model.Service, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Service), args.Error(1)
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) Create(ctx context.Context, serviceID, targetVersion string) (*model.Deployment, error) {
	args := m.Called(ctx, serviceID, targetVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deployment), args.Error(1)
}

func (m *mockOrchestrator) ListByService(ctx context.Context, serviceID string) ([]model.Deployment, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Deployment), args.Error(1)
}

func (m *mockOrchestrator) Poll(ctx context.Context, id string) (*model.Deployment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deployment), args.Error(1)
}
