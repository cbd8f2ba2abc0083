package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
)

// MockRateLimitService is a mock implementation of service.RateLimitService
type MockRateLimitService struct {
	mock.Mock
}

var _ service.RateLimitService = (*MockRateLimitService)(nil)

func (m *MockRateLimitService) CheckLimit(ctx context.Context, key string, limit, windowSeconds int, opts models.CheckOptions) (*models.Result, error) {
	args := m.Called(ctx, key, limit, windowSeconds, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Result), args.Error(1)
}

func (m *MockRateLimitService) CheckPolicy(ctx context.Context, key string, local models.Policy, opts models.CheckOptions) (*models.Result, error) {
	args := m.Called(ctx, key, local, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Result), args.Error(1)
}

func (m *MockRateLimitService) Consume(ctx context.Context, key string, local models.Policy, opts models.CheckOptions) (*models.Result, error) {
	args := m.Called(ctx, key, local, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Result), args.Error(1)
}

func (m *MockRateLimitService) GetCurrentCount(ctx context.Context, key string, windowSeconds int, rlContext string) (int, error) {
	args := m.Called(ctx, key, windowSeconds, rlContext)
	return args.Int(0), args.Error(1)
}

func (m *MockRateLimitService) Reset(ctx context.Context, key string, rlContext string) error {
	args := m.Called(ctx, key, rlContext)
	return args.Error(0)
}

func (m *MockRateLimitService) BuildKey(rlContext, identifier string) string {
	args := m.Called(rlContext, identifier)
	return args.String(0)
}

func (m *MockRateLimitService) ResolvePolicy(rlContext string, local models.Policy) models.Policy {
	args := m.Called(rlContext, local)
	return args.Get(0).(models.Policy)
}
