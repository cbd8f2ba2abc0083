package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/constants"
)

// MockTokenVerifier is a mock implementation of service.TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*models.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Claims), args.Error(1)
}

// MockUserDirectory is a mock implementation of service.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockMetricsSink is a mock implementation of service.MetricsSink
type MockMetricsSink struct {
	mock.Mock
}

func (m *MockMetricsSink) Record(ctx context.Context, event constants.MetricEvent, rlContext, stage string) error {
	args := m.Called(ctx, event, rlContext, stage)
	return args.Error(0)
}

// MockNotificationSender is a mock implementation of service.NotificationSender
type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) Send(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}
