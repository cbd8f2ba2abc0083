package gateway

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service/mocks"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

func newMockedAdmission() (*Admission, *mocks.MockRateLimitService, *mocks.MockTokenVerifier, *mocks.MockUserDirectory, *mocks.MockMetricsSink) {
	limiter := &mocks.MockRateLimitService{}
	verifier := &mocks.MockTokenVerifier{}
	users := &mocks.MockUserDirectory{}
	sink := &mocks.MockMetricsSink{}

	limiter.On("BuildKey", "websocket", mock.Anything).Return("k")
	limiter.On("ResolvePolicy", "websocket", mock.Anything).Return(models.Policy{Limit: 5, WindowSeconds: 60})

	a := NewAdmission(limiter, verifier, users, sink, config.GatewayConfig{}, logger.NewNoopLogger())
	return a, limiter, verifier, users, sink
}

func aliceClaims() *models.Claims {
	return &models.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"}, TenantID: "school-1"}
}

func TestAdmit_DirectoryBackendFailure(t *testing.T) {
	a, limiter, verifier, users, sink := newMockedAdmission()
	limiter.On("Consume", mock.Anything, "k", mock.Anything, mock.Anything).
		Return(&models.Result{Allowed: true, Limit: 5, Remaining: 4}, nil)
	verifier.On("Verify", mock.Anything, "tok").Return(aliceClaims(), nil)
	users.On("GetUser", mock.Anything, "alice").Return(nil, stderrors.New("pool exhausted"))

	recorded := make(chan string, 1)
	sink.On("Record", mock.Anything, constants.MetricEventBlock, "websocket", StageUser).
		Run(func(args mock.Arguments) { recorded <- args.String(3) }).
		Return(nil)

	_, err := a.Admit(context.Background(), Attempt{ClientIP: "192.0.2.1", Token: "tok"})
	stage, status := rejectedAt(t, err)
	assert.Equal(t, StageUser, stage)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	select {
	case got := <-recorded:
		assert.Equal(t, StageUser, got)
	case <-time.After(time.Second):
		t.Fatal("rejection metric was not recorded")
	}
	limiter.AssertNumberOfCalls(t, "Consume", 1)
}

func TestAdmit_InactiveUser(t *testing.T) {
	a, limiter, verifier, users, sink := newMockedAdmission()
	limiter.On("Consume", mock.Anything, "k", mock.Anything, mock.Anything).
		Return(&models.Result{Allowed: true, Limit: 5, Remaining: 4}, nil)
	verifier.On("Verify", mock.Anything, "tok").Return(aliceClaims(), nil)
	users.On("GetUser", mock.Anything, "alice").Return(&models.User{ID: "alice", Active: false}, nil)
	sink.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := a.Admit(context.Background(), Attempt{ClientIP: "192.0.2.1", Token: "tok"})
	stage, status := rejectedAt(t, err)
	assert.Equal(t, StageUser, stage)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAdmit_UserStageFailOpenOnStoreError(t *testing.T) {
	a, limiter, verifier, users, sink := newMockedAdmission()
	limiter.On("Consume", mock.Anything, "k", mock.Anything, mock.Anything).
		Return(&models.Result{Allowed: true, Limit: 5, Remaining: 4}, nil).Once()
	limiter.On("Consume", mock.Anything, "k", mock.Anything, mock.Anything).
		Return(nil, errors.ErrStoreUnavailable(stderrors.New("timeout"))).Once()
	verifier.On("Verify", mock.Anything, "tok").Return(aliceClaims(), nil)
	users.On("GetUser", mock.Anything, "alice").Return(&models.User{ID: "alice", Active: true}, nil)

	id, err := a.Admit(context.Background(), Attempt{ClientIP: "192.0.2.1", Token: "tok"})
	assert.NoError(t, err)
	assert.Equal(t, "alice", id.UserID)
	assert.Equal(t, "school-1", id.TenantID)
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdmit_NonStoreLimiterErrorRejects(t *testing.T) {
	a, limiter, _, _, sink := newMockedAdmission()
	limiter.On("Consume", mock.Anything, "k", mock.Anything, mock.Anything).
		Return(nil, errors.ErrUnsupportedStrategy("leaky_bucket"))
	sink.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := a.Admit(context.Background(), Attempt{ClientIP: "192.0.2.1", Token: "tok"})
	stage, status := rejectedAt(t, err)
	assert.Equal(t, StageIP, stage)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
