package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	ratelimitadapter "github.com/turtacn/edugate/internal/adapter/ratelimit"
	"github.com/turtacn/edugate/internal/application/service"
	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/infrastructure/crypto"
	"github.com/turtacn/edugate/internal/infrastructure/directory"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/internal/interfaces/gateway"
	"github.com/turtacn/edugate/internal/interfaces/http/handlers"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/logger"
)

type sentNotifications struct{ n int }

func (s *sentNotifications) Send(context.Context, *models.Notification) error {
	s.n++
	return nil
}

func newTestRouter(t *testing.T) (*Router, *crypto.HMACVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{
		Server:  config.ServerConfig{AdminToken: "admin-secret", CORSOrigins: []string{"https://app.example.edu"}},
		Metrics: config.MetricsConfig{Prometheus: true},
		RateLimit: config.RateLimitConfig{
			Enabled: true,
			Routes:  map[string]models.Policy{"/api/v1/ping": {Limit: 2, WindowSeconds: 60}},
		},
		Gateway: config.GatewayConfig{IPPolicy: models.Policy{Limit: 5, WindowSeconds: 60}},
	}

	log := logger.NewNoopLogger()
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	resolver := ratelimit.NewResolver(
		models.Policy{Strategy: models.StrategyFixedWindow, Limit: 100, WindowSeconds: 60},
		map[string]models.Policy{"notification": {Limit: 1, WindowSeconds: 3600}},
	)
	svc := service.NewRateLimitAppService(resolver, ratelimit.NewFactory(client), log, service.WithMetricsSink(metrics))
	verifier, err := crypto.NewHMACVerifier(config.JWTConfig{Secret: "router-secret"})
	require.NoError(t, err)
	admission := gateway.NewAdmission(svc, verifier, directory.NewStatic(map[string]string{"alice": "school-1"}),
		metrics, cfg.Gateway, log)

	r := NewRouter(cfg, log, Dependencies{
		RateLimit:           svc,
		Verifier:            verifier,
		ThrottleStorage:     ratelimitadapter.NewRedisStorage(client, log),
		Metrics:             metrics,
		Gatherer:            reg,
		Tracer:              otel.Tracer("router-test"),
		HealthHandler:       handlers.NewHealthHandler(map[string]handlers.HealthChecker{}, log),
		AdminHandler:        handlers.NewAdminHandler(svc, log),
		GatewayHandler:      handlers.NewGatewayHandler(admission, nil, log),
		NotificationHandler: handlers.NewNotificationHandler(service.NewNotificationAppService(svc, &sentNotifications{}, log)),
	})
	return r, verifier
}

func do(r *Router, method, target, auth, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth != "" {
		req.Header.Set(constants.HeaderAuthorization, auth)
	}
	r.Engine().ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r, verifier := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/live", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/nope", "", "").Code)

	// Route table policy on /api/v1/ping.
	w := do(r, http.MethodGet, "/api/v1/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(constants.HeaderRateLimitLimit))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))
	do(r, http.MethodGet, "/api/v1/ping", "", "")
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/v1/ping", "", "").Code)

	// Authenticated callers have their own budget.
	token, err := verifier.Issue("alice", "school-1", "teacher", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/ping", "Bearer "+token, "").Code)

	// Admin surface.
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/admin/rate-limits/policy", "", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/admin/rate-limits/policy", "Bearer admin-secret", "").Code)

	// Gateway handshake.
	w = do(r, http.MethodGet, "/ws?token="+token, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tenant_id":"school-1"`)

	// Notifications require a token and are budgeted per recipient.
	body := `{"recipient_id":"parent-9","channel":"sms","body":"pickup at 3"}`
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/v1/notifications", "", body).Code)
	assert.Equal(t, http.StatusAccepted, do(r, http.MethodPost, "/api/v1/notifications", "Bearer "+token, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/v1/notifications", "Bearer "+token, body).Code)

	w = do(r, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "edugate_http_requests_total")
}
