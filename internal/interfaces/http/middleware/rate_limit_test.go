package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/internal/application/service"
	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/infrastructure/ratelimit"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

func newLimiter(t *testing.T, httpPolicy models.Policy) (*service.RateLimitAppService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	resolver := ratelimit.NewResolver(
		models.Policy{Strategy: models.StrategySlidingWindow, Limit: 100, WindowSeconds: 60},
		map[string]models.Policy{"http": httpPolicy},
	)
	return service.NewRateLimitAppService(resolver, ratelimit.NewFactory(client), logger.NewNoopLogger()), mr
}

func newGuardedRouter(svc *service.RateLimitAppService, cfg *config.RateLimitConfig, userID string) *gin.Engine {
	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(string(constants.ContextKeyUserID), userID)
			c.Next()
		})
	}
	router.Use(RateLimitMiddleware(svc, cfg, logger.NewNoopLogger()))
	router.GET("/api/v1/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func doRequest(router *gin.Engine, method, path, forwardedFor string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.9:41000"
	if forwardedFor != "" {
		req.Header.Set(constants.HeaderForwardedFor, forwardedFor)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("sets headers and allows within budget", func(t *testing.T) {
		svc, _ := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 2, WindowSeconds: 60})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "")

		w := doRequest(router, http.MethodGet, "/api/v1/items", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get(constants.HeaderRateLimitLimit))
		assert.Equal(t, "1", w.Header().Get(constants.HeaderRateLimitRemaining))
		reset, err := strconv.ParseInt(w.Header().Get(constants.HeaderRateLimitReset), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, reset, int64(0))
		assert.Empty(t, w.Header().Get(constants.HeaderRetryAfter))
	})

	t.Run("rejects with 429 and retry hint", func(t *testing.T) {
		svc, _ := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 1, WindowSeconds: 30})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "")

		require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/items", "").Code)
		w := doRequest(router, http.MethodGet, "/api/v1/items", "")

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get(constants.HeaderRateLimitRemaining))
		retry, err := strconv.Atoi(w.Header().Get(constants.HeaderRetryAfter))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, retry, 1)
		assert.LessOrEqual(t, retry, 30)

		var body errors.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, string(errors.CodeRateLimitExceeded), body.Error)
		assert.Equal(t, int64(retry), body.RetryAfter)
	})

	t.Run("keys by forwarded client ip", func(t *testing.T) {
		svc, _ := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 1, WindowSeconds: 60})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "")

		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/items", "203.0.113.7, 10.0.0.1").Code)
		assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/items", "203.0.113.8").Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodGet, "/api/v1/items", "203.0.113.7").Code)
	})

	t.Run("prefers authenticated user", func(t *testing.T) {
		svc, mr := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 5, WindowSeconds: 60})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "u-42")

		require.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/v1/items", "").Code)
		assert.True(t, mr.Exists("rate-limit:http:user:u-42"))
	})

	t.Run("route table overrides the http policy", func(t *testing.T) {
		svc, _ := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 50, WindowSeconds: 60})
		cfg := &config.RateLimitConfig{
			Enabled: true,
			Routes: map[string]models.Policy{
				"/api/v1/login": {Limit: 1, WindowSeconds: 60},
			},
		}
		router := newGuardedRouter(svc, cfg, "")

		w := doRequest(router, http.MethodPost, "/api/v1/login", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1", w.Header().Get(constants.HeaderRateLimitLimit))
		assert.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodPost, "/api/v1/login", "").Code)

		w = doRequest(router, http.MethodGet, "/api/v1/items", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "50", w.Header().Get(constants.HeaderRateLimitLimit))
	})

	t.Run("fails open when the store is down", func(t *testing.T) {
		svc, mr := newLimiter(t, models.Policy{Strategy: models.StrategyFixedWindow, Limit: 1, WindowSeconds: 60})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "")
		mr.Close()

		for i := 0; i < 3; i++ {
			w := doRequest(router, http.MethodGet, "/api/v1/items", "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "1", w.Header().Get(constants.HeaderRateLimitRemaining))
		}
	})

	t.Run("fails closed when configured", func(t *testing.T) {
		svc, mr := newLimiter(t, models.Policy{
			Strategy: models.StrategyFixedWindow, Limit: 1, WindowSeconds: 60, FailOpen: models.BoolPtr(false),
		})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: true}, "")
		mr.Close()

		w := doRequest(router, http.MethodGet, "/api/v1/items", "")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get(constants.HeaderRetryAfter))
	})

	t.Run("disabled passes through", func(t *testing.T) {
		svc, _ := newLimiter(t, models.Policy{Limit: 1, WindowSeconds: 60})
		router := newGuardedRouter(svc, &config.RateLimitConfig{Enabled: false}, "")

		for i := 0; i < 3; i++ {
			w := doRequest(router, http.MethodGet, "/api/v1/items", "")
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Empty(t, w.Header().Get(constants.HeaderRateLimitLimit))
		}
	})
}
