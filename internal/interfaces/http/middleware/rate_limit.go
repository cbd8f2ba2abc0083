package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
	"github.com/turtacn/edugate/pkg/utils"
)

// RateLimitMiddleware guards every request with the http context policy,
// overridden per route by cfg.Routes (keyed by gin route template).
// RateLimitMiddleware 使用 http 上下文策略保护每个请求，cfg.Routes 可按路由模板覆盖。
func RateLimitMiddleware(rateLimiter service.RateLimitService, cfg *config.RateLimitConfig, log logger.Logger) gin.HandlerFunc {
	rlContext := string(constants.RateLimitContextHTTP)

	return func(c *gin.Context) {
		if cfg == nil || !cfg.Enabled {
			c.Next()
			return
		}

		identifier := requestIdentity(c)
		var local models.Policy
		route := c.FullPath()
		if p, ok := cfg.Routes[route]; ok && route != "" {
			local = p
			// Route budgets are counted separately from the surface-wide budget.
			identifier = "route:" + route + ":" + identifier
		}

		key := rateLimiter.BuildKey(rlContext, identifier)
		res, err := rateLimiter.CheckPolicy(c.Request.Context(), key, local, models.CheckOptions{
			Context:    rlContext,
			Identifier: identifier,
		})
		if err != nil {
			log.Error(c.Request.Context(), "rate limit check failed", err, logger.String("key", key))
			c.Next()
			return
		}

		if res.Limit > 0 {
			c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(res.Limit))
			c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
			c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(res.ResetUnix(), 10))
		}

		if !res.Allowed {
			retryAfter := res.RetryAfterSeconds(time.Now())
			c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("identifier", identifier),
				logger.Int("limit", res.Limit),
				logger.Int64("retry_after", retryAfter),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errors.ToErrorResponse(errors.ErrRateLimitExceeded(rlContext, res.Limit, retryAfter)))
			return
		}

		c.Next()
	}
}

// requestIdentity prefers the authenticated user over the client address.
func requestIdentity(c *gin.Context) string {
	if userID := c.GetString(string(constants.ContextKeyUserID)); userID != "" {
		return constants.GatewayUserNamespace + constants.RateLimitKeySeparator + userID
	}
	return constants.GatewayIPNamespace + constants.RateLimitKeySeparator + utils.ClientIP(c.Request)
}
