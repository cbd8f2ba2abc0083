package middleware

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	ratelimitadapter "github.com/turtacn/edugate/internal/adapter/ratelimit"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
	"github.com/turtacn/edugate/pkg/utils"
)

const throttleKeyPrefix = "throttle:admin:"

// Throttle is a coarse per-IP hit counter for operator endpoints. It sits in
// front of the admin token check so that token guessing is bounded too.
// Storage errors let the request through.
func Throttle(storage ratelimitadapter.Storage, limit int, ttl time.Duration, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if storage == nil || limit <= 0 {
			c.Next()
			return
		}

		key := throttleKeyPrefix + utils.ClientIP(c.Request)
		rec, err := storage.Increment(c.Request.Context(), key, ttl)
		if err != nil {
			log.Error(c.Request.Context(), "admin throttle unavailable", err)
			c.Next()
			return
		}

		if rec.TotalHits > limit {
			retry := int64(math.Ceil(rec.TimeToExpire.Seconds()))
			if retry < constants.MinRetryAfterSeconds {
				retry = constants.MinRetryAfterSeconds
			}
			c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retry, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errors.ToErrorResponse(errors.ErrRateLimitExceeded("admin", limit, retry)))
			return
		}
		c.Next()
	}
}

// AdminToken guards operator routes with a static bearer token. An empty
// token disables the routes entirely.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden,
				errors.ToErrorResponse(errors.ErrForbidden("admin endpoints are disabled")))
			return
		}
		given := ExtractBearer(c.Request.Header.Get(constants.HeaderAuthorization))
		if subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errors.ToErrorResponse(errors.ErrUnauthorized("invalid admin token")))
			return
		}
		c.Next()
	}
}
