package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

// ExtractBearer extracts the token from the Authorization header.
func ExtractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// OptionalJWT attaches the caller's identity when a valid bearer token is present
// and lets anonymous requests through, so the rate limit guard can key by user.
func OptionalJWT(verifier service.TokenVerifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ExtractBearer(c.Request.Header.Get(constants.HeaderAuthorization))
		if tokenStr == "" {
			c.Next()
			return
		}
		claims, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			log.Debug(c.Request.Context(), "ignoring invalid bearer token", logger.Error(err))
			c.Next()
			return
		}
		c.Set(string(constants.ContextKeyUserID), claims.UserID())
		c.Set(string(constants.ContextKeyTenantID), claims.TenantID)
		c.Next()
	}
}

// RequireJWT rejects requests without a valid bearer token.
func RequireJWT(verifier service.TokenVerifier, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ExtractBearer(c.Request.Header.Get(constants.HeaderAuthorization))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errors.ToErrorResponse(errors.ErrUnauthorized("missing bearer token")))
			return
		}

		claims, err := verifier.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			log.Warn(c.Request.Context(), "JWT verification failed", logger.Error(err))
			status, body := errors.ToGenericErrorResponse(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(string(constants.ContextKeyUserID), claims.UserID())
		c.Set(string(constants.ContextKeyTenantID), claims.TenantID)
		c.Next()
	}
}
