package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/edugate/internal/application/dto"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/interfaces/gateway"
	"github.com/turtacn/edugate/internal/interfaces/http/middleware"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
	"github.com/turtacn/edugate/pkg/utils"
)

// Admitter admits a persistent connection attempt.
type Admitter interface {
	Admit(ctx context.Context, attempt gateway.Attempt) (*models.Identity, error)
}

// Upgrader takes over an admitted handshake, e.g. a websocket upgrade.
type Upgrader interface {
	Upgrade(c *gin.Context, identity *models.Identity) error
}

// GatewayHandler runs connection admission on the handshake request.
type GatewayHandler struct {
	admission Admitter
	upgrader  Upgrader
	log       logger.Logger
}

// NewGatewayHandler creates a new GatewayHandler. Without an upgrader an
// admitted handshake is answered with the identity as JSON.
func NewGatewayHandler(admission Admitter, upgrader Upgrader, log logger.Logger) *GatewayHandler {
	return &GatewayHandler{admission: admission, upgrader: upgrader, log: log.WithComponent("gateway")}
}

// Handshake godoc
// @Summary      Connection handshake
// @Description  Runs IP and account admission before handing the connection over.
// @Tags         gateway
// @Param        token  query  string  false  "Bearer token when headers cannot be set"
// @Success      200    {object}  dto.HandshakeResponse
// @Failure      401    {object}  errors.ErrorResponse
// @Failure      429    {object}  errors.ErrorResponse
// @Router       /ws [get]
func (h *GatewayHandler) Handshake(c *gin.Context) {
	token := middleware.ExtractBearer(c.GetHeader(constants.HeaderAuthorization))
	if token == "" {
		token = c.Query(constants.QueryParamToken)
	}

	identity, err := h.admission.Admit(c.Request.Context(), gateway.Attempt{
		ClientIP: utils.ClientIP(c.Request),
		Token:    token,
	})
	if err != nil {
		status, body := errors.ToGenericErrorResponse(err)
		if body.RetryAfter > 0 {
			c.Header(constants.HeaderRetryAfter, strconv.FormatInt(body.RetryAfter, 10))
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	c.Set(string(constants.ContextKeyIdentity), identity)
	c.Set(string(constants.ContextKeyUserID), identity.UserID)
	if h.upgrader == nil {
		c.JSON(http.StatusOK, &dto.HandshakeResponse{Identity: identity})
		return
	}
	if err := h.upgrader.Upgrade(c, identity); err != nil {
		h.log.Error(c.Request.Context(), "connection upgrade failed", err, logger.String("user_id", identity.UserID))
	}
}
