package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/edugate/internal/application/dto"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

// AdminHandler exposes operator endpoints over the rate limit facade.
type AdminHandler struct {
	rateLimit service.RateLimitService
	log       logger.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(rateLimit service.RateLimitService, log logger.Logger) *AdminHandler {
	return &AdminHandler{rateLimit: rateLimit, log: log.WithComponent("admin")}
}

// ResetRateLimit godoc
// @Summary      Reset a rate limit counter
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      dto.RateLimitKeyRequest  true  "Counter to reset"
// @Success      200      {object}  dto.APIResponse
// @Failure      503      {object}  dto.APIResponse
// @Router       /admin/rate-limits/reset [post]
func (h *AdminHandler) ResetRateLimit(c *gin.Context) {
	var req dto.RateLimitKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	rlContext, key := h.resolveKey(req)
	if err := h.rateLimit.Reset(c.Request.Context(), key, rlContext); err != nil {
		h.log.Error(c.Request.Context(), "rate limit reset failed", err, logger.String("key", key))
		h.fail(c, err)
		return
	}

	h.log.Info(c.Request.Context(), "rate limit reset", logger.String("key", key))
	c.JSON(http.StatusOK, dto.SuccessResponse(&dto.RateLimitResetResponse{Key: key, Reset: true},
		monitoring.TraceID(c.Request.Context())))
}

// GetRateLimitCount godoc
// @Summary      Current points counted for a key
// @Tags         admin
// @Produce      json
// @Param        context         query     string  false  "http, websocket or notification"
// @Param        identifier      query     string  false  "Identifier the key is built from"
// @Param        key             query     string  false  "Full store key"
// @Param        window_seconds  query     int     false  "Window override"
// @Success      200  {object}  dto.APIResponse
// @Router       /admin/rate-limits/count [get]
func (h *AdminHandler) GetRateLimitCount(c *gin.Context) {
	var req dto.RateLimitCountRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	rlContext, key := h.resolveKey(req.RateLimitKeyRequest)
	policy := h.rateLimit.ResolvePolicy(rlContext, models.Policy{WindowSeconds: req.WindowSeconds})

	count, err := h.rateLimit.GetCurrentCount(c.Request.Context(), key, policy.WindowSeconds, rlContext)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(&dto.RateLimitCountResponse{
		Key:           key,
		Context:       rlContext,
		Count:         count,
		Limit:         policy.Limit,
		WindowSeconds: policy.WindowSeconds,
	}, monitoring.TraceID(c.Request.Context())))
}

// GetPolicy returns the effective policy of a context.
func (h *AdminHandler) GetPolicy(c *gin.Context) {
	rlContext := c.DefaultQuery("context", string(constants.RateLimitContextHTTP))
	c.JSON(http.StatusOK, dto.SuccessResponse(&dto.RateLimitPolicyResponse{
		Context: rlContext,
		Policy:  h.rateLimit.ResolvePolicy(rlContext, models.Policy{}),
	}, monitoring.TraceID(c.Request.Context())))
}

func (h *AdminHandler) resolveKey(req dto.RateLimitKeyRequest) (string, string) {
	rlContext := req.Context
	if rlContext == "" {
		rlContext = string(constants.RateLimitContextHTTP)
	}
	if req.Key != "" {
		return rlContext, req.Key
	}
	return rlContext, h.rateLimit.BuildKey(rlContext, req.Identifier)
}

func (h *AdminHandler) fail(c *gin.Context, err error) {
	status, _ := errors.ToGenericErrorResponse(err)
	c.JSON(status, dto.ErrorResponse(err, monitoring.TraceID(c.Request.Context())))
}
