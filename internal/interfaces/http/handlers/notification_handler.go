package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/edugate/internal/application/dto"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/infrastructure/monitoring"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
)

// Dispatcher admits and sends one notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *models.Notification) error
}

// NotificationHandler accepts outbound notifications from authenticated callers.
type NotificationHandler struct {
	dispatcher Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(dispatcher Dispatcher) *NotificationHandler {
	return &NotificationHandler{dispatcher: dispatcher}
}

// Send godoc
// @Summary      Send a notification
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        request  body      dto.NotificationRequest  true  "Notification"
// @Success      202      {object}  dto.APIResponse
// @Failure      429      {object}  dto.APIResponse
// @Router       /api/v1/notifications [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	var req dto.NotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.ErrInvalidRequest(err.Error()))
		return
	}

	n := req.ToModel(c.GetString(string(constants.ContextKeyTenantID)))
	if err := h.dispatcher.Dispatch(c.Request.Context(), n); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.SuccessResponse(&dto.NotificationAccepted{ID: n.ID},
		monitoring.TraceID(c.Request.Context())))
}

func (h *NotificationHandler) fail(c *gin.Context, err error) {
	status, _ := errors.ToGenericErrorResponse(err)
	if appErr, ok := errors.AsAppError(err); ok {
		if retry, ok := appErr.Metadata()["retry_after"].(int64); ok {
			c.Header(constants.HeaderRetryAfter, strconv.FormatInt(retry, 10))
		}
	}
	c.JSON(status, dto.ErrorResponse(err, monitoring.TraceID(c.Request.Context())))
}

