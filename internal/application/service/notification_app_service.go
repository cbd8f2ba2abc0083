package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/edugate/internal/domain/models"
	domainService "github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/constants"
	"github.com/turtacn/edugate/pkg/errors"
	"github.com/turtacn/edugate/pkg/logger"
)

// NotificationAppService dispatches outbound notifications under the
// notification budget of each recipient.
type NotificationAppService struct {
	rateLimit domainService.RateLimitService
	sender    domainService.NotificationSender
	logger    logger.Logger
	now       func() time.Time
}

// NewNotificationAppService creates the dispatcher.
func NewNotificationAppService(
	rateLimit domainService.RateLimitService,
	sender domainService.NotificationSender,
	log logger.Logger,
) *NotificationAppService {
	return &NotificationAppService{
		rateLimit: rateLimit,
		sender:    sender,
		logger:    log.WithComponent("notification"),
		now:       time.Now,
	}
}

// Dispatch admits n against the recipient's budget and hands it to the sender.
// A rejected notification yields a rate_limit_exceeded error with a retry hint.
func (s *NotificationAppService) Dispatch(ctx context.Context, n *models.Notification) error {
	if n == nil || n.RecipientID == "" {
		return errors.ErrInvalidRequest("notification recipient is required")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	rlContext := string(constants.RateLimitContextNotification)
	identifier := n.RecipientID
	if n.TenantID != "" {
		identifier = n.TenantID + constants.RateLimitKeySeparator + n.RecipientID
	}
	key := s.rateLimit.BuildKey(rlContext, identifier)

	result, err := s.rateLimit.CheckLimit(ctx, key, 0, 0, models.CheckOptions{
		Context:       rlContext,
		Identifier:    identifier,
		ConsumePoints: n.Weight,
	})
	if err != nil {
		return err
	}
	if !result.Allowed {
		retryAfter := result.RetryAfterSeconds(s.now())
		s.logger.Warn(ctx, "notification rate limited",
			logger.String("notification_id", n.ID),
			logger.String("recipient_id", n.RecipientID),
			logger.Int64("retry_after", retryAfter),
		)
		return errors.ErrRateLimitExceeded(rlContext, result.Limit, retryAfter)
	}

	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Error(ctx, "notification send failed", err, logger.String("notification_id", n.ID))
		return errors.ErrNotificationRejected(err)
	}

	s.logger.Debug(ctx, "notification dispatched",
		logger.String("notification_id", n.ID),
		logger.String("channel", n.Channel),
		logger.Int("remaining", result.Remaining),
	)
	return nil
}
