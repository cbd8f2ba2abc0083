package messaging

import (
	"context"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/logger"
)

// LogSender records admitted notifications in the log instead of publishing
// them. It is used when Kafka is disabled.
type LogSender struct {
	logger logger.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{logger: log.WithComponent("notification-sink")}
}

// Send implements service.NotificationSender.
func (s *LogSender) Send(ctx context.Context, n *models.Notification) error {
	s.logger.Info(ctx, "notification accepted",
		logger.String("notification_id", n.ID),
		logger.String("tenant_id", n.TenantID),
		logger.String("recipient_id", n.RecipientID),
		logger.String("channel", n.Channel),
	)
	return nil
}
