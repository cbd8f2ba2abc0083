// Package messaging delivers admitted notifications to Kafka.
package messaging

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/turtacn/edugate/internal/config"
	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	"github.com/turtacn/edugate/pkg/logger"
)

var _ service.NotificationSender = (*KafkaSender)(nil)

// MessageWriter is the subset of *kafka.Writer the sender needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes notifications keyed by recipient, so one recipient's
// messages stay ordered on one partition.
type KafkaSender struct {
	writer  MessageWriter
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewKafkaSender creates a sender writing to cfg.NotificationTopic.
func NewKafkaSender(cfg config.KafkaConfig, log logger.Logger) *KafkaSender {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaSenderWithWriter(writer, cfg.MessagesPerSecond, cfg.Burst, log)
}

// NewKafkaSenderWithWriter creates a sender over any writer. messagesPerSecond
// paces this process's writes; 0 disables pacing.
func NewKafkaSenderWithWriter(writer MessageWriter, messagesPerSecond float64, burst int, log logger.Logger) *KafkaSender {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if messagesPerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(messagesPerSecond), burst)
	}
	return &KafkaSender{
		writer:  writer,
		limiter: limiter,
		logger:  log.WithComponent("KafkaSender"),
	}
}

// Send implements service.NotificationSender. It waits for the local pacing
// budget, bounded by ctx.
func (s *KafkaSender) Send(ctx context.Context, n *models.Notification) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Error(ctx, "failed to marshal notification", err)
		return err
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.RecipientID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "notification_id", Value: []byte(n.ID)},
			{Key: "channel", Value: []byte(n.Channel)},
		},
	})
	if err != nil {
		s.logger.Error(ctx, "failed to write notification to Kafka", err, logger.String("notification_id", n.ID))
	}
	return err
}

// Close closes the underlying Kafka writer.
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
