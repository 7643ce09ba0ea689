package kafkahandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
	"dm-go/internal/notify"
	"dm-go/internal/services"
)

// DefaultMaxAge drops notifications that waited on the topic longer than this.
const DefaultMaxAge = 10 * time.Minute

// PushNotificationConsumerLogic delivers notifications queued on the notifications topic.
type PushNotificationConsumerLogic struct {
	sender services.PushSender
	maxAge time.Duration
	now    func() time.Time
}

// NewPushNotificationConsumerLogic creates the consumer logic. maxAge <= 0 uses DefaultMaxAge.
func NewPushNotificationConsumerLogic(sender services.PushSender, maxAge time.Duration) *PushNotificationConsumerLogic {
	if sender == nil {
		panic("push sender cannot be nil")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &PushNotificationConsumerLogic{sender: sender, maxAge: maxAge, now: time.Now}
}

// HandlePushNotification is the kafka.MessageHandler for the notifications topic.
func (h *PushNotificationConsumerLogic) HandlePushNotification(ctx context.Context, msg *kafka.Message) error {
	return h.Deliver(ctx, msg.Value)
}

// Deliver decodes one queued notification and sends it. Undecodable, stale and
// invalid-token notifications are skipped rather than retried.
func (h *PushNotificationConsumerLogic) Deliver(ctx context.Context, value []byte) error {
	var n imtypes.PushNotification
	if err := json.Unmarshal(value, &n); err != nil {
		logger.Warn("skipping undecodable push notification", zap.ByteString("value", value), zap.Error(err))
		return nil
	}
	if n.Token == "" {
		logger.Warn("skipping push notification without token")
		return nil
	}
	if !n.QueuedAt.IsZero() && h.now().Sub(n.QueuedAt) > h.maxAge {
		logger.Info("dropping stale push notification", zap.Time("queuedAt", n.QueuedAt))
		return nil
	}

	err := h.sender.Send(ctx, n)
	if errors.Is(err, notify.ErrInvalidPushToken) {
		logger.Warn("skipping push notification", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("deliver push notification: %w", err)
	}
	logger.Debug("push notification delivered", zap.String("title", n.Title))
	return nil
}
