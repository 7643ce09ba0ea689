package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dm-go/internal/imtypes"
	"dm-go/internal/kafka"
	"dm-go/internal/services"
)

// KafkaSender queues notifications on a topic for the notifier worker.
type KafkaSender struct {
	producer kafka.MessageProducer
	topic    string
}

var _ services.PushSender = (*KafkaSender)(nil)

// NewKafkaSender creates a sender that produces to topic.
func NewKafkaSender(producer kafka.MessageProducer, topic string) *KafkaSender {
	return &KafkaSender{producer: producer, topic: topic}
}

// Send produces the notification keyed by its device token, so notifications for
// one device stay ordered.
func (s *KafkaSender) Send(ctx context.Context, n imtypes.PushNotification) error {
	if n.QueuedAt.IsZero() {
		n.QueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal push notification: %w", err)
	}
	if err := s.producer.SendMessage(ctx, s.topic, []byte(n.Token), payload); err != nil {
		return fmt.Errorf("queue push notification: %w", err)
	}
	return nil
}
