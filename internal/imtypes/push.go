package imtypes

import "time"

// PushNotification is one device notification, as queued on Kafka and sent to Expo.
type PushNotification struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	QueuedAt time.Time         `json:"queuedAt"`
}
