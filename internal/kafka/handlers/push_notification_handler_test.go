package kafkahandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"dm-go/internal/imtypes"
	"dm-go/internal/notify"
)

type fakeSender struct {
	sent []imtypes.PushNotification
	err  error
}

func (f *fakeSender) Send(_ context.Context, n imtypes.PushNotification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func encode(t *testing.T, n imtypes.PushNotification) []byte {
	t.Helper()
	b, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestDeliver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := imtypes.PushNotification{Token: "ExponentPushToken[x]", Body: "hi", QueuedAt: now.Add(-time.Minute)}

	tests := []struct {
		name      string
		value     []byte
		senderErr error
		wantSent  int
		wantErr   bool
	}{
		{name: "delivered", value: encode(t, fresh), wantSent: 1},
		{name: "garbage skipped", value: []byte("{not json"), wantSent: 0},
		{name: "no token skipped", value: encode(t, imtypes.PushNotification{Body: "hi"}), wantSent: 0},
		{name: "stale dropped", value: encode(t, imtypes.PushNotification{Token: "ExponentPushToken[x]", QueuedAt: now.Add(-time.Hour)}), wantSent: 0},
		{name: "invalid token skipped", value: encode(t, fresh), senderErr: fmt.Errorf("wrap: %w", notify.ErrInvalidPushToken), wantSent: 1},
		{name: "send failure surfaces", value: encode(t, fresh), senderErr: errors.New("expo down"), wantSent: 1, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{err: tc.senderErr}
			h := NewPushNotificationConsumerLogic(sender, 10*time.Minute)
			h.now = func() time.Time { return now }

			err := h.Deliver(context.Background(), tc.value)
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if len(sender.sent) != tc.wantSent {
				t.Fatalf("expected %d sends, got %d", tc.wantSent, len(sender.sent))
			}
		})
	}
}
