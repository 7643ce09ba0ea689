package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
	"dm-go/internal/models"
)

// Delivery is what post-commit hooks see of a persisted message.
type Delivery struct {
	Message *models.Message
	// Plaintext is the text body before encryption; empty for other types.
	Plaintext string
	Sender    *models.User
	Receiver  *models.User
	// Online is the receiver's connection, nil when the receiver is offline.
	Online Connection
}

// SelfMessage reports whether sender and receiver are the same user.
func (d *Delivery) SelfMessage() bool {
	return d.Message.SenderID == d.Message.ReceiverID
}

// PostCommitHook runs after a message has been persisted. A hook's error or panic
// is logged and does not affect other hooks or the send result.
type PostCommitHook struct {
	Name string
	Run  func(ctx context.Context, d *Delivery) error
}

func (s *messagingService) runHooks(ctx context.Context, d *Delivery) {
	for _, h := range s.hooks {
		runHook(ctx, h, d)
	}
}

func runHook(ctx context.Context, h PostCommitHook, d *Delivery) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("post-commit hook panicked",
				zap.String("hook", h.Name),
				zap.String("messageId", d.Message.ID),
				zap.Any("panic", r))
		}
	}()
	if err := h.Run(ctx, d); err != nil {
		logger.Warn("post-commit hook failed",
			zap.String("hook", h.Name),
			zap.String("messageId", d.Message.ID),
			zap.Error(err))
	}
}

// realtimeHook emits the new message to an online receiver.
func realtimeHook(_ context.Context, d *Delivery) error {
	if d.Online == nil || d.SelfMessage() {
		return nil
	}
	return d.Online.Emit(imtypes.EventNewMessage, newMessageEvent(d))
}

func newMessageEvent(d *Delivery) imtypes.NewMessageEvent {
	m := d.Message
	ev := imtypes.NewMessageEvent{
		ID:          m.ID,
		SenderID:    m.SenderID,
		SenderName:  d.Sender.DisplayName(),
		SenderImage: d.Sender.DisplayImage(),
		ReceiverID:  m.ReceiverID,
		MessageType: string(m.MessageType),
		Content:     d.Plaintext,
		IsAdmin:     m.IsAdmin,
		Timestamp:   m.Timestamp,
	}
	for _, f := range m.Media {
		ev.Media = append(ev.Media, imtypes.MediaRef{Path: f.Path, MimeType: f.MimeType})
	}
	if m.PostID != nil {
		ev.PostID = *m.PostID
	}
	return ev
}

// pushHook notifies an offline receiver that has a registered push token.
func pushHook(push PushSender) func(ctx context.Context, d *Delivery) error {
	return func(ctx context.Context, d *Delivery) error {
		if d.Online != nil || d.SelfMessage() {
			return nil
		}
		if d.Receiver == nil || d.Receiver.PushToken == "" {
			return nil
		}

		senderName := d.Sender.DisplayName()
		if senderName == "" {
			senderName = "Someone"
		}
		notification := imtypes.PushNotification{
			Token: d.Receiver.PushToken,
			Title: senderName,
			Body:  PushPreview(senderName, d.Message.MessageType, d.Plaintext),
			Data: map[string]string{
				"screen":      "Chat",
				"userId":      d.Message.SenderID,
				"messageType": string(d.Message.MessageType),
			},
			QueuedAt: time.Now().UTC(),
		}
		if err := push.Send(ctx, notification); err != nil {
			return fmt.Errorf("dispatch push notification: %w", err)
		}
		return nil
	}
}

// PushPreview renders the notification body for a message.
func PushPreview(senderName string, kind models.MessageType, text string) string {
	switch kind {
	case models.TextMessage:
		return fmt.Sprintf("%s: %s", senderName, text)
	case models.ImageMessage:
		return fmt.Sprintf("%s sent an image.", senderName)
	case models.PostMessage:
		return fmt.Sprintf("%s shared a post with you.", senderName)
	default:
		return fmt.Sprintf("%s sent you a message.", senderName)
	}
}
