package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"dm-go/internal/crypto"
	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
	"dm-go/internal/models"
	"dm-go/internal/storage"
)

// Connection is a live realtime connection held by the presence registry.
type Connection interface {
	UserID() string
	Emit(event string, payload interface{}) error
}

// PresenceRegistry answers whether a user currently holds a realtime connection.
type PresenceRegistry interface {
	Lookup(userID string) (Connection, bool)
}

// PushSender dispatches one device push notification.
type PushSender interface {
	Send(ctx context.Context, notification imtypes.PushNotification) error
}

// SendRequest is a message to be sent by the caller.
type SendRequest struct {
	ReceiverID string
	Payload    Payload
	// AsAdmin marks the admin-only path; the caller must hold the admin role.
	AsAdmin bool
}

// MessagingService 定义了私信相关服务的接口。
type MessagingService interface {
	// Send validates, encrypts and persists a message, then notifies the receiver.
	// Notification failures never fail the send.
	Send(ctx context.Context, caller CallerContext, req SendRequest) (*MessageView, error)
	// GetThread returns every message between the caller and counterpartyID, oldest first.
	GetThread(ctx context.Context, caller CallerContext, counterpartyID string, asAdmin bool) ([]*MessageView, error)
	// GetAllThreads returns one summary per conversation partner of the caller.
	GetAllThreads(ctx context.Context, caller CallerContext, search string, asAdmin bool) ([]*Conversation, error)
}

// messagingService 是 MessagingService 的实现。
type messagingService struct {
	msgRepo  storage.MessageRepository
	userRepo storage.UserRepository
	cipher   crypto.Cipher
	presence PresenceRegistry
	hooks    []PostCommitHook
}

// NewMessagingService 创建一个新的 MessagingService 实例。
// The realtime and push hooks always run first; extra hooks run after them.
func NewMessagingService(msgRepo storage.MessageRepository, userRepo storage.UserRepository, cipher crypto.Cipher, presence PresenceRegistry, push PushSender, extra ...PostCommitHook) MessagingService {
	hooks := []PostCommitHook{
		{Name: "realtime", Run: realtimeHook},
	}
	if push != nil {
		hooks = append(hooks, PostCommitHook{Name: "push", Run: pushHook(push)})
	}
	hooks = append(hooks, extra...)

	return &messagingService{
		msgRepo:  msgRepo,
		userRepo: userRepo,
		cipher:   cipher,
		presence: presence,
		hooks:    hooks,
	}
}

func (s *messagingService) Send(ctx context.Context, caller CallerContext, req SendRequest) (*MessageView, error) {
	if err := caller.authorize(req.AsAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ReceiverID) == "" {
		return nil, newValidationError("receiverId", "receiverId is required")
	}
	if req.Payload == nil {
		return nil, newValidationError("messageType", "messageType is required")
	}
	if err := req.Payload.validate(); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:    caller.UserID,
		ReceiverID:  req.ReceiverID,
		MessageType: req.Payload.Kind(),
		IsAdmin:     req.AsAdmin,
	}
	if err := req.Payload.apply(msg, s.cipher); err != nil {
		return nil, err
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, storageError("create message", err)
	}

	var plaintext string
	if text, ok := req.Payload.(TextPayload); ok {
		plaintext = text.Body
	}

	d := s.newDelivery(ctx, msg, plaintext)
	s.runHooks(context.WithoutCancel(ctx), d)

	return newMessageView(s.cipher, caller, msg, plaintext), nil
}

// newDelivery loads both participants and looks the receiver up in the presence
// registry exactly once. Lookup failures leave the corresponding fields nil.
func (s *messagingService) newDelivery(ctx context.Context, msg *models.Message, plaintext string) *Delivery {
	d := &Delivery{Message: msg, Plaintext: plaintext}

	users, err := s.userRepo.GetByIDs(ctx, []string{msg.SenderID, msg.ReceiverID})
	if err != nil {
		logger.Warn("could not load message participants", zap.String("messageId", msg.ID), zap.Error(err))
	}
	for _, u := range users {
		if u.ID == msg.SenderID {
			d.Sender = u
		}
		if u.ID == msg.ReceiverID {
			d.Receiver = u
		}
	}
	msg.Sender, msg.Receiver = d.Sender, d.Receiver

	if s.presence != nil {
		if conn, ok := s.presence.Lookup(msg.ReceiverID); ok {
			d.Online = conn
		}
	}
	return d
}

func (s *messagingService) GetThread(ctx context.Context, caller CallerContext, counterpartyID string, asAdmin bool) ([]*MessageView, error) {
	if err := caller.authorize(asAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(counterpartyID) == "" {
		return nil, newValidationError("userId", "userId is required")
	}

	messages, err := s.msgRepo.FindPair(ctx, caller.UserID, counterpartyID)
	if err != nil {
		return nil, storageError("find thread", err)
	}

	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, newMessageView(s.cipher, caller, m, ""))
	}
	return views, nil
}
