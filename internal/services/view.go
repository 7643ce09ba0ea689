package services

import (
	"time"

	"go.uber.org/zap"

	"dm-go/internal/crypto"
	"dm-go/internal/logger"
	"dm-go/internal/models"
)

// DecryptFailedPlaceholder replaces text content that could not be decrypted.
const DecryptFailedPlaceholder = "Unable to decrypt message"

// SelfLabel replaces the caller's own name in thread views.
const SelfLabel = "You"

// MessageView is the display-safe form of a message. Content is always plaintext
// or DecryptFailedPlaceholder, never a cipher token.
type MessageView struct {
	ID             string                `json:"id"`
	SenderID       string                `json:"senderId"`
	ReceiverID     string                `json:"receiverId"`
	MessageType    models.MessageType    `json:"messageType"`
	Content        string                `json:"content,omitempty"`
	Media          []models.MediaFile    `json:"media,omitempty"`
	Image          string                `json:"image,omitempty"`
	PostID         string                `json:"postId,omitempty"`
	Post           *models.Post          `json:"post,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
	ReadByReceiver bool                  `json:"readByReceiver"`
	IsAdmin        bool                  `json:"isAdmin"`
	Sender         *models.UserBasicInfo `json:"sender,omitempty"`
	Receiver       *models.UserBasicInfo `json:"receiver,omitempty"`
}

// decryptContent returns the plaintext of a stored text token, or the placeholder.
func decryptContent(c crypto.Cipher, m *models.Message) string {
	if m.Content == nil {
		return ""
	}
	plaintext, err := c.Decrypt(*m.Content)
	if err != nil {
		logger.Debug("message content could not be decrypted", zap.String("messageId", m.ID), zap.Error(err))
		return DecryptFailedPlaceholder
	}
	return plaintext
}

// newMessageView projects m for caller. plaintext is the already-known text content;
// pass "" to decrypt the stored token instead.
func newMessageView(c crypto.Cipher, caller CallerContext, m *models.Message, plaintext string) *MessageView {
	v := &MessageView{
		ID:             m.ID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		MessageType:    m.MessageType,
		Media:          m.Media,
		Image:          m.Image,
		Post:           m.Post,
		Timestamp:      m.Timestamp,
		ReadByReceiver: m.ReadByReceiver,
		IsAdmin:        m.IsAdmin,
		Sender:         participantInfo(caller, m.Sender),
		Receiver:       participantInfo(caller, m.Receiver),
	}
	if m.PostID != nil {
		v.PostID = *m.PostID
	}
	if m.MessageType == models.TextMessage {
		if plaintext == "" {
			plaintext = decryptContent(c, m)
		}
		v.Content = plaintext
	}
	return v
}

// participantInfo relabels the caller as "You". Email is only shown to admins.
func participantInfo(caller CallerContext, u *models.User) *models.UserBasicInfo {
	info := u.BasicInfo(caller.IsAdmin())
	if info != nil && info.ID == caller.UserID {
		info.Name = SelfLabel
	}
	return info
}
