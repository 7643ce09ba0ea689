package storage

import (
	"context"
	"time"

	"gorm.io/gorm"

	"dm-go/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
type MessageRepository interface {
	// Create persists a message, assigning its ID and, if unset, its timestamp.
	Create(ctx context.Context, message *models.Message) error
	// FindPair returns every message exchanged between a and b in either direction,
	// oldest first, with sender, receiver and post expanded.
	FindPair(ctx context.Context, a, b string) ([]*models.Message, error)
	// FindAllForParticipant returns every message userID sent or received, newest
	// first, with sender and receiver expanded.
	FindAllForParticipant(ctx context.Context, userID string) ([]*models.Message, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// publicUserColumns keeps credentials out of expanded participants.
func publicUserColumns(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name", "username", "email", "avatar", "profile_image", "role", "push_token")
}

func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Omit("Sender", "Receiver", "Post").Create(message).Error
}

func (r *gormMessageRepository) FindPair(ctx context.Context, a, b string) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("sent_at ASC").
		Preload("Sender", publicUserColumns).
		Preload("Receiver", publicUserColumns).
		Preload("Post").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *gormMessageRepository) FindAllForParticipant(ctx context.Context, userID string) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("sent_at DESC").
		Preload("Sender", publicUserColumns).
		Preload("Receiver", publicUserColumns).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
