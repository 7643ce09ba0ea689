package models

import "time"

// MessageType 定义了存储在数据库中的消息类型。
type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
	PostMessage  MessageType = "post"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TextMessage, ImageMessage, PostMessage:
		return true
	}
	return false
}

// MediaFile describes one uploaded attachment of an image message.
type MediaFile struct {
	Path     string `json:"path" bson:"path"`
	MimeType string `json:"mimeType" bson:"mimeType"`
}

// Message 代表存储在数据库中的私信。
// Only the payload field selected by MessageType is populated: Content for text
// (stored encrypted), Media for image, PostID for post.
type Message struct {
	BaseModel      `bson:",inline"`
	SenderID       string      `gorm:"type:varchar(36);index;not null" json:"senderId" bson:"senderId"`
	ReceiverID     string      `gorm:"type:varchar(36);index;not null" json:"receiverId" bson:"receiverId"`
	MessageType    MessageType `gorm:"type:varchar(20);not null" json:"messageType" bson:"messageType"`
	Content        *string     `gorm:"type:text" json:"content" bson:"content"`
	Media          []MediaFile `gorm:"serializer:json;type:text" json:"media" bson:"media"`
	Image          string      `gorm:"type:varchar(512)" json:"image,omitempty" bson:"image,omitempty"` // legacy: mirrors Media[0].Path
	PostID         *string     `gorm:"type:varchar(36);index" json:"postId,omitempty" bson:"postId,omitempty"`
	Timestamp      time.Time   `gorm:"column:sent_at;index;not null" json:"timestamp" bson:"timestamp"`
	ReadByReceiver bool        `gorm:"not null;default:false" json:"readByReceiver" bson:"readByReceiver"`
	IsAdmin        bool        `gorm:"not null;default:false" json:"isAdmin" bson:"isAdmin"`

	// 关联关系, expanded by the store on reads
	Sender   *User `gorm:"foreignKey:SenderID" json:"sender,omitempty" bson:"sender,omitempty"`
	Receiver *User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty" bson:"receiver,omitempty"`
	Post     *Post `gorm:"foreignKey:PostID" json:"post,omitempty" bson:"post,omitempty"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// CounterpartyID returns the participant that is not userID.
// For a self-message both participants are userID.
func (m *Message) CounterpartyID(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Counterparty returns the expanded user record of the participant that is not userID.
func (m *Message) Counterparty(userID string) *User {
	if m.SenderID == userID {
		return m.Receiver
	}
	return m.Sender
}
