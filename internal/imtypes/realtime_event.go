package imtypes

import "time"

// Event names pushed over the websocket.
const (
	EventNewMessage = "newMessage"
	EventError      = "error"
)

// Envelope is the frame written to a websocket client.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// InboundFrame is what a websocket client may send. Only Type "message" is acted on.
type InboundFrame struct {
	Type        string `json:"type"`
	ReceiverID  string `json:"receiverId"`
	MessageType string `json:"messageType"`
	Content     string `json:"content,omitempty"`
	PostID      string `json:"postId,omitempty"`
}

// MediaRef mirrors models.MediaFile for realtime payloads.
type MediaRef struct {
	Path     string `json:"path"`
	MimeType string `json:"mimeType"`
}

// NewMessageEvent carries a freshly sent message to an online receiver.
// Content is always plaintext.
type NewMessageEvent struct {
	ID          string     `json:"id"`
	SenderID    string     `json:"senderId"`
	SenderName  string     `json:"senderName"`
	SenderImage string     `json:"senderImage,omitempty"`
	ReceiverID  string     `json:"receiverId"`
	MessageType string     `json:"messageType"`
	Content     string     `json:"content,omitempty"`
	Media       []MediaRef `json:"media,omitempty"`
	PostID      string     `json:"postId,omitempty"`
	IsAdmin     bool       `json:"isAdmin"`
	Timestamp   time.Time  `json:"timestamp"`
}
