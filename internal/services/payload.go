package services

import (
	"fmt"
	"strings"

	"dm-go/internal/crypto"
	"dm-go/internal/models"
)

// Payload is the body of a message being sent. Exactly one of TextPayload,
// ImagePayload or PostPayload.
type Payload interface {
	Kind() models.MessageType
	validate() error
	// apply stores the payload on m; text is encrypted with c.
	apply(m *models.Message, c crypto.Cipher) error
}

// TextPayload is a plaintext body, encrypted before it is stored.
type TextPayload struct {
	Body string
}

// ImagePayload references already-uploaded media files.
type ImagePayload struct {
	Media []models.MediaFile
}

// PostPayload shares an existing post.
type PostPayload struct {
	PostID string
}

func (TextPayload) Kind() models.MessageType  { return models.TextMessage }
func (ImagePayload) Kind() models.MessageType { return models.ImageMessage }
func (PostPayload) Kind() models.MessageType  { return models.PostMessage }

func (p TextPayload) validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return newValidationError("content", "text messages require non-empty content")
	}
	return nil
}

func (p ImagePayload) validate() error {
	if len(p.Media) == 0 {
		return newValidationError("media", "image messages require at least one media file")
	}
	for i, f := range p.Media {
		if f.Path == "" {
			return newValidationError("media", fmt.Sprintf("media file %d has no path", i))
		}
	}
	return nil
}

func (p PostPayload) validate() error {
	if strings.TrimSpace(p.PostID) == "" {
		return newValidationError("postId", "post messages require a postId")
	}
	return nil
}

func (p TextPayload) apply(m *models.Message, c crypto.Cipher) error {
	token, err := c.Encrypt(p.Body)
	if err != nil {
		return fmt.Errorf("encrypt message content: %w", err)
	}
	m.Content = &token
	return nil
}

func (p ImagePayload) apply(m *models.Message, _ crypto.Cipher) error {
	m.Media = append([]models.MediaFile(nil), p.Media...)
	m.Image = p.Media[0].Path
	return nil
}

func (p PostPayload) apply(m *models.Message, _ crypto.Cipher) error {
	postID := p.PostID
	m.PostID = &postID
	return nil
}

// ParsePayload maps raw request fields onto a Payload. Fields that do not belong to
// kind are ignored.
func ParsePayload(kind, content string, media []models.MediaFile, postID string) (Payload, error) {
	if kind == "" {
		return nil, newValidationError("messageType", "messageType is required")
	}

	var p Payload
	switch models.MessageType(kind) {
	case models.TextMessage:
		p = TextPayload{Body: content}
	case models.ImageMessage:
		p = ImagePayload{Media: media}
	case models.PostMessage:
		p = PostPayload{PostID: postID}
	default:
		return nil, newValidationError("messageType", fmt.Sprintf("unknown message type %q", kind))
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}
