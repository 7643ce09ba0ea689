package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"dm-go/internal/models"
)

// Previews shown in the conversation list for non-text messages.
const (
	ImagePreview = "Sent an image"
	PostPreview  = "Shared a post"
)

// Conversation 代表与某个用户的会话摘要, derived from messages and never stored.
type Conversation struct {
	UserID          string             `json:"userId"`
	Name            string             `json:"name"`
	Username        string             `json:"username,omitempty"`
	Email           string             `json:"email,omitempty"`
	Avatar          string             `json:"avatar,omitempty"`
	Role            models.Role        `json:"role,omitempty"`
	LastMessageID   string             `json:"lastMessageId,omitempty"`
	LastMessage     string             `json:"lastMessage"`
	LastMessageType models.MessageType `json:"lastMessageType,omitempty"`
	Timestamp       *time.Time         `json:"timestamp"`
	HasMessages     bool               `json:"hasMessages"`
	UnreadCount     int                `json:"unreadCount"`

	// searchable but not rendered for non-admin callers
	email string
}

func (s *messagingService) GetAllThreads(ctx context.Context, caller CallerContext, search string, asAdmin bool) ([]*Conversation, error) {
	if err := caller.authorize(asAdmin); err != nil {
		return nil, err
	}

	var eligible map[string]*models.User
	if !asAdmin {
		var err error
		if eligible, err = s.eligibleParticipants(ctx, caller.UserID); err != nil {
			return nil, err
		}
	}

	messages, err := s.msgRepo.FindAllForParticipant(ctx, caller.UserID)
	if err != nil {
		return nil, storageError("find conversations", err)
	}

	latest := latestPerCounterparty(caller.UserID, messages)

	conversations := make([]*Conversation, 0, len(latest))
	for counterpartyID, m := range latest {
		if !asAdmin {
			if _, ok := eligible[counterpartyID]; !ok {
				continue
			}
		}
		user := m.Counterparty(caller.UserID)
		if user == nil && eligible != nil {
			user = eligible[counterpartyID]
		}
		conv := newConversation(counterpartyID, user, asAdmin)
		conv.LastMessageID = m.ID
		conv.LastMessage = s.preview(m)
		conv.LastMessageType = m.MessageType
		ts := m.Timestamp
		conv.Timestamp = &ts
		conv.HasMessages = true
		conversations = append(conversations, conv)
	}

	if !asAdmin {
		// Mutual followers and admins without any history are listed so they can be found.
		for id, user := range eligible {
			if _, ok := latest[id]; !ok {
				conversations = append(conversations, newConversation(id, user, false))
			}
		}
	}

	conversations = filterConversations(conversations, search)
	sortConversations(conversations)
	return conversations, nil
}

// eligibleParticipants returns (mutual followers ∪ admins) minus the caller, keyed by
// user id.
func (s *messagingService) eligibleParticipants(ctx context.Context, userID string) (map[string]*models.User, error) {
	following, err := s.userRepo.GetFollowingIDs(ctx, userID)
	if err != nil {
		return nil, storageError("load following", err)
	}
	followers, err := s.userRepo.GetFollowerIDs(ctx, userID)
	if err != nil {
		return nil, storageError("load followers", err)
	}
	admins, err := s.userRepo.ListAdmins(ctx)
	if err != nil {
		return nil, storageError("list admins", err)
	}

	followsBack := make(map[string]struct{}, len(followers))
	for _, id := range followers {
		followsBack[id] = struct{}{}
	}
	var mutual []string
	for _, id := range following {
		if _, ok := followsBack[id]; ok && id != userID {
			mutual = append(mutual, id)
		}
	}

	eligible := make(map[string]*models.User, len(mutual)+len(admins))
	for _, admin := range admins {
		if admin.ID != userID {
			eligible[admin.ID] = admin
		}
	}

	var missing []string
	for _, id := range mutual {
		if _, ok := eligible[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		users, err := s.userRepo.GetByIDs(ctx, missing)
		if err != nil {
			return nil, storageError("load mutual followers", err)
		}
		for _, u := range users {
			eligible[u.ID] = u
		}
		// A mutual follower whose record is gone is still eligible by id.
		for _, id := range missing {
			if _, ok := eligible[id]; !ok {
				eligible[id] = nil
			}
		}
	}
	return eligible, nil
}

// latestPerCounterparty keeps the most recent message per counterparty. On equal
// timestamps the message seen last wins.
func latestPerCounterparty(userID string, messages []*models.Message) map[string]*models.Message {
	latest := make(map[string]*models.Message)
	for _, m := range messages {
		id := m.CounterpartyID(userID)
		if cur, ok := latest[id]; !ok || !m.Timestamp.Before(cur.Timestamp) {
			latest[id] = m
		}
	}
	return latest
}

func (s *messagingService) preview(m *models.Message) string {
	switch m.MessageType {
	case models.TextMessage:
		return decryptContent(s.cipher, m)
	case models.ImageMessage:
		return ImagePreview
	case models.PostMessage:
		return PostPreview
	}
	return ""
}

func newConversation(id string, u *models.User, withEmail bool) *Conversation {
	conv := &Conversation{UserID: id}
	if u != nil {
		conv.email = u.Email
	}
	if info := u.BasicInfo(withEmail); info != nil {
		conv.Name = info.Name
		conv.Username = info.Username
		conv.Email = info.Email
		conv.Avatar = info.Avatar
		conv.Role = info.Role
	}
	return conv
}

// filterConversations keeps entries whose name, username or email contains search,
// case-insensitively. Email matches even when it is not shown.
func filterConversations(conversations []*Conversation, search string) []*Conversation {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return conversations
	}
	filtered := conversations[:0]
	for _, c := range conversations {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Username), q) ||
			strings.Contains(strings.ToLower(c.email), q) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

// sortConversations puts messaged conversations first, newest first, then the
// message-less ones by name.
func sortConversations(conversations []*Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		switch {
		case a.HasMessages && b.HasMessages:
			if !a.Timestamp.Equal(*b.Timestamp) {
				return a.Timestamp.After(*b.Timestamp)
			}
			return a.UserID < b.UserID
		case a.HasMessages != b.HasMessages:
			return a.HasMessages
		}
		an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
		if an != bn {
			return an < bn
		}
		return a.UserID < b.UserID
	})
}
