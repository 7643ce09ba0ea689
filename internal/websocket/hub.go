package websocket

import (
	"sync"

	"go.uber.org/zap"

	"dm-go/internal/logger"
	"dm-go/internal/services"
)

// Hub maintains the set of active clients, one connection per user ID.
// It is the process's presence registry: the messaging service asks it whether a
// receiver is online and, if so, emits through the returned connection.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

var _ services.PresenceRegistry = (*Hub)(nil)

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Lookup returns the live connection for userID, if any.
func (h *Hub) Lookup(userID string) (services.Connection, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	if !ok {
		return nil, false
	}
	return client, true
}

// Register stores the client under its user ID. An existing connection for the
// same user is replaced and its send channel closed.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	existing, ok := h.clients[client.userID]
	h.clients[client.userID] = client
	h.mu.Unlock()

	if ok && existing != client {
		logger.Warn("user already connected, replacing old connection", zap.String("userId", client.userID))
		existing.closeSend()
	}
	logger.Debug("client registered", zap.String("userId", client.userID))
}

// Deregister removes the client if it is still the registered connection for its
// user. A stale client that was already replaced only has its send channel closed.
func (h *Hub) Deregister(client *Client) {
	h.mu.Lock()
	stored, ok := h.clients[client.userID]
	if ok && stored == client {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	client.closeSend()
	logger.Debug("client deregistered", zap.String("userId", client.userID), zap.Bool("current", ok && stored == client))
}

// Online returns how many users are currently connected.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
