package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dm-go/internal/config"
	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
)

// ErrSendBufferFull is returned by Emit when the client is not draining its queue.
var ErrSendBufferFull = errors.New("websocket send buffer full")

// ErrClientClosed is returned by Emit after the client has been deregistered.
var ErrClientClosed = errors.New("websocket client closed")

// FrameHandler handles an inbound frame from an authenticated client.
type FrameHandler func(ctx context.Context, userID string, frame imtypes.InboundFrame) error

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	mu     sync.Mutex
	closed bool

	// Authenticated user ID for this client.
	userID string

	handleFrame FrameHandler
}

func newClient(hub *Hub, conn *websocket.Conn, userID string, bufferSize int, handler FrameHandler) *Client {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, bufferSize),
		userID:      userID,
		handleFrame: handler,
	}
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() string { return c.userID }

// Emit queues an event for the client without blocking.
func (c *Client) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(imtypes.Envelope{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps frames from the websocket connection to the frame handler.
func (c *Client) readPump(wsCfg config.WebSocketConfig) {
	defer func() {
		c.hub.Deregister(c)
		c.conn.Close()
	}()
	pongWait := time.Duration(wsCfg.PongWaitSeconds) * time.Second
	c.conn.SetReadLimit(int64(wsCfg.MaxMessageSizeBytes))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket closed unexpectedly", zap.String("userId", c.userID), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var frame imtypes.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			logger.Debug("ignoring malformed websocket frame", zap.String("userId", c.userID), zap.Error(err))
			continue
		}
		if frame.Type != "message" || c.handleFrame == nil {
			continue
		}

		if err := c.handleFrame(context.Background(), c.userID, frame); err != nil {
			if emitErr := c.Emit(imtypes.EventError, map[string]string{"message": err.Error()}); emitErr != nil {
				logger.Debug("could not report frame error", zap.String("userId", c.userID), zap.Error(emitErr))
			}
		}
	}
}

// writePump pumps messages from the send queue to the websocket connection.
func (c *Client) writePump(wsCfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(wsCfg.PingPeriodSeconds) * time.Second)
	writeWait := time.Duration(wsCfg.WriteWaitSeconds) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame; clients parse each frame as a single JSON document.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWsPerConnection upgrades the request and registers the connection for userID.
func ServeWsPerConnection(hub *Hub, handler FrameHandler, userID string, w http.ResponseWriter, r *http.Request, wsCfg config.WebSocketConfig) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(hub, conn, userID, wsCfg.SendBufferSize, handler)
	hub.Register(client)

	go client.writePump(wsCfg)
	go client.readPump(wsCfg)

	logger.Info("websocket client connected", zap.String("userId", userID))
}
