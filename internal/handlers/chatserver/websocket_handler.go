package chatserver

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"dm-go/internal/config"
	"dm-go/internal/imtypes"
	"dm-go/internal/logger"
	"dm-go/internal/middleware"
	"dm-go/internal/models"
	"dm-go/internal/services"
	ws "dm-go/internal/websocket"
)

// WebSocketHandler 负责处理 WebSocket 连接请求。
type WebSocketHandler struct {
	hub       *ws.Hub
	messaging services.MessagingService
	cfg       config.WebSocketConfig
}

// NewWebSocketHandler 创建一个新的 WebSocketHandler 实例。
func NewWebSocketHandler(hub *ws.Hub, messaging services.MessagingService, cfg config.WebSocketConfig) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		messaging: messaging,
		cfg:       cfg,
	}
}

// ServeWS upgrades an authenticated request and registers the caller as online.
// Must be mounted behind middleware.AuthMiddleware.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	ws.ServeWsPerConnection(h.hub, h.frameHandler(caller.Role), caller.UserID, w, r, h.cfg)
}

// ErrSendFailed is what the client sees when a send fails for a reason it cannot act on.
var ErrSendFailed = errors.New("Failed to send message")

// frameHandler sends inbound "message" frames as the connection's user. Images need
// an upload and are only accepted over HTTP.
func (h *WebSocketHandler) frameHandler(role models.Role) ws.FrameHandler {
	return func(ctx context.Context, userID string, frame imtypes.InboundFrame) error {
		payload, err := services.ParsePayload(frame.MessageType, frame.Content, nil, frame.PostID)
		if err != nil {
			return err
		}
		caller := services.CallerContext{UserID: userID, Role: role}
		_, err = h.messaging.Send(ctx, caller, services.SendRequest{ReceiverID: frame.ReceiverID, Payload: payload})
		return clientError(userID, err)
	}
}

// clientError keeps validation and permission errors, which the sender can fix, and
// replaces everything else with ErrSendFailed after logging it.
func clientError(userID string, err error) error {
	if err == nil {
		return nil
	}
	var vErr *services.ValidationError
	var sErr *services.StorageError
	switch {
	case errors.As(err, &vErr), errors.Is(err, services.ErrPermissionDenied):
		return err
	case errors.As(err, &sErr):
		logger.Error("websocket send: storage failure", zap.String("userId", userID), zap.String("op", sErr.Op), zap.Error(sErr.Err))
	default:
		logger.Error("websocket send failed", zap.String("userId", userID), zap.Error(err))
	}
	return ErrSendFailed
}
