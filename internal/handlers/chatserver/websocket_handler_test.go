package chatserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dm-go/internal/config"
	"dm-go/internal/imtypes"
	"dm-go/internal/models"
	"dm-go/internal/services"
	ws "dm-go/internal/websocket"
)

type recordingMessaging struct {
	services.MessagingService
	caller services.CallerContext
	req    services.SendRequest
	err    error
}

func (m *recordingMessaging) Send(_ context.Context, caller services.CallerContext, req services.SendRequest) (*services.MessageView, error) {
	m.caller, m.req = caller, req
	if m.err != nil {
		return nil, m.err
	}
	return &services.MessageView{ID: "m-1"}, nil
}

func TestFrameHandlerSendsAsConnectionUser(t *testing.T) {
	messaging := &recordingMessaging{}
	h := NewWebSocketHandler(ws.NewHub(), messaging, config.WebSocketConfig{})
	handle := h.frameHandler(models.RoleAdmin)

	err := handle(context.Background(), "u-alice", imtypes.InboundFrame{Type: "message", ReceiverID: "u-bob", MessageType: "text", Content: "hey"})
	if err != nil {
		t.Fatalf("frame handler: %v", err)
	}
	if messaging.caller.UserID != "u-alice" || messaging.caller.Role != models.RoleAdmin {
		t.Fatalf("unexpected caller %+v", messaging.caller)
	}
	if messaging.req.ReceiverID != "u-bob" || messaging.req.AsAdmin {
		t.Fatalf("unexpected request %+v", messaging.req)
	}
	if body := messaging.req.Payload.(services.TextPayload).Body; body != "hey" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestFrameHandlerRejectsImages(t *testing.T) {
	h := NewWebSocketHandler(ws.NewHub(), &recordingMessaging{}, config.WebSocketConfig{})
	err := h.frameHandler(models.RolePlain)(context.Background(), "u-alice", imtypes.InboundFrame{Type: "message", ReceiverID: "u-bob", MessageType: "image"})

	var vErr *services.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "media" {
		t.Fatalf("expected media validation error, got %v", err)
	}
}

func TestFrameHandlerHidesStorageFailures(t *testing.T) {
	driverErr := errors.New(`ERROR: insert or update on table "messages" violates foreign key constraint (SQLSTATE 23503)`)
	tests := []struct {
		name    string
		sendErr error
		want    error
	}{
		{name: "storage", sendErr: &services.StorageError{Op: "create message", Err: driverErr}, want: ErrSendFailed},
		{name: "unknown", sendErr: errors.New("boom"), want: ErrSendFailed},
		{name: "permission", sendErr: services.ErrPermissionDenied, want: services.ErrPermissionDenied},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewWebSocketHandler(ws.NewHub(), &recordingMessaging{err: tc.sendErr}, config.WebSocketConfig{})
			err := h.frameHandler(models.RolePlain)(context.Background(), "u-alice", imtypes.InboundFrame{Type: "message", ReceiverID: "u-bob", MessageType: "text", Content: "hey"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if strings.Contains(err.Error(), "SQLSTATE") {
				t.Fatalf("driver error leaked: %q", err.Error())
			}
		})
	}

	validation := &services.ValidationError{Field: "receiverId", Message: "required"}
	h := NewWebSocketHandler(ws.NewHub(), &recordingMessaging{err: validation}, config.WebSocketConfig{})
	err := h.frameHandler(models.RolePlain)(context.Background(), "u-alice", imtypes.InboundFrame{Type: "message", MessageType: "text", Content: "hey"})
	if err == nil || err.Error() != validation.Error() {
		t.Fatalf("validation message should reach the client unchanged, got %v", err)
	}
}
