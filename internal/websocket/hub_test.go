package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"dm-go/internal/config"
	"dm-go/internal/imtypes"
)

func TestHubRegisterLookupDeregister(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, "u-1", 4, nil)

	if _, ok := hub.Lookup("u-1"); ok {
		t.Fatalf("unexpected connection before register")
	}
	hub.Register(c)
	conn, ok := hub.Lookup("u-1")
	if !ok || conn.UserID() != "u-1" {
		t.Fatalf("expected registered connection, got %v %v", conn, ok)
	}

	hub.Deregister(c)
	if _, ok := hub.Lookup("u-1"); ok {
		t.Fatalf("connection still registered after deregister")
	}
	if err := c.Emit(imtypes.EventNewMessage, "x"); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	// second deregister must not panic on the closed channel
	hub.Deregister(c)
}

func TestHubReplacesExistingConnection(t *testing.T) {
	hub := NewHub()
	old := newClient(hub, nil, "u-1", 4, nil)
	fresh := newClient(hub, nil, "u-1", 4, nil)

	hub.Register(old)
	hub.Register(fresh)

	conn, _ := hub.Lookup("u-1")
	if conn != fresh {
		t.Fatalf("expected the newer connection to win")
	}
	if _, open := <-old.send; open {
		t.Fatalf("replaced connection should have its send channel closed")
	}

	// the stale client's read loop ending must not evict the fresh one
	hub.Deregister(old)
	if conn, ok := hub.Lookup("u-1"); !ok || conn != fresh {
		t.Fatalf("stale deregister removed the current connection")
	}
	if hub.Online() != 1 {
		t.Fatalf("expected one online user, got %d", hub.Online())
	}
}

func TestClientEmitDoesNotBlock(t *testing.T) {
	c := newClient(NewHub(), nil, "u-1", 1, nil)
	if err := c.Emit(imtypes.EventNewMessage, map[string]string{"a": "b"}); err != nil {
		t.Fatalf("first emit: %v", err)
	}
	if err := c.Emit(imtypes.EventNewMessage, map[string]string{"a": "b"}); !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}

	var env imtypes.Envelope
	if err := json.Unmarshal(<-c.send, &env); err != nil || env.Event != imtypes.EventNewMessage {
		t.Fatalf("unexpected queued frame %+v %v", env, err)
	}
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		WriteWaitSeconds:    5,
		PongWaitSeconds:     60,
		PingPeriodSeconds:   54,
		MaxMessageSizeBytes: 4096,
		SendBufferSize:      8,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeWsRoundTrip(t *testing.T) {
	hub := NewHub()
	frames := make(chan imtypes.InboundFrame, 1)
	handler := func(_ context.Context, userID string, frame imtypes.InboundFrame) error {
		if userID != "u-ws" {
			t.Errorf("frame attributed to %q", userID)
		}
		frames <- frame
		return errors.New("rejected")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWsPerConnection(hub, handler, "u-ws", w, r, testWSConfig())
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { _, ok := hub.Lookup("u-ws"); return ok })

	online, _ := hub.Lookup("u-ws")
	if err := online.Emit(imtypes.EventNewMessage, imtypes.NewMessageEvent{ID: "m-1", Content: "hello"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Event string                  `json:"event"`
		Data  imtypes.NewMessageEvent `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if env.Event != imtypes.EventNewMessage || env.Data.Content != "hello" {
		t.Fatalf("unexpected event %+v", env)
	}

	if err := conn.WriteJSON(imtypes.InboundFrame{Type: "message", ReceiverID: "u-2", MessageType: "text", Content: "yo"}); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	select {
	case f := <-frames:
		if f.ReceiverID != "u-2" || f.Content != "yo" {
			t.Fatalf("unexpected frame %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("frame was not handled")
	}
	if err := conn.ReadJSON(&env); err != nil || env.Event != imtypes.EventError {
		t.Fatalf("expected an error event back, got %+v %v", env, err)
	}

	conn.Close()
	waitFor(t, func() bool { _, ok := hub.Lookup("u-ws"); return !ok })
}
