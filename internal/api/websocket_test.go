package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("websocket read failed: %v", err)
	}
	return msg
}

func TestWebSocketMirrorsScanStream(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	// Wait for the socket's subscriber registration.
	deadline := time.Now().Add(2 * time.Second)
	for env.bus.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	env.bus.Publish("40123455")

	msg := readWS(t, conn)
	if msg.Event != EventScan {
		t.Fatalf("event = %q, want scan", msg.Event)
	}
	if msg.Data["code"] != "40123455" {
		t.Errorf("code = %v", msg.Data["code"])
	}
}

func TestWebSocketPrintSubmission(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	err := conn.WriteJSON(WSMessage{
		Event: EventPrint,
		Data:  map[string]any{"text": "Bon"},
	})
	if err != nil {
		t.Fatalf("websocket write failed: %v", err)
	}

	msg := readWS(t, conn)
	if msg.Event != EventResponse {
		t.Fatalf("event = %q: %v", msg.Event, msg.Data)
	}
	if msg.Data["ok"] != true || msg.Data["job_id"] == "" {
		t.Errorf("data = %v", msg.Data)
	}

	if n := env.queue.Pending(); n != 1 {
		t.Errorf("queue has %d pending jobs, want 1", n)
	}
}

func TestWebSocketRejectsEmptyPrint(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()

	err := conn.WriteJSON(WSMessage{
		Event: EventPrint,
		Data:  map[string]any{},
	})
	if err != nil {
		t.Fatalf("websocket write failed: %v", err)
	}

	msg := readWS(t, conn)
	if msg.Event != EventError {
		t.Fatalf("event = %q, want error", msg.Event)
	}

	if n := env.queue.Pending(); n != 0 {
		t.Errorf("queue has %d pending jobs, want 0", n)
	}
}
