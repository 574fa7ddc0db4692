package transport

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// newTestListener wires a Listener onto an httptest server so tests can
// dial it as a real WebSocket client.
func newTestListener(t *testing.T, onMessage func(*Connection, []byte), onClose func(*Connection)) (*Listener, *httptest.Server) {
	t.Helper()
	if onMessage == nil {
		onMessage = func(*Connection, []byte) {}
	}
	if onClose == nil {
		onClose = func(*Connection) {}
	}
	l := New("", nil, onMessage, onClose)
	srv := httptest.NewServer(l.server.Handler)
	t.Cleanup(srv.Close)
	return l, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandshakeAndEcho(t *testing.T) {
	received := make(chan []byte, 1)
	l, srv := newTestListener(t, func(c *Connection, data []byte) {
		received <- data
	}, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Fatalf("got %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.Count() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected 1 tracked connection, got %d", l.Count())
}

func TestCloseAllClosesConnections(t *testing.T) {
	closed := make(chan struct{}, 1)
	l, srv := newTestListener(t, nil, func(*Connection) {
		select {
		case closed <- struct{}{}:
		default:
		}
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && l.Count() != 1 {
		time.Sleep(10 * time.Millisecond)
	}

	l.CloseAll(websocket.CloseGoingAway, "shutting down")

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected onClose to fire after CloseAll")
	}
}

func TestEnqueueAndSnapshot(t *testing.T) {
	l, srv := newTestListener(t, nil, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && l.Count() != 1 {
		time.Sleep(10 * time.Millisecond)
	}
	snap := l.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 connection in snapshot, got %d", len(snap))
	}
	snap[0].Enqueue([]byte("ping"))

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != "ping" {
		t.Fatalf("got %q, want %q", data, "ping")
	}
}
