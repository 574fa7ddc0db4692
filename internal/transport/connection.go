// Package transport implements the framed-message connection layer: the
// WebSocket handshake and per-connection read/write pumps, and the
// accept loop that mints connection IDs. gorilla/websocket performs
// the frame codec and handshake; this package adds the bounded outbound
// queue, grace-period close, and the connection table the rest of the
// server needs.
package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// outboundQueueSize bounds the per-connection write queue.
const outboundQueueSize = 64

// writeGrace is how long a full outbound queue is tolerated before the
// connection is closed for policy violation.
const writeGrace = 2 * time.Second

// Connection is one accepted, handshaken socket.
type Connection struct {
	ID         uint64
	RemoteAddr string

	ws *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}

	mu       sync.Mutex
	playerID string
}

func newConnection(id uint64, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:         id,
		RemoteAddr: ws.RemoteAddr().String(),
		ws:         ws,
		send:       make(chan []byte, outboundQueueSize),
		done:       make(chan struct{}),
	}
}

// BindPlayer records the playerId this connection has authenticated as.
func (c *Connection) BindPlayer(playerID string) {
	c.mu.Lock()
	c.playerID = playerID
	c.mu.Unlock()
}

// PlayerID returns the bound playerId, or "" if not yet authenticated.
func (c *Connection) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// Enqueue queues msg for delivery, FIFO within this connection. If the
// queue stays full past the write grace period, the connection is closed
// for policy violation and the message is dropped.
func (c *Connection) Enqueue(msg []byte) {
	select {
	case c.send <- msg:
		return
	case <-c.done:
		return
	default:
	}

	timer := time.NewTimer(writeGrace)
	defer timer.Stop()
	select {
	case c.send <- msg:
	case <-timer.C:
		c.CloseWithCode(websocket.ClosePolicyViolation, "outbound queue full")
	case <-c.done:
	}
}

// CloseWithCode sends a close frame best-effort and hard-closes the
// socket. Safe to call multiple times or concurrently.
func (c *Connection) CloseWithCode(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(1 * time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.ws.Close()
		close(c.done)
	})
}

// Done reports a channel closed once the connection has been torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// readPump reads decoded text messages and hands them to onMessage until
// error or close; it always calls onClose exactly once on return.
func (c *Connection) readPump(onMessage func(*Connection, []byte), onClose func(*Connection)) {
	defer func() {
		c.CloseWithCode(websocket.CloseNormalClosure, "")
		onClose(c)
	}()

	c.ws.SetReadLimit(64 * 1024)

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			c.CloseWithCode(websocket.CloseProtocolError, "only text frames are supported")
			return
		}
		onMessage(c, data)
	}
}

// writePump drains the outbound queue onto the socket until closed.
func (c *Connection) writePump() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.CloseWithCode(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// nextConnID mints monotonically increasing connection IDs.
var connIDCounter uint64

func nextConnID() uint64 {
	return atomic.AddUint64(&connIDCounter, 1)
}
