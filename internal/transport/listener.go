package transport

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Listener accepts game-socket connections on a dedicated HTTP server,
// performs the WebSocket upgrade, and hands each accepted connection to
// the supplied callbacks. Non-goal: strong authentication on the game
// socket, so CheckOrigin accepts any origin.
type Listener struct {
	addr   string
	log    *log.Logger
	server *http.Server

	onMessage func(*Connection, []byte)
	onClose   func(*Connection)

	mu    sync.Mutex
	conns map[uint64]*Connection
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New builds a Listener. onMessage is invoked for every decoded text
// frame; onClose is invoked exactly once per connection when it tears
// down, after the connection has been removed from the table.
func New(addr string, logger *log.Logger, onMessage func(*Connection, []byte), onClose func(*Connection)) *Listener {
	l := &Listener{
		addr:      addr,
		log:       logger,
		onMessage: onMessage,
		onClose:   onClose,
		conns:     make(map[uint64]*Connection),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handleUpgrade)
	l.server = &http.Server{Addr: addr, Handler: mux}
	return l
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := newConnection(nextConnID(), ws)

	l.mu.Lock()
	l.conns[conn.ID] = conn
	l.mu.Unlock()

	if l.log != nil {
		l.log.Printf("connection %d accepted from %s", conn.ID, conn.RemoteAddr)
	}

	go conn.writePump()
	go conn.readPump(l.onMessage, l.wrapClose)
}

// wrapClose removes conn from the table before invoking the caller's
// onClose, so a connection never appears twice in Close-all sweeps.
func (l *Listener) wrapClose(conn *Connection) {
	l.mu.Lock()
	delete(l.conns, conn.ID)
	l.mu.Unlock()
	l.onClose(conn)
}

// ListenAndServe starts accepting connections; blocks until Shutdown or a
// fatal accept error.
func (l *Listener) ListenAndServe() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	err = l.server.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// CloseAll closes every currently tracked connection with the given close
// code/reason. The connection list is collected under a briefly-held lock;
// the closes themselves run outside it.
func (l *Listener) CloseAll(code int, reason string) {
	l.mu.Lock()
	snapshot := make([]*Connection, 0, len(l.conns))
	for _, c := range l.conns {
		snapshot = append(snapshot, c)
	}
	l.mu.Unlock()

	for _, c := range snapshot {
		c.CloseWithCode(code, reason)
	}
}

// Shutdown stops accepting new connections. It does not close existing
// ones; call CloseAll separately as the next shutdown step.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}

// Snapshot returns the currently tracked connections. Callers must not
// mutate the returned slice's backing connections' identity (ID, ws); it
// is safe to read and to call Enqueue/CloseWithCode on each.
func (l *Listener) Snapshot() []*Connection {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Connection, 0, len(l.conns))
	for _, c := range l.conns {
		out = append(out, c)
	}
	return out
}

// Handler returns the Listener's http.Handler, for tests that want to drive
// the upgrade over an httptest.Server instead of a real listening socket.
func (l *Listener) Handler() http.Handler {
	return l.server.Handler
}

// Count returns the number of currently tracked connections.
func (l *Listener) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// WaitClosed blocks until every currently tracked connection has torn
// down or the deadline elapses, returning false on timeout.
func (l *Listener) WaitClosed(deadline time.Duration) bool {
	l.mu.Lock()
	snapshot := make([]*Connection, 0, len(l.conns))
	for _, c := range l.conns {
		snapshot = append(snapshot, c)
	}
	l.mu.Unlock()

	timer := time.NewTimer(deadline)
	defer timer.Stop()
	for _, c := range snapshot {
		select {
		case <-c.Done():
		case <-timer.C:
			return false
		}
	}
	return true
}
