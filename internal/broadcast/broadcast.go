// Package broadcast implements the per-connection fan-out: targeted
// send, broadcast, and broadcast-except, each backed by the connection's
// own bounded outbound queue so a slow consumer never blocks the others.
package broadcast

import "mazeserver/internal/transport"

// Table is the minimal view broadcast needs of the connection set: a
// snapshot of currently tracked connections. transport.Listener satisfies
// this via its own table; broadcast never mutates it.
type Table interface {
	Snapshot() []*transport.Connection
}

// Broadcaster fans messages out to connections. It holds no state of its
// own beyond a reference to the connection table.
type Broadcaster struct {
	table Table
}

// New builds a Broadcaster over table.
func New(table Table) *Broadcaster {
	return &Broadcaster{table: table}
}

// Send enqueues msg for a single connection, identified by connId. A
// missing connId is silently ignored: the connection has already gone.
func (b *Broadcaster) Send(connID uint64, msg []byte) {
	for _, c := range b.table.Snapshot() {
		if c.ID == connID {
			c.Enqueue(msg)
			return
		}
	}
}

// Broadcast enqueues msg for every tracked connection.
func (b *Broadcaster) Broadcast(msg []byte) {
	for _, c := range b.table.Snapshot() {
		c.Enqueue(msg)
	}
}

// BroadcastExcept enqueues msg for every tracked connection other than
// exceptConnID.
func (b *Broadcaster) BroadcastExcept(exceptConnID uint64, msg []byte) {
	for _, c := range b.table.Snapshot() {
		if c.ID == exceptConnID {
			continue
		}
		c.Enqueue(msg)
	}
}
