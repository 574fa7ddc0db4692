package broadcast

import (
	"testing"

	"mazeserver/internal/transport"
)

// fakeTable lets tests exercise Broadcaster without a real socket.
type fakeTable struct {
	conns []*transport.Connection
}

func (f *fakeTable) Snapshot() []*transport.Connection { return f.conns }

func TestFanOutOnEmptyTableDoesNotPanic(t *testing.T) {
	// transport.Connection has no exported constructor outside the
	// package; this test exercises the selection logic against an empty
	// table, which is the reachable surface from outside transport.
	b := New(&fakeTable{})
	b.Broadcast([]byte("hello"))
	b.BroadcastExcept(1, []byte("hello"))
	b.Send(1, []byte("hello"))
	// No connections tracked: nothing should panic, and there is nothing
	// further to assert without exporting connection internals.
}
