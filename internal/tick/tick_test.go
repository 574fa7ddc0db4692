package tick

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingEngine struct {
	calls int64
}

func (e *countingEngine) Tick(now time.Time) {
	atomic.AddInt64(&e.calls, 1)
}

func TestLoopTicksRepeatedly(t *testing.T) {
	eng := &countingEngine{}
	loop := New(eng, 5*time.Millisecond)

	go loop.Run()
	time.Sleep(60 * time.Millisecond)
	loop.Stop()

	calls := atomic.LoadInt64(&eng.calls)
	if calls < 5 {
		t.Fatalf("expected at least 5 ticks in 60ms at a 5ms period, got %d", calls)
	}
}

func TestNoTickAfterStopReturns(t *testing.T) {
	eng := &countingEngine{}
	loop := New(eng, time.Millisecond)

	go loop.Run()
	time.Sleep(5 * time.Millisecond)
	loop.Stop()

	callsAtStop := atomic.LoadInt64(&eng.calls)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt64(&eng.calls) != callsAtStop {
		t.Fatal("Tick was called after Stop returned")
	}
}
