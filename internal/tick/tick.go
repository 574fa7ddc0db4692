// Package tick implements the fixed-period driver: every ~100ms it calls
// the engine's Tick(now) to advance ephemeral-effect expirations. It is a
// single-threaded cooperative driver with the same ticker-plus-stop-channel
// shape as the server's other background workers.
package tick

import (
	"time"
)

// Engine is the minimal surface the tick loop needs of the game engine.
type Engine interface {
	Tick(now time.Time)
}

// Loop drives Engine.Tick at a fixed cadence. If a tick's own work runs
// long enough to blow through the next deadline, the next tick fires
// immediately once, then the loop resumes its normal cadence; it never
// tries to "catch up" by firing a burst of missed ticks.
type Loop struct {
	eng    Engine
	period time.Duration
	now    func() time.Time
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Loop over eng with the given period (normally 100ms).
func New(eng Engine, period time.Duration) *Loop {
	return &Loop{
		eng:    eng,
		period: period,
		now:    time.Now,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run blocks, ticking eng until Stop is called. Intended to be run on its
// own goroutine.
func (l *Loop) Run() {
	defer close(l.doneCh)

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	next := l.now().Add(l.period)
	for {
		select {
		case <-l.stopCh:
			return
		case fired := <-ticker.C:
			l.eng.Tick(fired)
			if fired.After(next) {
				// We overran the deadline: run the backlog tick immediately
				// once, then let the ticker's own cadence resume from here.
				l.eng.Tick(l.now())
			}
			next = fired.Add(l.period)
		}
	}
}

// Stop signals Run to return and blocks until it has, so the caller knows
// no further Tick call will occur once Stop returns. The loop must stop
// before the engine is torn down.
func (l *Loop) Stop() {
	close(l.stopCh)
	<-l.doneCh
}
