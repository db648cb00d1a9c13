// Package timebase provides the millisecond counters the controller times
// itself with, and the tick sources that advance them.
package timebase

import (
	"go.uber.org/atomic"
)

// TimeBase holds two millisecond counters. The tick source is the only
// writer of increments; the controller is the only one that resets them.
type TimeBase struct {
	elapsed atomic.Uint32
	dwell   atomic.Uint32
}

func New() *TimeBase {
	return &TimeBase{}
}

// Tick advances both counters by one millisecond.
func (tb *TimeBase) Tick() {
	tb.elapsed.Inc()
	tb.dwell.Inc()
}

// Advance applies n ticks at once, for sources that report missed
// expirations in bulk.
func (tb *TimeBase) Advance(n int) {
	if n <= 0 {
		return
	}
	tb.elapsed.Add(uint32(n))
	tb.dwell.Add(uint32(n))
}

// Elapsed is the free-running measurement counter.
func (tb *TimeBase) Elapsed() uint32 {
	return tb.elapsed.Load()
}

// Dwell is the time spent in the current state.
func (tb *TimeBase) Dwell() uint32 {
	return tb.dwell.Load()
}

func (tb *TimeBase) ResetElapsed() {
	tb.elapsed.Store(0)
}

func (tb *TimeBase) ResetDwell() {
	tb.dwell.Store(0)
}
