package timebase

import (
	"context"
	"time"
)

// Period is the tick contract: one unit per physical millisecond.
const Period = time.Millisecond

// Source delivers ticks until ctx is cancelled. tick is called with the
// number of milliseconds that passed since the previous call (normally 1).
type Source interface {
	Run(ctx context.Context, tick func(n int)) error
}

// TickerSource paces ticks with a time.Ticker. Ticks the runtime drops
// under load are lost, so TimerfdSource is preferred where available.
type TickerSource struct {
	period time.Duration
}

func NewTickerSource() *TickerSource {
	return &TickerSource{period: Period}
}

func (s *TickerSource) Run(ctx context.Context, tick func(n int)) error {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick(1)
		}
	}
}

// ManualSource is driven by the caller through Fire. It is used by the
// simulator and tests.
type ManualSource struct {
	fire chan int
}

func NewManualSource() *ManualSource {
	return &ManualSource{fire: make(chan int)}
}

// Fire delivers n ticks and blocks until the running source has taken them.
func (s *ManualSource) Fire(ctx context.Context, n int) error {
	select {
	case s.fire <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ManualSource) Run(ctx context.Context, tick func(n int)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-s.fire:
			tick(n)
		}
	}
}
