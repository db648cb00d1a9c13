//go:build !linux

package timebase

import (
	"context"
	"errors"
	"time"
)

type TimerfdSource struct {
	period time.Duration
}

func NewTimerfdSource() *TimerfdSource {
	return &TimerfdSource{period: Period}
}

func (s *TimerfdSource) Run(ctx context.Context, tick func(n int)) error {
	return errors.New("timerfd tick source requires linux")
}
