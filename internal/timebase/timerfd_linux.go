//go:build linux

package timebase

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// pollTimeout bounds how long Run waits before re-checking ctx.
const pollTimeout = 20 // ms

// TimerfdSource ticks from a CLOCK_MONOTONIC timerfd. The kernel counts
// expirations, so a late read still reports every millisecond that passed.
type TimerfdSource struct {
	period time.Duration
}

func NewTimerfdSource() *TimerfdSource {
	return &TimerfdSource{period: Period}
}

func (s *TimerfdSource) Run(ctx context.Context, tick func(n int)) error {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return fmt.Errorf("failed to create timerfd: %w", err)
	}
	defer unix.Close(fd)

	its := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(s.period.Nanoseconds()),
		Value:    unix.NsecToTimespec(s.period.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &its, nil); err != nil {
		return fmt.Errorf("failed to arm timerfd: %w", err)
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 8)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.Poll(fds, pollTimeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("timerfd poll failed: %w", err)
		}
		if n == 0 {
			continue
		}

		if _, err := unix.Read(fd, buf); err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return fmt.Errorf("timerfd read failed: %w", err)
		}

		expirations := binary.NativeEndian.Uint64(buf)
		if expirations > 0 {
			tick(int(expirations))
		}
	}
}
