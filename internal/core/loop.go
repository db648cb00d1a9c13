package core

import (
	"time"

	"go.uber.org/atomic"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"line-tracer/internal/logger"
)

// statsWindow is the number of control cycles per loop report.
const statsWindow = 5000

// loopStats records how long each control cycle takes and how many ticks
// were folded into a later cycle because the previous one overran.
type loopStats struct {
	logger  *logger.Logger
	samples []float64 // cycle busy time in microseconds
	folded  atomic.Int64
	cycles  int64
}

func newLoopStats(l *logger.Logger) *loopStats {
	return &loopStats{
		logger:  l,
		samples: make([]float64, 0, statsWindow),
	}
}

// coalesced is called from the tick goroutine when a notification was
// already pending.
func (s *loopStats) coalesced(n int) {
	s.folded.Add(int64(n))
}

func (s *loopStats) observe(d time.Duration) {
	s.cycles++
	s.samples = append(s.samples, float64(d)/float64(time.Microsecond))
	if len(s.samples) >= statsWindow {
		s.report()
	}
}

// summary returns mean, standard deviation and maximum of the current
// window in microseconds.
func (s *loopStats) summary() (mean, std, max float64) {
	if len(s.samples) == 0 {
		return 0, 0, 0
	}
	mean, std = stat.MeanStdDev(s.samples, nil)
	if len(s.samples) < 2 {
		std = 0
	}
	return mean, std, floats.Max(s.samples)
}

func (s *loopStats) report() {
	if len(s.samples) == 0 {
		return
	}
	mean, std, max := s.summary()
	folded := s.folded.Swap(0)

	if folded > 0 {
		s.logger.Warnf("Control loop overran: %d ticks folded into later cycles (max cycle %.0f us)", folded, max)
	}
	s.logger.Debugf("Cycles %d: busy mean %.1f us, stddev %.1f us, max %.0f us",
		s.cycles, mean, std, max)
	s.samples = s.samples[:0]
}
