//go:build linux

package timebase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerfdSourceCountsMilliseconds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tb := New()
	start := time.Now()
	err := NewTimerfdSource().Run(ctx, tb.Advance)
	took := time.Since(start)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, tb.Elapsed(), uint32(10))
	assert.LessOrEqual(t, int64(tb.Elapsed()), took.Milliseconds()+1)
}
