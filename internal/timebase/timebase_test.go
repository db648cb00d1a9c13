package timebase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickAdvancesBothCounters(t *testing.T) {
	tb := New()
	for i := 0; i < 5; i++ {
		tb.Tick()
	}
	assert.Equal(t, uint32(5), tb.Elapsed())
	assert.Equal(t, uint32(5), tb.Dwell())

	tb.ResetDwell()
	tb.Tick()
	assert.Equal(t, uint32(6), tb.Elapsed())
	assert.Equal(t, uint32(1), tb.Dwell())

	tb.ResetElapsed()
	assert.Equal(t, uint32(0), tb.Elapsed())
	assert.Equal(t, uint32(1), tb.Dwell())
}

func TestAdvance(t *testing.T) {
	tb := New()
	tb.Advance(3)
	tb.Advance(0)
	tb.Advance(-2)
	assert.Equal(t, uint32(3), tb.Elapsed())
	assert.Equal(t, uint32(3), tb.Dwell())
}

func TestConcurrentTicksAreNotLost(t *testing.T) {
	tb := New()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				tb.Tick()
				_ = tb.Dwell()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(4000), tb.Elapsed())
}

func TestManualSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewManualSource()
	tb := New()
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, tb.Advance) }()

	require.NoError(t, src.Fire(ctx, 1))
	require.NoError(t, src.Fire(ctx, 4))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("manual source did not stop")
	}
	assert.Equal(t, uint32(5), tb.Elapsed())
}

func TestTickerSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	tb := New()
	err := NewTickerSource().Run(ctx, tb.Advance)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, tb.Elapsed(), uint32(0))
}
