package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-tracer/internal/types"
)

func TestCrossLine(t *testing.T) {
	d := New(DefaultSignatures())

	for _, f := range []types.Frame{0xff, 0x7e, 0x3c} {
		assert.True(t, d.CrossLine(f), "frame %s", f)
	}

	for bit := 0; bit < 8; bit++ {
		f := types.Frame(1 << bit)
		assert.False(t, d.CrossLine(f), "single sensor %s", f)
	}

	for _, f := range []types.Frame{0xf0, 0x0f, 0x1f, 0xf8, 0x18, 0x00} {
		assert.False(t, d.CrossLine(f), "frame %s", f)
	}
}

func TestCrossLineGapAllFrames(t *testing.T) {
	d := New(DefaultSignatures())

	for i := 0; i < 256; i++ {
		f := types.Frame(i)
		want := f&0x60 == 0 || f&0x06 == 0
		require.Equal(t, want, d.CrossLineGap(f), "frame %s", f)
	}

	// Any bit set in both quadrants means still on a bar.
	assert.False(t, d.CrossLineGap(0x24))
	assert.False(t, d.CrossLineGap(0x42))
	assert.True(t, d.CrossLineGap(0x81))
	assert.True(t, d.CrossLineGap(0x00))
}

func TestHalfLine(t *testing.T) {
	d := New(DefaultSignatures())

	assert.True(t, d.HalfLineRight(0x1f))
	assert.False(t, d.HalfLineRight(0x0f))
	assert.False(t, d.HalfLineRight(0xf8))

	assert.True(t, d.HalfLineLeft(0xf8))
	assert.False(t, d.HalfLineLeft(0xf0))
	assert.False(t, d.HalfLineLeft(0x1f))
}

func TestCrank(t *testing.T) {
	d := New(DefaultSignatures())

	assert.True(t, d.CrankLeft(0xe0))
	assert.True(t, d.CrankLeft(0xf8))
	assert.False(t, d.CrankLeft(0xc0))

	assert.True(t, d.CrankRight(0x07))
	assert.True(t, d.CrankRight(0x1f))
	assert.False(t, d.CrankRight(0x03))
}

func TestOnLineVariants(t *testing.T) {
	d := New(DefaultSignatures())

	assert.True(t, d.OnLine(0xe7))
	assert.True(t, d.OnLine(0xff))
	assert.False(t, d.OnLine(0x67))

	for _, f := range []types.Frame{0xe7, 0x67, 0xe6, 0xc7, 0xe3} {
		assert.True(t, d.OnLineSecondTime(f), "frame %s", f)
	}
	assert.False(t, d.OnLineSecondTime(0x66))
	assert.False(t, d.OnLineSecondTime(0x18))

	assert.True(t, d.SecondLine(0x3c))
	assert.True(t, d.SecondLine(0x67))
	assert.False(t, d.SecondLine(0x18))
}

func TestDetectorsAreIdempotent(t *testing.T) {
	d := New(DefaultSignatures())

	for i := 0; i < 256; i++ {
		f := types.Frame(i)
		first := []bool{
			d.CrossLine(f), d.CrossLineGap(f), d.HalfLineRight(f), d.HalfLineLeft(f),
			d.CrankLeft(f), d.CrankRight(f), d.OnLine(f), d.OnLineSecondTime(f),
		}
		second := []bool{
			d.CrossLine(f), d.CrossLineGap(f), d.HalfLineRight(f), d.HalfLineLeft(f),
			d.CrankLeft(f), d.CrankRight(f), d.OnLine(f), d.OnLineSecondTime(f),
		}
		require.Equal(t, first, second, "frame %s", f)
	}
	assert.Equal(t, DefaultSignatures(), d.Signatures())
}

func TestLookupUsesCenterMask(t *testing.T) {
	d := New(DefaultSignatures())
	table := types.LookupTable{
		{Key: 0x00, Command: types.Command{Angle: 0, Left: 100, Right: 100}},
		{Key: 0x04, Command: types.Command{Angle: 15, Left: 80, Right: 80}},
	}

	e, ok := d.Lookup(table, 0x18)
	require.True(t, ok)
	assert.Equal(t, 100, e.Command.Left)

	e, ok = d.Lookup(table, 0x1c)
	require.True(t, ok)
	assert.Equal(t, 15, e.Command.Angle)

	_, ok = d.Lookup(table, 0x81)
	assert.False(t, ok)
}
