package sensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-tracer/internal/types"
)

type fakeBus struct {
	raw uint8
	err error
}

func (b *fakeBus) ReadSensors() (uint8, error) { return b.raw, b.err }

func TestSampleInvertsActiveLow(t *testing.T) {
	assert.Equal(t, types.Frame(0x00), Sample(0xff))
	assert.Equal(t, types.Frame(0xff), Sample(0x00))
	assert.Equal(t, types.Frame(0x18), Sample(0xe7))
}

func TestMatch(t *testing.T) {
	assert.Equal(t, types.Frame(0x04), Match(0x1c, types.MaskCenter))
	assert.Equal(t, types.Frame(0xe0), Match(0xff, types.MaskLeftArm))
	assert.Equal(t, types.Frame(0x00), Match(0x18, types.MaskCenter))
}

func TestClassifierKeepsLastFrameOnError(t *testing.T) {
	bus := &fakeBus{raw: 0xfb}
	c := NewClassifier(bus)

	f, err := c.Sample()
	require.NoError(t, err)
	assert.Equal(t, types.Frame(0x04), f)

	bus.err = errors.New("line request closed")
	f, err = c.Sample()
	require.Error(t, err)
	assert.Equal(t, types.Frame(0x04), f)
	assert.Equal(t, types.Frame(0x04), c.Last())
}

func TestMatchIsIdempotent(t *testing.T) {
	f := types.Frame(0x7e)
	first := Match(f, types.MaskCenter)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Match(f, types.MaskCenter))
	}
	assert.Equal(t, types.Frame(0x7e), f)
}
