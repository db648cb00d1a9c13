// Package sensor turns the raw, active-low sensor bar into frames.
package sensor

import (
	"fmt"

	"line-tracer/internal/types"
)

// Bus reads the raw sensor byte. Sensors are active-low: a 0 bit means the
// sensor sees the line.
type Bus interface {
	ReadSensors() (uint8, error)
}

// Sample inverts a raw bus value into a frame.
func Sample(raw uint8) types.Frame {
	return types.Frame(^raw)
}

// Match returns the frame bits selected by mask.
func Match(f types.Frame, mask types.Mask) types.Frame {
	return f & types.Frame(mask)
}

// Classifier samples a Bus once per control cycle.
type Classifier struct {
	bus  Bus
	last types.Frame
}

func NewClassifier(bus Bus) *Classifier {
	return &Classifier{bus: bus}
}

// Sample reads the bus. On a read error the previous frame is returned
// along with the error so the caller can keep driving on stale data.
func (c *Classifier) Sample() (types.Frame, error) {
	raw, err := c.bus.ReadSensors()
	if err != nil {
		return c.last, fmt.Errorf("failed to read sensor bar: %w", err)
	}
	c.last = Sample(raw)
	return c.last, nil
}

// Last returns the most recent good frame.
func (c *Classifier) Last() types.Frame {
	return c.last
}
