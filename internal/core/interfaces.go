package core

import (
	"line-tracer/internal/actuator"
	"line-tracer/internal/types"
)

// HardwareIO defines the interface for hardware I/O operations needed by TraceController
type HardwareIO interface {
	Initialize() error
	Cleanup()

	// Inputs
	ReadSensors() (uint8, error) // raw sensor bar, active-low
	ReadStartBar() (bool, error) // true while the start gate blocks the vehicle
	ReadPushButton() (bool, error)

	// Outputs
	SetIndicator(pattern types.Indicator) error
	actuator.Driver
}

// TickHook is called from the tick goroutine after the counters advance.
// Simulated hardware uses it to move along its script in lockstep.
type TickHook func(n int)
