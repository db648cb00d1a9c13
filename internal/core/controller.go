// File: internal/core/controller.go
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"line-tracer/internal/actuator"
	"line-tracer/internal/detect"
	"line-tracer/internal/fsm"
	"line-tracer/internal/logger"
	"line-tracer/internal/sensor"
	"line-tracer/internal/timebase"
	"line-tracer/internal/types"
)

// faultLogEvery limits repeated hardware fault logging to one line per
// second of control cycles.
const faultLogEvery = 1000

type TraceController struct {
	io      HardwareIO
	profile fsm.Profile
	def     *fsm.Definition
	logger  *logger.Logger

	clock     *timebase.TimeBase
	sensors   *sensor.Classifier
	detectors detect.Detectors
	actuator  *actuator.Actuator
	hooks     []TickHook
	stats     *loopStats

	mu        sync.RWMutex
	state     types.ControlState
	speed     float64 // m/s, last cross-line measurement
	windowMs  uint32  // last measured cross-line window
	timeouts  int
	indicator types.Indicator

	entries      uint64 // state entries, bumped by transition
	commanded    bool   // at least one command reached the actuator
	indicated    bool
	resetPressed bool // halted: button went down, waiting for release
	faults       int
}

func NewTraceController(io HardwareIO, profile fsm.Profile, l *logger.Logger) *TraceController {
	if l == nil {
		l = logger.NewLogger(nil, logger.LogLevelNone)
	}
	c := &TraceController{
		io:        io,
		profile:   profile,
		logger:    l,
		clock:     timebase.New(),
		sensors:   sensor.NewClassifier(io),
		detectors: detect.New(profile.Signatures),
		actuator:  actuator.New(io, profile.Actuator),
		stats:     newLoopStats(l.WithTag("loop")),
		speed:     profile.Speed.Initial,
	}
	c.def = fsm.NewDefinition(c)
	c.state = c.def.InitialState()
	return c
}

// AddTickHook registers fn to run on every tick before the control cycle
// is signalled.
func (c *TraceController) AddTickHook(fn TickHook) {
	c.hooks = append(c.hooks, fn)
}

func (c *TraceController) Start() error {
	c.logger.Infof("Starting trace controller (profile %s)", c.profile.Name)

	if err := c.def.Validate(); err != nil {
		return fmt.Errorf("invalid state definition: %w", err)
	}

	if err := c.io.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware: %w", err)
	}

	if err := c.actuator.Stop(); err != nil {
		return fmt.Errorf("failed to neutralize actuators: %w", err)
	}
	c.commanded = true
	if err := c.io.SetIndicator(types.IndicatorOff); err != nil {
		c.logger.Warnf("Failed to clear indicator: %v", err)
	} else {
		c.indicated = true
	}

	c.clock.ResetElapsed()
	c.transition(c.def.InitialState())

	c.logger.Infof("Trace controller started, crank settle %d ms, speed factor %.2f",
		c.profile.Crank.SettleMsFor(c.Speed()), c.profile.Actuator.SpeedFactor)
	return nil
}

// Tick advances the time base by one millisecond.
func (c *TraceController) Tick() {
	c.clock.Tick()
}

// Step runs one control cycle: sample the bar, run the current state's
// handler, then apply the stall bound if the handler stayed put.
func (c *TraceController) Step() {
	f, err := c.sensors.Sample()
	if err != nil {
		c.fault("%v", err)
	}

	h, ok := c.def.Handler(c.state)
	if !ok {
		c.logger.Warnf("Unknown state %q, resetting to %s", c.state, c.def.InitialState())
		c.transition(c.def.InitialState())
		return
	}

	entries := c.entries
	h(f)
	if c.entries == entries {
		c.checkStall()
	}
}

// Run paces Step with ticks from source until ctx is cancelled or the
// source fails. Ticks that arrive while a cycle is still running are
// folded into the next cycle; the counters never lose them.
func (c *TraceController) Run(ctx context.Context, source timebase.Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ready := make(chan struct{}, 1)
	errCh := make(chan error, 1)

	go func() {
		errCh <- source.Run(ctx, func(n int) {
			c.clock.Advance(n)
			for _, hook := range c.hooks {
				hook(n)
			}
			select {
			case ready <- struct{}{}:
			default:
				c.stats.coalesced(n)
			}
		})
	}()

	c.logger.Infof("Control loop running")
	for {
		select {
		case <-ctx.Done():
			c.stats.report()
			return ctx.Err()
		case err := <-errCh:
			c.stats.report()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				return fmt.Errorf("tick source stopped")
			}
			return fmt.Errorf("tick source stopped: %w", err)
		case <-ready:
			start := time.Now()
			c.Step()
			c.stats.observe(time.Since(start))
		}
	}
}

// Reset returns to idle with the actuators neutral.
func (c *TraceController) Reset() {
	c.logger.Infof("Reset requested in state %s", c.State())
	c.neutral()
	c.setIndicator(types.IndicatorOff)
	c.transition(c.def.InitialState())
}

func (c *TraceController) Shutdown() {
	c.logger.Infof("Shutting down trace controller")
	if err := c.actuator.Stop(); err != nil {
		c.logger.Errorf("Failed to stop actuators: %v", err)
	}
	if err := c.io.SetIndicator(types.IndicatorOff); err != nil {
		c.logger.Errorf("Failed to clear indicator: %v", err)
	}
	c.io.Cleanup()
	c.logger.Infof("Trace controller stopped after %d stall timeouts", c.Timeouts())
}

func (c *TraceController) State() types.ControlState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Speed returns the last speed estimate in m/s.
func (c *TraceController) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

// WindowMs returns the last measured cross-line window.
func (c *TraceController) WindowMs() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.windowMs
}

func (c *TraceController) Elapsed() uint32 {
	return c.clock.Elapsed()
}

func (c *TraceController) Dwell() uint32 {
	return c.clock.Dwell()
}

func (c *TraceController) LastCommand() types.Command {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actuator.Last()
}

// Timeouts returns how many stall timeouts have fired.
func (c *TraceController) Timeouts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeouts
}

func (c *TraceController) Profile() fsm.Profile {
	return c.profile
}
