package core

import (
	"line-tracer/internal/actuator"
	"line-tracer/internal/fsm"
	"line-tracer/internal/types"
)

// transition is the only place the state changes and the only place dwell
// is reset. Entering a breakpoint state halts instead.
func (c *TraceController) transition(next types.ControlState) {
	if c.profile.IsBreakpoint(next) {
		c.logger.Infof("Breakpoint at %s, halting", next)
		next = types.StateHalted
	}

	c.mu.Lock()
	old := c.state
	c.state = next
	c.mu.Unlock()

	c.clock.ResetDwell()
	c.entries++

	if next == types.StateHalted {
		c.resetPressed = false
		c.neutral()
	}

	c.logger.Infof("State transition: %s -> %s", old, next)
}

// checkStall moves a detection-wait state to its fallback once its
// timeout expires.
func (c *TraceController) checkStall() {
	timeout := c.profile.StallTimeout(c.state)
	if timeout == 0 || c.clock.Dwell() <= timeout {
		return
	}
	next, ok := fsm.StallFallback(c.state)
	if !ok {
		return
	}

	c.mu.Lock()
	c.timeouts++
	c.mu.Unlock()

	c.logger.Warnf("Stall timeout in %s after %d ms, falling back to %s", c.state, c.clock.Dwell(), next)
	c.setIndicator(types.IndicatorOff)
	c.transition(next)
}

// fault logs a hardware error, throttled so a dead bus cannot flood the log.
func (c *TraceController) fault(format string, v ...interface{}) {
	c.faults++
	if c.faults == 1 || c.faults%faultLogEvery == 0 {
		c.logger.Warnf("Hardware fault (%d so far): "+format, append([]interface{}{c.faults}, v...)...)
	}
}

// command sends cmd to the actuator unless it is already in effect.
func (c *TraceController) command(cmd types.Command) {
	if c.commanded && c.actuator.Last() == cmd {
		return
	}
	c.mu.Lock()
	err := c.actuator.Apply(cmd)
	c.mu.Unlock()
	c.commanded = err == nil
	if err != nil {
		c.fault("%v", err)
		return
	}
	c.logger.Debugf("Command %s in %s", cmd, c.state)
}

func (c *TraceController) neutral() {
	c.command(types.Command{})
}

func (c *TraceController) setIndicator(pattern types.Indicator) {
	if c.indicated && c.indicator == pattern {
		return
	}
	if err := c.io.SetIndicator(pattern); err != nil {
		c.indicated = false
		c.fault("failed to set indicator: %v", err)
		return
	}
	c.indicator = pattern
	c.indicated = true
}

// blink alternates LED0 and LED1, each lit for half ms, keyed on dwell so
// that the pattern never needs its own counter.
func (c *TraceController) blink(half uint32) {
	if half == 0 {
		c.setIndicator(types.IndicatorBoth)
		return
	}
	if c.clock.Dwell()%(2*half) < half {
		c.setIndicator(types.IndicatorLED0)
	} else {
		c.setIndicator(types.IndicatorLED1)
	}
}

// followTable looks up the center band in table and acts on the entry.
// Unmatched patterns keep the previous command. Ramped entries are scaled by
// the crank approach ramp when ramp is set.
func (c *TraceController) followTable(table types.LookupTable, f types.Frame, ramp bool) {
	e, ok := c.detectors.Lookup(table, f)
	if !ok {
		return
	}

	cmd := e.Command
	if ramp && e.Ramped && c.profile.Crank.ApproachRamp.Enabled() {
		power := c.profile.Crank.ApproachRamp.Power(c.clock.Dwell())
		cmd = types.Command{
			Angle: actuator.Scale(cmd.Angle, power),
			Left:  actuator.Scale(cmd.Left, power),
			Right: actuator.Scale(cmd.Right, power),
		}
	}
	c.command(cmd)

	if e.Indicator != nil {
		c.setIndicator(*e.Indicator)
	}
	if e.Next != "" {
		c.transition(e.Next)
	}
}

// trackFeature enters the maneuver for a cross-line or half-line marking.
// It reports whether a transition happened.
func (c *TraceController) trackFeature(f types.Frame) bool {
	switch {
	case c.detectors.CrossLine(f):
		c.logger.Debugf("Cross-line at %s", f)
		c.transition(types.StateCrossLineEntry)
	case c.detectors.HalfLineRight(f):
		c.logger.Debugf("Right half-line at %s", f)
		c.transition(types.StateHalfLineRightEntry)
	case c.detectors.HalfLineLeft(f):
		c.logger.Debugf("Left half-line at %s", f)
		c.transition(types.StateHalfLineLeftEntry)
	default:
		return false
	}
	return true
}

// measureSpeed closes the cross-line window. A zero window keeps the
// previous estimate.
func (c *TraceController) measureSpeed() {
	elapsed := c.clock.Elapsed()

	c.mu.Lock()
	c.windowMs = elapsed
	if elapsed > 0 {
		c.speed = c.profile.Speed.ReferenceDistanceMm / float64(elapsed)
	}
	speed := c.speed
	c.mu.Unlock()

	c.logger.Infof("Cross-line window %d ms, speed %.2f m/s, crank settle %d ms",
		elapsed, speed, c.profile.Crank.SettleMsFor(speed))
}

// maneuver returns the steering and drive command for a mirrored turn: the
// inner wheel is on the side of the turn.
func maneuver(side fsm.Side, angle, inner, outer int) types.Command {
	if side == fsm.SideLeft {
		return types.Command{Angle: -angle, Left: inner, Right: outer}
	}
	return types.Command{Angle: angle, Left: outer, Right: inner}
}
