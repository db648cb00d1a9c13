package core

import (
	"line-tracer/internal/fsm"
	"line-tracer/internal/types"
)

// Ensure TraceController implements fsm.Actions
var _ fsm.Actions = (*TraceController)(nil)

// === Start sequence ===

func (c *TraceController) Idle(f types.Frame) {
	pressed, err := c.io.ReadPushButton()
	if err != nil {
		c.fault("failed to read push button: %v", err)
	} else if pressed {
		c.logger.Infof("Push button pressed, waiting for start bar")
		c.transition(types.StateWaitStartBar)
		return
	}
	c.blink(c.profile.Timing.IdleBlinkMs)
}

func (c *TraceController) WaitStartBar(f types.Frame) {
	closed, err := c.io.ReadStartBar()
	if err != nil {
		// Keep waiting: a failed read must never start the run.
		c.fault("failed to read start bar: %v", err)
		closed = true
	}
	if !closed {
		c.logger.Infof("Start bar open, go")
		c.setIndicator(types.IndicatorOff)
		c.transition(types.StateNormalTrace)
		return
	}
	c.blink(c.profile.Timing.StartBarBlinkMs)
}

// === Line following ===

func (c *TraceController) NormalTrace(f types.Frame) {
	if c.trackFeature(f) {
		return
	}
	c.followTable(c.profile.Trace, f, false)
}

// PostLargeTurn holds the large-turn command until the line comes back to
// the small-turn pattern on the same side.
func (c *TraceController) PostLargeTurn(f types.Frame, side fsm.Side) {
	if c.trackFeature(f) {
		return
	}
	if f&types.Frame(types.MaskCenter) == c.profile.Return(side) {
		c.transition(types.StateNormalTrace)
	}
}

// === Cross-line ===

func (c *TraceController) CrossLineEntry(f types.Frame) {
	c.clock.ResetElapsed()
	c.setIndicator(c.profile.CrossLine.EntryLed)
	p := c.profile.CrossLine.EntryPower
	c.command(types.Command{Angle: 0, Left: p, Right: p})
	c.transition(types.StateCrossLineGapWait)
}

func (c *TraceController) CrossLineGapWait(f types.Frame) {
	if c.profile.CrossLine.Mode == fsm.CrossLineTimed {
		if c.clock.Dwell() > c.profile.Timing.CrossLineIgnoreMs {
			c.transition(types.StateCrankDetect)
		}
		return
	}
	if c.detectors.CrossLineGap(f) {
		c.transition(types.StateCrossLineSecondLineWait)
	}
}

func (c *TraceController) CrossLineSecondLineWait(f types.Frame) {
	if c.detectors.SecondLine(f) {
		c.transition(types.StateCrossLineGapConfirm)
	}
}

func (c *TraceController) CrossLineGapConfirm(f types.Frame) {
	if c.detectors.CrossLineGap(f) {
		c.measureSpeed()
		c.transition(types.StateCrossLineShortBreak)
	}
}

func (c *TraceController) CrossLineShortBreak(f types.Frame) {
	if c.clock.Dwell() > c.profile.Timing.ShortBreakMs {
		c.transition(types.StateCrankDetect)
	}
}

// === Crank ===

func (c *TraceController) CrankDetect(f types.Frame) {
	crank := c.profile.Crank
	switch {
	case c.detectors.CrankLeft(f):
		c.setIndicator(types.IndicatorLED0)
		c.command(maneuver(fsm.SideLeft, crank.Angle, crank.InnerPower, crank.OuterPower))
		c.transition(types.StateCrankLeftSettle)
	case c.detectors.CrankRight(f):
		c.setIndicator(types.IndicatorLED1)
		c.command(maneuver(fsm.SideRight, crank.Angle, crank.InnerPower, crank.OuterPower))
		c.transition(types.StateCrankRightSettle)
	default:
		c.followTable(c.profile.Cautious, f, true)
	}
}

// CrankSettle holds the crank turn blind until the vehicle has swung past
// the marking.
func (c *TraceController) CrankSettle(f types.Frame, side fsm.Side) {
	if c.clock.Dwell() > c.profile.Crank.SettleMsFor(c.speed) {
		c.transition(side.States().CrankExit)
	}
}

func (c *TraceController) CrankExit(f types.Frame, side fsm.Side) {
	if f&types.Frame(types.MaskCenter) == c.profile.Return(side) {
		c.setIndicator(types.IndicatorOff)
		c.transition(types.StateNormalTrace)
	}
}

// === Half-line lane change ===

func (c *TraceController) HalfLineEntry(f types.Frame, side fsm.Side) {
	c.setIndicator(types.IndicatorLED0)
	c.neutral()
	c.transition(side.States().HalfLineDebounce)
}

func (c *TraceController) HalfLineDebounce(f types.Frame, side fsm.Side) {
	if c.clock.Dwell() > c.profile.Timing.HalfLineDebounceMs {
		c.setIndicator(types.IndicatorLED1)
		c.transition(side.States().HalfLineTrace)
	}
}

// HalfLineTrace follows the line gently until it ends, then swings over.
func (c *TraceController) HalfLineTrace(f types.Frame, side fsm.Side) {
	if c.detectors.AllBackground(f) {
		lane := c.profile.LaneChange
		c.command(maneuver(side, lane.Angle, lane.InnerPower, lane.OuterPower))
		c.transition(side.States().HalfLineExit)
		return
	}
	c.followTable(c.profile.Lane, f, false)
}

func (c *TraceController) HalfLineExit(f types.Frame, side fsm.Side) {
	exit := c.profile.LaneChange.RightExit
	if side == fsm.SideLeft {
		exit = c.profile.LaneChange.LeftExit
	}
	if exit.Matches(f) {
		c.setIndicator(types.IndicatorOff)
		c.transition(types.StateNormalTrace)
	}
}

// === Halted ===

// Halted keeps the vehicle still until the push button is pressed and
// released.
func (c *TraceController) Halted(f types.Frame) {
	c.neutral()
	c.blink(c.profile.Timing.HaltedBlinkMs)

	pressed, err := c.io.ReadPushButton()
	if err != nil {
		c.fault("failed to read push button: %v", err)
		return
	}
	if pressed {
		c.resetPressed = true
		return
	}
	if c.resetPressed {
		c.logger.Infof("Push button released, leaving halt")
		c.setIndicator(types.IndicatorOff)
		c.transition(types.StateIdle)
	}
}
