package fsm

import "line-tracer/internal/types"

// Side selects the mirrored half of a maneuver.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// SideStates names the states a mirrored maneuver moves through.
type SideStates struct {
	PostLargeTurn    types.ControlState
	CrankSettle      types.ControlState
	CrankExit        types.ControlState
	HalfLineEntry    types.ControlState
	HalfLineDebounce types.ControlState
	HalfLineTrace    types.ControlState
	HalfLineExit     types.ControlState
}

func (s Side) States() SideStates {
	if s == SideLeft {
		return SideStates{
			PostLargeTurn:    types.StatePostLargeTurnLeft,
			CrankSettle:      types.StateCrankLeftSettle,
			CrankExit:        types.StateCrankLeftExit,
			HalfLineEntry:    types.StateHalfLineLeftEntry,
			HalfLineDebounce: types.StateHalfLineLeftDebounce,
			HalfLineTrace:    types.StateHalfLineLeftTrace,
			HalfLineExit:     types.StateHalfLineLeftExit,
		}
	}
	return SideStates{
		PostLargeTurn:    types.StatePostLargeTurnRight,
		CrankSettle:      types.StateCrankRightSettle,
		CrankExit:        types.StateCrankRightExit,
		HalfLineEntry:    types.StateHalfLineRightEntry,
		HalfLineDebounce: types.StateHalfLineRightDebounce,
		HalfLineTrace:    types.StateHalfLineRightTrace,
		HalfLineExit:     types.StateHalfLineRightExit,
	}
}

// Actions defines one control-cycle handler per state. TraceController
// implements this interface; each handler sees the frame sampled for the
// cycle and performs at most one transition.
type Actions interface {
	// Start sequence
	Idle(f types.Frame)
	WaitStartBar(f types.Frame)

	// Line following
	NormalTrace(f types.Frame)
	PostLargeTurn(f types.Frame, side Side)

	// Cross-line debounce and speed measurement
	CrossLineEntry(f types.Frame)
	CrossLineGapWait(f types.Frame)
	CrossLineSecondLineWait(f types.Frame)
	CrossLineGapConfirm(f types.Frame)
	CrossLineShortBreak(f types.Frame)

	// Crank
	CrankDetect(f types.Frame)
	CrankSettle(f types.Frame, side Side)
	CrankExit(f types.Frame, side Side)

	// Half-line lane change
	HalfLineEntry(f types.Frame, side Side)
	HalfLineDebounce(f types.Frame, side Side)
	HalfLineTrace(f types.Frame, side Side)
	HalfLineExit(f types.Frame, side Side)

	Halted(f types.Frame)
}
