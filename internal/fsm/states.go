package fsm

import "line-tracer/internal/types"

// States lists every control state in pattern order.
var States = []types.ControlState{
	types.StateIdle,
	types.StateWaitStartBar,
	types.StateNormalTrace,
	types.StatePostLargeTurnRight,
	types.StatePostLargeTurnLeft,
	types.StateCrossLineEntry,
	types.StateCrossLineGapWait,
	types.StateCrossLineSecondLineWait,
	types.StateCrossLineGapConfirm,
	types.StateCrossLineShortBreak,
	types.StateCrankDetect,
	types.StateCrankLeftSettle,
	types.StateCrankLeftExit,
	types.StateCrankRightSettle,
	types.StateCrankRightExit,
	types.StateHalfLineRightEntry,
	types.StateHalfLineRightDebounce,
	types.StateHalfLineRightTrace,
	types.StateHalfLineRightExit,
	types.StateHalfLineLeftEntry,
	types.StateHalfLineLeftDebounce,
	types.StateHalfLineLeftTrace,
	types.StateHalfLineLeftExit,
	types.StateHalted,
}

// IsKnown reports whether s is one of States.
func IsKnown(s types.ControlState) bool {
	for _, known := range States {
		if known == s {
			return true
		}
	}
	return false
}

// Stall fallbacks. A detection-wait state that never sees its feature
// leaves through this transition once its timeout expires. States absent
// from the map wait for the operator or are already bounded.
var stallFallback = map[types.ControlState]types.ControlState{
	types.StatePostLargeTurnRight:      types.StateNormalTrace,
	types.StatePostLargeTurnLeft:       types.StateNormalTrace,
	types.StateCrossLineGapWait:        types.StateCrankDetect,
	types.StateCrossLineSecondLineWait: types.StateCrankDetect,
	types.StateCrossLineGapConfirm:     types.StateCrankDetect,
	types.StateCrankDetect:             types.StateNormalTrace,
	types.StateCrankLeftExit:           types.StateNormalTrace,
	types.StateCrankRightExit:          types.StateNormalTrace,
	types.StateHalfLineRightTrace:      types.StateNormalTrace,
	types.StateHalfLineRightExit:       types.StateNormalTrace,
	types.StateHalfLineLeftTrace:       types.StateNormalTrace,
	types.StateHalfLineLeftExit:        types.StateNormalTrace,
}

// StallFallback returns where s goes when its stall timeout expires.
func StallFallback(s types.ControlState) (types.ControlState, bool) {
	next, ok := stallFallback[s]
	return next, ok
}
