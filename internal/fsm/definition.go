package fsm

import (
	"fmt"

	"line-tracer/internal/types"
)

// Handler runs one control cycle for a state.
type Handler func(f types.Frame)

// Definition binds every control state to its handler.
type Definition struct {
	handlers map[types.ControlState]Handler
	initial  types.ControlState
}

func newDefinition() *Definition {
	return &Definition{handlers: make(map[types.ControlState]Handler)}
}

func (d *Definition) State(id types.ControlState, h Handler) *Definition {
	d.handlers[id] = h
	return d
}

func (d *Definition) Initial(id types.ControlState) *Definition {
	d.initial = id
	return d
}

func (d *Definition) InitialState() types.ControlState {
	return d.initial
}

// Handler returns the handler for a state. Unknown states report false and
// the caller falls back to the initial state.
func (d *Definition) Handler(id types.ControlState) (Handler, bool) {
	h, ok := d.handlers[id]
	return h, ok
}

// Validate checks that every state in States has a handler.
func (d *Definition) Validate() error {
	for _, s := range States {
		if _, ok := d.handlers[s]; !ok {
			return fmt.Errorf("state %q has no handler", s)
		}
	}
	if _, ok := d.handlers[d.initial]; !ok {
		return fmt.Errorf("initial state %q has no handler", d.initial)
	}
	return nil
}

// NewDefinition creates the trace controller FSM definition.
func NewDefinition(actions Actions) *Definition {
	right, left := SideRight, SideLeft

	return newDefinition().
		// Start sequence
		State(types.StateIdle, actions.Idle).
		State(types.StateWaitStartBar, actions.WaitStartBar).

		// Line following
		State(types.StateNormalTrace, actions.NormalTrace).
		State(types.StatePostLargeTurnRight, func(f types.Frame) { actions.PostLargeTurn(f, right) }).
		State(types.StatePostLargeTurnLeft, func(f types.Frame) { actions.PostLargeTurn(f, left) }).

		// Cross-line
		State(types.StateCrossLineEntry, actions.CrossLineEntry).
		State(types.StateCrossLineGapWait, actions.CrossLineGapWait).
		State(types.StateCrossLineSecondLineWait, actions.CrossLineSecondLineWait).
		State(types.StateCrossLineGapConfirm, actions.CrossLineGapConfirm).
		State(types.StateCrossLineShortBreak, actions.CrossLineShortBreak).

		// Crank
		State(types.StateCrankDetect, actions.CrankDetect).
		State(types.StateCrankRightSettle, func(f types.Frame) { actions.CrankSettle(f, right) }).
		State(types.StateCrankRightExit, func(f types.Frame) { actions.CrankExit(f, right) }).
		State(types.StateCrankLeftSettle, func(f types.Frame) { actions.CrankSettle(f, left) }).
		State(types.StateCrankLeftExit, func(f types.Frame) { actions.CrankExit(f, left) }).

		// Half-line lane change
		State(types.StateHalfLineRightEntry, func(f types.Frame) { actions.HalfLineEntry(f, right) }).
		State(types.StateHalfLineRightDebounce, func(f types.Frame) { actions.HalfLineDebounce(f, right) }).
		State(types.StateHalfLineRightTrace, func(f types.Frame) { actions.HalfLineTrace(f, right) }).
		State(types.StateHalfLineRightExit, func(f types.Frame) { actions.HalfLineExit(f, right) }).
		State(types.StateHalfLineLeftEntry, func(f types.Frame) { actions.HalfLineEntry(f, left) }).
		State(types.StateHalfLineLeftDebounce, func(f types.Frame) { actions.HalfLineDebounce(f, left) }).
		State(types.StateHalfLineLeftTrace, func(f types.Frame) { actions.HalfLineTrace(f, left) }).
		State(types.StateHalfLineLeftExit, func(f types.Frame) { actions.HalfLineExit(f, left) }).

		State(types.StateHalted, actions.Halted).
		Initial(types.StateIdle)
}
