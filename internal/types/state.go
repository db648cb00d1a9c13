package types

type ControlState string

const (
	StateIdle         ControlState = "idle"
	StateWaitStartBar ControlState = "wait-start-bar"
	StateNormalTrace  ControlState = "normal-trace"

	StatePostLargeTurnRight ControlState = "post-large-turn-right"
	StatePostLargeTurnLeft  ControlState = "post-large-turn-left"

	// Cross-line marking (two bars with a gap) and the crank that follows it
	StateCrossLineEntry          ControlState = "cross-line-entry"
	StateCrossLineGapWait        ControlState = "cross-line-gap-wait"
	StateCrossLineSecondLineWait ControlState = "cross-line-second-line-wait"
	StateCrossLineGapConfirm     ControlState = "cross-line-gap-confirm"
	StateCrossLineShortBreak     ControlState = "cross-line-short-break"
	StateCrankDetect             ControlState = "crank-detect"

	StateCrankLeftSettle  ControlState = "crank-left-settle"
	StateCrankLeftExit    ControlState = "crank-left-exit"
	StateCrankRightSettle ControlState = "crank-right-settle"
	StateCrankRightExit   ControlState = "crank-right-exit"

	// Half-line lane change
	StateHalfLineRightEntry    ControlState = "half-line-right-entry"
	StateHalfLineRightDebounce ControlState = "half-line-right-debounce"
	StateHalfLineRightTrace    ControlState = "half-line-right-trace"
	StateHalfLineRightExit     ControlState = "half-line-right-exit"
	StateHalfLineLeftEntry     ControlState = "half-line-left-entry"
	StateHalfLineLeftDebounce  ControlState = "half-line-left-debounce"
	StateHalfLineLeftTrace     ControlState = "half-line-left-trace"
	StateHalfLineLeftExit      ControlState = "half-line-left-exit"

	// Actuators held neutral until the push button is pressed
	StateHalted ControlState = "halted"
)
