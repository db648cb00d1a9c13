package fsm

import (
	"fmt"
	"sort"

	"line-tracer/internal/actuator"
	"line-tracer/internal/detect"
	"line-tracer/internal/types"
)

// CrossLineMode selects how the double bar of a cross-line is passed.
type CrossLineMode string

const (
	// CrossLineTimed ignores the sensors for a fixed time after the first bar.
	CrossLineTimed CrossLineMode = "timed"
	// CrossLineGap tracks bar, gap, bar, gap and measures speed on the way.
	CrossLineGap CrossLineMode = "gap"
)

// Timing constants, all in milliseconds. Every comparison against dwell is
// strict: a 100 ms window expires on the tick that makes dwell 101.
type Timing struct {
	IdleBlinkMs        uint32 `json:"idle_blink_ms"`
	StartBarBlinkMs    uint32 `json:"start_bar_blink_ms"`
	HaltedBlinkMs      uint32 `json:"halted_blink_ms"`
	CrossLineIgnoreMs  uint32 `json:"cross_line_ignore_ms"`
	ShortBreakMs       uint32 `json:"short_break_ms"`
	HalfLineDebounceMs uint32 `json:"half_line_debounce_ms"`
}

type CrossLine struct {
	Mode       CrossLineMode   `json:"mode"`
	EntryPower int             `json:"entry_power"`
	EntryLed   types.Indicator `json:"entry_led"`
}

type Crank struct {
	Angle           int                 `json:"angle"`
	InnerPower      int                 `json:"inner_power"`
	OuterPower      int                 `json:"outer_power"`
	SettleMs        uint32              `json:"settle_ms"`
	SpeedScaled     bool                `json:"speed_scaled"`
	SpeedMultiplier float64             `json:"speed_multiplier"`
	ApproachRamp    actuator.LinearRamp `json:"approach_ramp"`
}

// SettleMsFor returns the crank settle time for a speed estimate in m/s.
func (c Crank) SettleMsFor(speed float64) uint32 {
	if !c.SpeedScaled {
		return c.SettleMs
	}
	ms := speed * c.SpeedMultiplier
	if ms < 0 {
		return 0
	}
	return uint32(ms)
}

type LaneChange struct {
	Angle      int             `json:"angle"`
	InnerPower int             `json:"inner_power"`
	OuterPower int             `json:"outer_power"`
	RightExit  types.Signature `json:"right_exit"`
	LeftExit   types.Signature `json:"left_exit"`
}

type Speed struct {
	ReferenceDistanceMm float64 `json:"reference_distance_mm"`
	Initial             float64 `json:"initial"` // m/s before the first measurement
}

// Profile is one versioned configuration of the trace engine.
type Profile struct {
	Name       string
	Signatures detect.Signatures
	Actuator   actuator.Config

	// Lookup tables keyed on the center mask
	Trace    types.LookupTable
	Cautious types.LookupTable
	Lane     types.LookupTable

	// Center patterns that end a large turn or crank on each side
	ReturnRight types.Frame
	ReturnLeft  types.Frame

	Timing     Timing
	CrossLine  CrossLine
	Crank      Crank
	LaneChange LaneChange
	Speed      Speed

	// Stall timeouts per detection-wait state; 0 or absent waits forever.
	StallTimeouts map[types.ControlState]uint32

	// Entering one of these states halts the vehicle instead.
	Breakpoints []types.ControlState
}

// StallTimeout returns the stall bound for a state, 0 if unbounded.
func (p Profile) StallTimeout(s types.ControlState) uint32 {
	return p.StallTimeouts[s]
}

func (p Profile) IsBreakpoint(s types.ControlState) bool {
	for _, b := range p.Breakpoints {
		if b == s {
			return true
		}
	}
	return false
}

// Return returns the small-turn center pattern that ends a maneuver on side.
func (p Profile) Return(side Side) types.Frame {
	if side == SideLeft {
		return p.ReturnLeft
	}
	return p.ReturnRight
}

// Clone returns a deep copy whose maps and slices can be edited freely.
func (p Profile) Clone() Profile {
	out := p
	out.Trace = append(types.LookupTable(nil), p.Trace...)
	out.Cautious = append(types.LookupTable(nil), p.Cautious...)
	out.Lane = append(types.LookupTable(nil), p.Lane...)
	out.Breakpoints = append([]types.ControlState(nil), p.Breakpoints...)
	out.StallTimeouts = make(map[types.ControlState]uint32, len(p.StallTimeouts))
	for k, v := range p.StallTimeouts {
		out.StallTimeouts[k] = v
	}
	return out
}

// Validate checks the profile for values the engine cannot run with.
func (p Profile) Validate() error {
	if p.Actuator.SpeedFactor <= 0 || p.Actuator.SpeedFactor > 1 {
		return fmt.Errorf("speed factor %.2f out of range (0,1]", p.Actuator.SpeedFactor)
	}
	if p.Actuator.MaxAngle <= 0 {
		return fmt.Errorf("max angle must be positive, got %d", p.Actuator.MaxAngle)
	}
	if p.Actuator.PWMCycle <= 1 {
		return fmt.Errorf("pwm cycle must be greater than 1, got %d", p.Actuator.PWMCycle)
	}
	switch p.CrossLine.Mode {
	case CrossLineTimed, CrossLineGap:
	default:
		return fmt.Errorf("unknown cross-line mode %q", p.CrossLine.Mode)
	}
	if p.Crank.SpeedScaled && p.Crank.SpeedMultiplier <= 0 {
		return fmt.Errorf("speed-scaled crank settle needs a positive multiplier")
	}
	if p.Speed.ReferenceDistanceMm <= 0 {
		return fmt.Errorf("reference distance must be positive")
	}
	if len(p.Trace) == 0 {
		return fmt.Errorf("trace table is empty")
	}
	for _, sig := range []struct {
		name string
		sig  types.Signature
	}{
		{"cross_line", p.Signatures.CrossLine},
		{"half_line_right", p.Signatures.HalfLineRight},
		{"half_line_left", p.Signatures.HalfLineLeft},
		{"crank_left", p.Signatures.CrankLeft},
		{"crank_right", p.Signatures.CrankRight},
		{"on_line", p.Signatures.OnLine},
		{"on_line_second_time", p.Signatures.OnLineSecondTime},
		{"lane_change.right_exit", p.LaneChange.RightExit},
		{"lane_change.left_exit", p.LaneChange.LeftExit},
	} {
		if sig.sig.Mask == 0 || len(sig.sig.Values) == 0 {
			return fmt.Errorf("signature %s needs a mask and at least one value", sig.name)
		}
	}
	for s := range p.StallTimeouts {
		if _, ok := StallFallback(s); !ok {
			return fmt.Errorf("state %q does not support a stall timeout", s)
		}
	}
	for _, b := range p.Breakpoints {
		if !IsKnown(b) || b == types.StateHalted || b == types.StateIdle {
			return fmt.Errorf("invalid breakpoint state %q", b)
		}
	}
	return nil
}

var profiles = map[string]func() Profile{
	"kit":  KitProfile,
	"gap":  GapProfile,
	"race": RaceProfile,
}

// DefaultProfile is the profile used when none is named.
const DefaultProfile = "race"

// ProfileByName returns a fresh copy of a named profile.
func ProfileByName(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	fn, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (known: %v)", name, ProfileNames())
	}
	return fn(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func defaultTiming() Timing {
	return Timing{
		IdleBlinkMs:        100,
		StartBarBlinkMs:    50,
		HaltedBlinkMs:      50,
		CrossLineIgnoreMs:  100,
		ShortBreakMs:       50,
		HalfLineDebounceMs: 100,
	}
}

// laneTable is the gentle trace used while hunting for the lane edge.
func laneTable() types.LookupTable {
	return types.LookupTable{
		{Key: 0x00, Command: types.Command{Angle: 0, Left: 40, Right: 40}},
		{Key: 0x04, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
		{Key: 0x06, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
		{Key: 0x07, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
		{Key: 0x03, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
		{Key: 0x20, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
		{Key: 0x60, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
		{Key: 0xe0, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
		{Key: 0xc0, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
	}
}

// KitProfile is the classic kit program: a single-bar cross-line check
// followed by a fixed ignore window, and fixed crank timing.
func KitProfile() Profile {
	sig := detect.DefaultSignatures()
	sig.CrossLine = types.Signature{Mask: types.MaskCenter, Values: []types.Frame{0xe7}}
	sig.HalfLineRight = types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x0f}}
	sig.HalfLineLeft = types.Signature{Mask: types.MaskFull, Values: []types.Frame{0xf0}}

	return Profile{
		Name:       "kit",
		Signatures: sig,
		Actuator:   actuator.DefaultConfig(),
		Trace: types.LookupTable{
			{Key: 0x00, Command: types.Command{Angle: 0, Left: 100, Right: 100}},
			{Key: 0x04, Command: types.Command{Angle: 5, Left: 100, Right: 100}},
			{Key: 0x06, Command: types.Command{Angle: 10, Left: 80, Right: 67}},
			{Key: 0x07, Command: types.Command{Angle: 15, Left: 50, Right: 38}},
			{Key: 0x03, Command: types.Command{Angle: 25, Left: 30, Right: 19}, Next: types.StatePostLargeTurnRight},
			{Key: 0x20, Command: types.Command{Angle: -5, Left: 100, Right: 100}},
			{Key: 0x60, Command: types.Command{Angle: -10, Left: 67, Right: 80}},
			{Key: 0xe0, Command: types.Command{Angle: -15, Left: 38, Right: 50}},
			{Key: 0xc0, Command: types.Command{Angle: -25, Left: 19, Right: 30}, Next: types.StatePostLargeTurnLeft},
		},
		Cautious: types.LookupTable{
			{Key: 0x00, Command: types.Command{Angle: 0, Left: 40, Right: 40}},
			{Key: 0x04, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
			{Key: 0x06, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
			{Key: 0x07, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
			{Key: 0x03, Command: types.Command{Angle: 8, Left: 40, Right: 35}},
			{Key: 0x20, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
			{Key: 0x60, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
			{Key: 0xe0, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
			{Key: 0xc0, Command: types.Command{Angle: -8, Left: 35, Right: 40}},
		},
		Lane:        laneTable(),
		ReturnRight: 0x06,
		ReturnLeft:  0x60,
		Timing:      defaultTiming(),
		CrossLine: CrossLine{
			Mode:       CrossLineTimed,
			EntryPower: 0,
			EntryLed:   types.IndicatorBoth,
		},
		Crank: Crank{
			Angle:      38,
			InnerPower: 10,
			OuterPower: 50,
			SettleMs:   200,
		},
		LaneChange: LaneChange{
			Angle:      15,
			InnerPower: 31,
			OuterPower: 40,
			RightExit:  types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x3c}},
			LeftExit:   types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x3c}},
		},
		Speed: Speed{ReferenceDistanceMm: 90, Initial: 1.4},
		StallTimeouts: map[types.ControlState]uint32{
			types.StateCrankDetect:        4000,
			types.StateCrankLeftExit:      2000,
			types.StateCrankRightExit:     2000,
			types.StatePostLargeTurnRight: 3000,
			types.StatePostLargeTurnLeft:  3000,
			types.StateHalfLineRightTrace: 3000,
			types.StateHalfLineLeftTrace:  3000,
			types.StateHalfLineRightExit:  2000,
			types.StateHalfLineLeftExit:   2000,
		},
	}
}

// GapProfile passes the cross-line by watching for the gap between the two
// bars and ramps power down on the crank approach.
func GapProfile() Profile {
	p := RaceProfile()
	p.Name = "gap"
	p.Signatures.CrossLine = types.Signature{Mask: types.MaskFull, Values: []types.Frame{0xff, 0x7e}}

	trace := make(types.LookupTable, 0, len(p.Trace))
	for _, e := range p.Trace {
		if e.Key != 0x01 {
			trace = append(trace, e)
		}
	}
	p.Trace = trace

	p.CrossLine.EntryPower = 0
	p.Crank.SpeedScaled = false
	p.LaneChange.RightExit = types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x3c, 0x18}}
	p.LaneChange.LeftExit = types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x3c, 0x18}}
	return p
}

// RaceProfile is the current competition setup.
func RaceProfile() Profile {
	return Profile{
		Name:       "race",
		Signatures: detect.DefaultSignatures(),
		Actuator:   actuator.DefaultConfig(),
		Trace: types.LookupTable{
			{Key: 0x00, Command: types.Command{Angle: 0, Left: 100, Right: 100}, Indicator: types.Led(types.IndicatorLED0)},
			{Key: 0x04, Command: types.Command{Angle: 15, Left: 80, Right: 80}},
			{Key: 0x06, Command: types.Command{Angle: 40, Left: 60, Right: 40}},
			{Key: 0x07, Command: types.Command{Angle: 55, Left: 25, Right: 15}, Next: types.StatePostLargeTurnRight},
			{Key: 0x03, Command: types.Command{Angle: 60, Left: 7, Right: 4}},
			{Key: 0x20, Command: types.Command{Angle: -15, Left: 80, Right: 80}, Indicator: types.Led(types.IndicatorLED1)},
			{Key: 0x60, Command: types.Command{Angle: -40, Left: 40, Right: 60}},
			{Key: 0xe0, Command: types.Command{Angle: -55, Left: 15, Right: 25}, Next: types.StatePostLargeTurnLeft},
			{Key: 0xc0, Command: types.Command{Angle: -60, Left: 4, Right: 7}},
			{Key: 0x01, Command: types.Command{Angle: -80, Left: 4, Right: 7}},
		},
		Cautious: types.LookupTable{
			{Key: 0x00, Command: types.Command{Angle: 0, Left: 100, Right: 100}, Indicator: types.Led(types.IndicatorBoth), Ramped: true},
			{Key: 0x04, Command: types.Command{Angle: 15, Left: 80, Right: 80}, Ramped: true},
			{Key: 0x06, Command: types.Command{Angle: 8, Left: 50, Right: 35}},
			{Key: 0x07, Command: types.Command{Angle: 8, Left: 50, Right: 35}},
			{Key: 0x03, Command: types.Command{Angle: 8, Left: 50, Right: 35}},
			{Key: 0x20, Command: types.Command{Angle: -15, Left: 80, Right: 80}, Ramped: true},
			{Key: 0x60, Command: types.Command{Angle: -8, Left: 35, Right: 50}},
			{Key: 0xe0, Command: types.Command{Angle: -8, Left: 35, Right: 50}},
			{Key: 0xc0, Command: types.Command{Angle: -8, Left: 35, Right: 50}},
		},
		Lane:        laneTable(),
		ReturnRight: 0x06,
		ReturnLeft:  0x60,
		Timing:      defaultTiming(),
		CrossLine: CrossLine{
			Mode:       CrossLineGap,
			EntryPower: 20,
			EntryLed:   types.IndicatorLED1,
		},
		Crank: Crank{
			Angle:           45,
			InnerPower:      10,
			OuterPower:      50,
			SettleMs:        200,
			SpeedScaled:     true,
			SpeedMultiplier: 110,
			ApproachRamp:    actuator.LinearRamp{DurationMs: 300, Floor: 10},
		},
		LaneChange: LaneChange{
			Angle:      15,
			InnerPower: 31,
			OuterPower: 40,
			RightExit:  types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x18, 0x0c, 0x8c}},
			LeftExit:   types.Signature{Mask: types.MaskFull, Values: []types.Frame{0x18, 0xc0, 0xc8}},
		},
		Speed: Speed{ReferenceDistanceMm: 90, Initial: 1.4},
		StallTimeouts: map[types.ControlState]uint32{
			types.StateCrossLineGapWait:        500,
			types.StateCrossLineSecondLineWait: 1000,
			types.StateCrossLineGapConfirm:     1000,
			types.StateCrankDetect:             4000,
			types.StateCrankLeftExit:           2000,
			types.StateCrankRightExit:          2000,
			types.StatePostLargeTurnRight:      3000,
			types.StatePostLargeTurnLeft:       3000,
			types.StateHalfLineRightTrace:      3000,
			types.StateHalfLineLeftTrace:       3000,
			types.StateHalfLineRightExit:       2000,
			types.StateHalfLineLeftExit:        2000,
		},
	}
}
