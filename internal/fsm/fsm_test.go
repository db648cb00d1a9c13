package fsm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-tracer/internal/types"
)

// recordingActions notes which handler ran and with which side.
type recordingActions struct {
	calls []string
}

func (r *recordingActions) note(name string, side ...Side) {
	if len(side) > 0 {
		name += "/" + side[0].String()
	}
	r.calls = append(r.calls, name)
}

func (r *recordingActions) Idle(types.Frame)                    { r.note("idle") }
func (r *recordingActions) WaitStartBar(types.Frame)            { r.note("wait-start-bar") }
func (r *recordingActions) NormalTrace(types.Frame)             { r.note("normal-trace") }
func (r *recordingActions) PostLargeTurn(_ types.Frame, s Side) { r.note("post-large-turn", s) }
func (r *recordingActions) CrossLineEntry(types.Frame)          { r.note("cross-line-entry") }
func (r *recordingActions) CrossLineGapWait(types.Frame)        { r.note("gap-wait") }
func (r *recordingActions) CrossLineSecondLineWait(types.Frame) { r.note("second-line-wait") }
func (r *recordingActions) CrossLineGapConfirm(types.Frame)     { r.note("gap-confirm") }
func (r *recordingActions) CrossLineShortBreak(types.Frame)     { r.note("short-break") }
func (r *recordingActions) CrankDetect(types.Frame)             { r.note("crank-detect") }
func (r *recordingActions) CrankSettle(_ types.Frame, s Side)   { r.note("crank-settle", s) }
func (r *recordingActions) CrankExit(_ types.Frame, s Side)     { r.note("crank-exit", s) }
func (r *recordingActions) HalfLineEntry(_ types.Frame, s Side) { r.note("half-line-entry", s) }
func (r *recordingActions) HalfLineDebounce(_ types.Frame, s Side) {
	r.note("half-line-debounce", s)
}
func (r *recordingActions) HalfLineTrace(_ types.Frame, s Side) { r.note("half-line-trace", s) }
func (r *recordingActions) HalfLineExit(_ types.Frame, s Side)  { r.note("half-line-exit", s) }
func (r *recordingActions) Halted(types.Frame)                  { r.note("halted") }

func TestDefinitionBindsEveryState(t *testing.T) {
	actions := &recordingActions{}
	def := NewDefinition(actions)

	require.NoError(t, def.Validate())
	assert.Equal(t, types.StateIdle, def.InitialState())

	for _, s := range []types.ControlState{
		types.StateCrankLeftSettle,
		types.StateCrankRightExit,
		types.StateHalfLineLeftTrace,
		types.StatePostLargeTurnRight,
		types.StateHalted,
	} {
		h, ok := def.Handler(s)
		require.True(t, ok, s)
		h(0)
	}

	want := []string{
		"crank-settle/left",
		"crank-exit/right",
		"half-line-trace/left",
		"post-large-turn/right",
		"halted",
	}
	if diff := cmp.Diff(want, actions.calls); diff != "" {
		t.Errorf("handler calls mismatch (-want +got):\n%s", diff)
	}

	_, ok := def.Handler("nowhere")
	assert.False(t, ok)
}

func TestDefinitionValidateMissingHandler(t *testing.T) {
	def := newDefinition().
		State(types.StateIdle, func(types.Frame) {}).
		Initial(types.StateIdle)
	assert.Error(t, def.Validate())
}

func TestSideStatesMirror(t *testing.T) {
	right, left := SideRight.States(), SideLeft.States()
	assert.Equal(t, types.StateCrankRightExit, right.CrankExit)
	assert.Equal(t, types.StateCrankLeftExit, left.CrankExit)
	assert.Equal(t, types.StateHalfLineLeftDebounce, left.HalfLineDebounce)
	assert.Equal(t, types.StatePostLargeTurnRight, right.PostLargeTurn)
}

func TestStallFallback(t *testing.T) {
	next, ok := StallFallback(types.StateCrossLineGapWait)
	assert.True(t, ok)
	assert.Equal(t, types.StateCrankDetect, next)

	next, ok = StallFallback(types.StateHalfLineLeftExit)
	assert.True(t, ok)
	assert.Equal(t, types.StateNormalTrace, next)

	for _, s := range []types.ControlState{types.StateIdle, types.StateWaitStartBar, types.StateHalted} {
		_, ok := StallFallback(s)
		assert.False(t, ok, "%s waits for the operator", s)
	}
}

func TestProfilesValidate(t *testing.T) {
	for _, name := range ProfileNames() {
		p, err := ProfileByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
		assert.NoError(t, p.Validate(), name)
	}
	assert.Equal(t, []string{"gap", "kit", "race"}, ProfileNames())

	p, err := ProfileByName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)

	_, err = ProfileByName("turbo")
	assert.Error(t, err)
}

func TestProfileValidateRejects(t *testing.T) {
	p := RaceProfile()
	p.Actuator.SpeedFactor = 0
	assert.Error(t, p.Validate())

	p = RaceProfile()
	p.CrossLine.Mode = "hop"
	assert.Error(t, p.Validate())

	p = RaceProfile()
	p.StallTimeouts[types.StateIdle] = 10
	assert.Error(t, p.Validate())

	p = RaceProfile()
	p.Breakpoints = []types.ControlState{types.StateHalted}
	assert.Error(t, p.Validate())

	p = RaceProfile()
	p.Signatures.CrankLeft.Values = nil
	assert.Error(t, p.Validate())
}

func TestGapProfileDropsHardLeft(t *testing.T) {
	_, ok := GapProfile().Trace.Find(0x01, types.MaskCenter)
	assert.False(t, ok)

	e, ok := RaceProfile().Trace.Find(0x01, types.MaskCenter)
	require.True(t, ok)
	assert.Equal(t, types.Command{Angle: -80, Left: 4, Right: 7}, e.Command)
}

func TestSettleMsFor(t *testing.T) {
	c := RaceProfile().Crank
	assert.Equal(t, uint32(165), c.SettleMsFor(1.5))
	assert.Equal(t, uint32(0), c.SettleMsFor(-1))

	c.SpeedScaled = false
	assert.Equal(t, uint32(200), c.SettleMsFor(1.5))
}

func TestCloneIsDeep(t *testing.T) {
	p := RaceProfile()
	q := p.Clone()

	q.Trace[0].Command.Left = 1
	q.StallTimeouts[types.StateCrankDetect] = 1
	q.Breakpoints = append(q.Breakpoints, types.StateCrankDetect)

	assert.Equal(t, 100, p.Trace[0].Command.Left)
	assert.Equal(t, uint32(4000), p.StallTimeout(types.StateCrankDetect))
	assert.False(t, p.IsBreakpoint(types.StateCrankDetect))
}
