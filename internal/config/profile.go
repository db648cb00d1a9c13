// Package config loads JSON overrides for a trace profile. Every field is
// optional; omitted fields keep the value of the base profile.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"line-tracer/internal/actuator"
	"line-tracer/internal/detect"
	"line-tracer/internal/fsm"
	"line-tracer/internal/types"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ProfileConfig holds overrides for a base profile.
type ProfileConfig struct {
	// Base profile name; the -profile flag is used when empty
	Profile *string `json:"profile,omitempty"`

	// Actuator
	SpeedFactor   *float64 `json:"speed_factor,omitempty"`
	ServoCenter   *int     `json:"servo_center,omitempty"`
	HandleStep    *int     `json:"handle_step,omitempty"`
	MaxAngle      *int     `json:"max_angle,omitempty"`
	ServoReversed *bool    `json:"servo_reversed,omitempty"`

	// Timing, milliseconds
	IdleBlinkMs        *int `json:"idle_blink_ms,omitempty"`
	StartBarBlinkMs    *int `json:"start_bar_blink_ms,omitempty"`
	HaltedBlinkMs      *int `json:"halted_blink_ms,omitempty"`
	CrossLineIgnoreMs  *int `json:"cross_line_ignore_ms,omitempty"`
	ShortBreakMs       *int `json:"short_break_ms,omitempty"`
	HalfLineDebounceMs *int `json:"half_line_debounce_ms,omitempty"`

	// Cross-line
	CrossLineMode       *string `json:"cross_line_mode,omitempty"`
	CrossLineEntryPower *int    `json:"cross_line_entry_power,omitempty"`

	// Crank
	CrankAngle           *int                 `json:"crank_angle,omitempty"`
	CrankInnerPower      *int                 `json:"crank_inner_power,omitempty"`
	CrankOuterPower      *int                 `json:"crank_outer_power,omitempty"`
	CrankSettleMs        *int                 `json:"crank_settle_ms,omitempty"`
	CrankSpeedScaled     *bool                `json:"crank_speed_scaled,omitempty"`
	CrankSpeedMultiplier *float64             `json:"crank_speed_multiplier,omitempty"`
	ApproachRamp         *actuator.LinearRamp `json:"approach_ramp,omitempty"`

	// Lane change
	LaneChangeAngle *int `json:"lane_change_angle,omitempty"`

	ReferenceDistanceMm *float64 `json:"reference_distance_mm,omitempty"`

	// Full replacement of the detector signatures
	Signatures *detect.Signatures `json:"signatures,omitempty"`

	// Per-state stall timeouts in ms; 0 disables the timeout for that state
	StallTimeouts map[string]int `json:"stall_timeouts,omitempty"`
	Breakpoints   []string       `json:"breakpoints,omitempty"`
}

// LoadProfileConfig loads a ProfileConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadProfileConfig(path string) (*ProfileConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ProfileConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func checkNonNegative(name string, v *int) error {
	if v != nil && *v < 0 {
		return fmt.Errorf("%s must be non-negative, got %d", name, *v)
	}
	return nil
}

func checkPower(name string, v *int) error {
	if v != nil && (*v < -100 || *v > 100) {
		return fmt.Errorf("%s must be between -100 and 100, got %d", name, *v)
	}
	return nil
}

// Validate checks that the configuration values are valid.
func (c *ProfileConfig) Validate() error {
	if c.Profile != nil {
		if _, err := fsm.ProfileByName(*c.Profile); err != nil {
			return err
		}
	}

	if c.SpeedFactor != nil && (*c.SpeedFactor <= 0 || *c.SpeedFactor > 1) {
		return fmt.Errorf("speed_factor must be in (0, 1], got %f", *c.SpeedFactor)
	}
	if c.MaxAngle != nil && *c.MaxAngle <= 0 {
		return fmt.Errorf("max_angle must be positive, got %d", *c.MaxAngle)
	}

	for name, v := range map[string]*int{
		"servo_center":          c.ServoCenter,
		"handle_step":           c.HandleStep,
		"idle_blink_ms":         c.IdleBlinkMs,
		"start_bar_blink_ms":    c.StartBarBlinkMs,
		"halted_blink_ms":       c.HaltedBlinkMs,
		"cross_line_ignore_ms":  c.CrossLineIgnoreMs,
		"short_break_ms":        c.ShortBreakMs,
		"half_line_debounce_ms": c.HalfLineDebounceMs,
		"crank_settle_ms":       c.CrankSettleMs,
		"crank_angle":           c.CrankAngle,
		"lane_change_angle":     c.LaneChangeAngle,
	} {
		if err := checkNonNegative(name, v); err != nil {
			return err
		}
	}

	for name, v := range map[string]*int{
		"cross_line_entry_power": c.CrossLineEntryPower,
		"crank_inner_power":      c.CrankInnerPower,
		"crank_outer_power":      c.CrankOuterPower,
	} {
		if err := checkPower(name, v); err != nil {
			return err
		}
	}

	if c.CrossLineMode != nil {
		switch fsm.CrossLineMode(*c.CrossLineMode) {
		case fsm.CrossLineTimed, fsm.CrossLineGap:
		default:
			return fmt.Errorf("cross_line_mode must be %q or %q, got %q", fsm.CrossLineTimed, fsm.CrossLineGap, *c.CrossLineMode)
		}
	}

	if c.CrankSpeedMultiplier != nil && *c.CrankSpeedMultiplier <= 0 {
		return fmt.Errorf("crank_speed_multiplier must be positive, got %f", *c.CrankSpeedMultiplier)
	}
	if c.ApproachRamp != nil && c.ApproachRamp.DurationMs != 0 && !c.ApproachRamp.Enabled() {
		return fmt.Errorf("approach_ramp needs a positive duration and a floor in [0, 100)")
	}
	if c.ReferenceDistanceMm != nil && *c.ReferenceDistanceMm <= 0 {
		return fmt.Errorf("reference_distance_mm must be positive, got %f", *c.ReferenceDistanceMm)
	}

	if c.Signatures != nil {
		if err := validateSignatures(*c.Signatures); err != nil {
			return err
		}
	}

	for state, ms := range c.StallTimeouts {
		if _, ok := fsm.StallFallback(types.ControlState(state)); !ok {
			return fmt.Errorf("stall_timeouts: state %q has no stall timeout", state)
		}
		if ms < 0 {
			return fmt.Errorf("stall_timeouts: %s must be non-negative, got %d", state, ms)
		}
	}

	for _, b := range c.Breakpoints {
		s := types.ControlState(b)
		if !fsm.IsKnown(s) || s == types.StateHalted || s == types.StateIdle {
			return fmt.Errorf("breakpoints: invalid state %q", b)
		}
	}

	return nil
}

func validateSignatures(sig detect.Signatures) error {
	if sig.LeftGap == 0 || sig.RightGap == 0 {
		return fmt.Errorf("signatures: gap masks must be non-zero")
	}
	for name, s := range map[string]types.Signature{
		"cross_line":          sig.CrossLine,
		"half_line_right":     sig.HalfLineRight,
		"half_line_left":      sig.HalfLineLeft,
		"crank_left":          sig.CrankLeft,
		"crank_right":         sig.CrankRight,
		"on_line":             sig.OnLine,
		"on_line_second_time": sig.OnLineSecondTime,
	} {
		if s.Mask == 0 || len(s.Values) == 0 {
			return fmt.Errorf("signatures: %s needs a mask and at least one value", name)
		}
		for _, v := range s.Values {
			if v == 0 {
				return fmt.Errorf("signatures: %s must not match the empty frame", name)
			}
		}
	}
	return nil
}

// Apply writes the overrides into p.
func (c *ProfileConfig) Apply(p *fsm.Profile) {
	if c.SpeedFactor != nil {
		p.Actuator.SpeedFactor = *c.SpeedFactor
	}
	if c.ServoCenter != nil {
		p.Actuator.ServoCenter = *c.ServoCenter
	}
	if c.HandleStep != nil {
		p.Actuator.HandleStep = *c.HandleStep
	}
	if c.MaxAngle != nil {
		p.Actuator.MaxAngle = *c.MaxAngle
	}
	if c.ServoReversed != nil {
		p.Actuator.Reversed = *c.ServoReversed
	}

	setMs := func(dst *uint32, v *int) {
		if v != nil {
			*dst = uint32(*v)
		}
	}
	setMs(&p.Timing.IdleBlinkMs, c.IdleBlinkMs)
	setMs(&p.Timing.StartBarBlinkMs, c.StartBarBlinkMs)
	setMs(&p.Timing.HaltedBlinkMs, c.HaltedBlinkMs)
	setMs(&p.Timing.CrossLineIgnoreMs, c.CrossLineIgnoreMs)
	setMs(&p.Timing.ShortBreakMs, c.ShortBreakMs)
	setMs(&p.Timing.HalfLineDebounceMs, c.HalfLineDebounceMs)
	setMs(&p.Crank.SettleMs, c.CrankSettleMs)

	if c.CrossLineMode != nil {
		p.CrossLine.Mode = fsm.CrossLineMode(*c.CrossLineMode)
	}
	if c.CrossLineEntryPower != nil {
		p.CrossLine.EntryPower = *c.CrossLineEntryPower
	}

	if c.CrankAngle != nil {
		p.Crank.Angle = *c.CrankAngle
	}
	if c.CrankInnerPower != nil {
		p.Crank.InnerPower = *c.CrankInnerPower
	}
	if c.CrankOuterPower != nil {
		p.Crank.OuterPower = *c.CrankOuterPower
	}
	if c.CrankSpeedScaled != nil {
		p.Crank.SpeedScaled = *c.CrankSpeedScaled
	}
	if c.CrankSpeedMultiplier != nil {
		p.Crank.SpeedMultiplier = *c.CrankSpeedMultiplier
	}
	if c.ApproachRamp != nil {
		p.Crank.ApproachRamp = *c.ApproachRamp
	}

	if c.LaneChangeAngle != nil {
		p.LaneChange.Angle = *c.LaneChangeAngle
	}
	if c.ReferenceDistanceMm != nil {
		p.Speed.ReferenceDistanceMm = *c.ReferenceDistanceMm
	}
	if c.Signatures != nil {
		p.Signatures = *c.Signatures
	}

	if len(c.StallTimeouts) > 0 && p.StallTimeouts == nil {
		p.StallTimeouts = make(map[types.ControlState]uint32)
	}
	for state, ms := range c.StallTimeouts {
		p.StallTimeouts[types.ControlState(state)] = uint32(ms)
	}
	for _, b := range c.Breakpoints {
		if !p.IsBreakpoint(types.ControlState(b)) {
			p.Breakpoints = append(p.Breakpoints, types.ControlState(b))
		}
	}
}

// Resolve builds the base profile, named by the file or by fallback, and
// applies the overrides. A nil config yields the plain base profile.
func (c *ProfileConfig) Resolve(fallback string) (fsm.Profile, error) {
	name := fallback
	if c != nil && c.Profile != nil {
		name = *c.Profile
	}

	p, err := fsm.ProfileByName(name)
	if err != nil {
		return fsm.Profile{}, err
	}
	if c != nil {
		p = p.Clone()
		c.Apply(&p)
	}

	if err := p.Validate(); err != nil {
		return fsm.Profile{}, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return p, nil
}
