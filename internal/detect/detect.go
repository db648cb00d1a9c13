// Package detect holds the track feature predicates. Every predicate is a
// pure function of one frame; the controller decides when to ask.
package detect

import (
	"line-tracer/internal/sensor"
	"line-tracer/internal/types"
)

// Signatures parameterizes the detectors so that different sensor board
// revisions and track rule sets can share one engine.
type Signatures struct {
	CrossLine        types.Signature `json:"cross_line"`
	LeftGap          types.Mask      `json:"left_gap"`
	RightGap         types.Mask      `json:"right_gap"`
	HalfLineRight    types.Signature `json:"half_line_right"`
	HalfLineLeft     types.Signature `json:"half_line_left"`
	CrankLeft        types.Signature `json:"crank_left"`
	CrankRight       types.Signature `json:"crank_right"`
	OnLine           types.Signature `json:"on_line"`
	OnLineSecondTime types.Signature `json:"on_line_second_time"`
}

// DefaultSignatures returns the signatures of the current sensor board.
func DefaultSignatures() Signatures {
	return Signatures{
		CrossLine: types.Signature{
			Mask:   types.MaskFull,
			Values: []types.Frame{0xff, 0x7e, 0x3c},
		},
		LeftGap:  types.MaskLeftGap,
		RightGap: types.MaskRightGap,
		HalfLineRight: types.Signature{
			Mask:   types.MaskFull,
			Values: []types.Frame{0x1f},
		},
		HalfLineLeft: types.Signature{
			Mask:   types.MaskFull,
			Values: []types.Frame{0xf8},
		},
		CrankLeft: types.Signature{
			Mask:   types.MaskLeftArm,
			Values: []types.Frame{0xe0},
		},
		CrankRight: types.Signature{
			Mask:   types.MaskRightArm,
			Values: []types.Frame{0x07},
		},
		OnLine: types.Signature{
			Mask:   types.MaskCenter,
			Values: []types.Frame{0xe7},
		},
		OnLineSecondTime: types.Signature{
			Mask:   types.MaskCenter,
			Values: []types.Frame{0xe7, 0x67, 0xe6, 0xc7, 0xe3},
		},
	}
}

type Detectors struct {
	sig Signatures
}

func New(sig Signatures) Detectors {
	return Detectors{sig: sig}
}

func (d Detectors) Signatures() Signatures {
	return d.sig
}

func (d Detectors) CrossLine(f types.Frame) bool {
	return d.sig.CrossLine.Matches(f)
}

// CrossLineGap reports whether the vehicle sits between the two bars of a
// cross-line: at least one side's gap sensors read background.
func (d Detectors) CrossLineGap(f types.Frame) bool {
	return sensor.Match(f, d.sig.LeftGap) == 0 || sensor.Match(f, d.sig.RightGap) == 0
}

func (d Detectors) HalfLineRight(f types.Frame) bool {
	return d.sig.HalfLineRight.Matches(f)
}

func (d Detectors) HalfLineLeft(f types.Frame) bool {
	return d.sig.HalfLineLeft.Matches(f)
}

func (d Detectors) CrankLeft(f types.Frame) bool {
	return d.sig.CrankLeft.Matches(f)
}

func (d Detectors) CrankRight(f types.Frame) bool {
	return d.sig.CrankRight.Matches(f)
}

func (d Detectors) OnLine(f types.Frame) bool {
	return d.sig.OnLine.Matches(f)
}

// OnLineSecondTime accepts the bounce patterns seen while a bar is first
// crossed, in addition to the exact OnLine pattern.
func (d Detectors) OnLineSecondTime(f types.Frame) bool {
	return d.sig.OnLineSecondTime.Matches(f)
}

// SecondLine confirms the second bar of a cross-line marking.
func (d Detectors) SecondLine(f types.Frame) bool {
	return d.CrossLine(f) || d.OnLineSecondTime(f)
}

func (d Detectors) AllBackground(f types.Frame) bool {
	return f == 0
}

// Lookup classifies the center band of the frame against a table.
func (d Detectors) Lookup(table types.LookupTable, f types.Frame) (types.LookupEntry, bool) {
	return table.Find(f, types.MaskCenter)
}
