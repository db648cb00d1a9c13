package types

import "fmt"

// Frame is one sample of the sensor bar after inversion. Bit 7 is the
// leftmost sensor; a set bit means the sensor sees the line.
type Frame uint8

// Mask selects which sensors take part in a comparison.
type Mask uint8

// Sensor masks. X = ignored, O = compared.
const (
	MaskFull       Mask = 0xff // O O O O  O O O O
	MaskCenter     Mask = 0xe7 // O O O X  X O O O
	MaskCenterBand Mask = 0x66 // X O O X  X O O X
	MaskLeftArm    Mask = 0xe0 // O O O X  X X X X
	MaskRightArm   Mask = 0x07 // X X X X  X O O O
	MaskLeftGap    Mask = 0x60 // X O O X  X X X X
	MaskRightGap   Mask = 0x06 // X X X X  X O O X
	MaskLeftHalf   Mask = 0xf0 // O O O O  X X X X
	MaskRightHalf  Mask = 0x0f // X X X X  O O O O
)

func (f Frame) String() string {
	return fmt.Sprintf("%08b", uint8(f))
}

// Signature matches a frame when the masked frame equals one of Values.
type Signature struct {
	Mask   Mask    `json:"mask"`
	Values []Frame `json:"values"`
}

func (s Signature) Matches(f Frame) bool {
	masked := f & Frame(s.Mask)
	for _, v := range s.Values {
		if masked == v {
			return true
		}
	}
	return false
}

// Command is one cycle's actuator request. Angle is in degrees (positive
// steers right), powers are signed percentages.
type Command struct {
	Angle int
	Left  int
	Right int
}

func (c Command) String() string {
	return fmt.Sprintf("angle=%d left=%d right=%d", c.Angle, c.Left, c.Right)
}

// Indicator is the status LED pattern: bit 0 drives LED0, bit 1 LED1.
type Indicator uint8

const (
	IndicatorOff  Indicator = 0x0
	IndicatorLED0 Indicator = 0x1
	IndicatorLED1 Indicator = 0x2
	IndicatorBoth Indicator = 0x3
)

// LookupEntry maps a masked sensor pattern to a command. Indicator and Next
// are optional; Ramped entries are scaled by the crank approach ramp.
type LookupEntry struct {
	Key       Frame
	Command   Command
	Indicator *Indicator
	Next      ControlState
	Ramped    bool
}

type LookupTable []LookupEntry

// Find returns the first entry whose key equals the frame masked with mask.
func (t LookupTable) Find(f Frame, mask Mask) (LookupEntry, bool) {
	masked := f & Frame(mask)
	for _, e := range t {
		if e.Key == masked {
			return e, true
		}
	}
	return LookupEntry{}, false
}

// Led returns a pointer usable as LookupEntry.Indicator.
func Led(i Indicator) *Indicator {
	return &i
}
