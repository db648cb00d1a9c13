package hardware

import (
	"fmt"
	"strconv"
	"strings"
)

// PackBits packs line levels into a byte, first level in bit 7.
func PackBits(levels []int) uint8 {
	var v uint8
	for i, level := range levels {
		if i >= 8 {
			break
		}
		if level != 0 {
			v |= 0x80 >> uint(i)
		}
	}
	return v
}

// UnpackBits is the inverse of PackBits for n lines.
func UnpackBits(v uint8, n int) []int {
	levels := make([]int, n)
	for i := 0; i < n && i < 8; i++ {
		if v&(0x80>>uint(i)) != 0 {
			levels[i] = 1
		}
	}
	return levels
}

// ParsePattern reads an eight-character sensor pattern such as "00111100",
// where 1 is a sensor over the line. Spaces and underscores are ignored.
func ParsePattern(s string) (uint8, error) {
	clean := strings.NewReplacer(" ", "", "_", "").Replace(s)
	if len(clean) != 8 {
		return 0, fmt.Errorf("pattern %q must have 8 bits", s)
	}
	v, err := strconv.ParseUint(clean, 2, 8)
	if err != nil {
		return 0, fmt.Errorf("failed parsing pattern %q: %w", s, err)
	}
	return uint8(v), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
