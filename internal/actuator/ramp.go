package actuator

// LinearRamp sheds motor power from 100 down to Floor over DurationMs so a
// sharp turn is entered without a torque step.
type LinearRamp struct {
	DurationMs int `json:"duration_ms"`
	Floor      int `json:"floor"`
}

// Enabled reports whether the ramp has a usable shape.
func (r LinearRamp) Enabled() bool {
	return r.DurationMs > 0 && r.Floor >= 0 && r.Floor < 100
}

// Power returns the available power after dwellMs of ramping.
func (r LinearRamp) Power(dwellMs uint32) int {
	if !r.Enabled() {
		return 100
	}
	if int64(dwellMs) > int64(r.DurationMs) {
		return r.Floor
	}

	step := r.DurationMs / (100 - r.Floor)
	if step < 1 {
		step = 1
	}
	p := 100 - int(dwellMs)/step
	if p < r.Floor {
		return r.Floor
	}
	return p
}

// Scale applies a ramp power percentage to a value, truncating toward zero.
func Scale(v, power int) int {
	return v * power / 100
}
