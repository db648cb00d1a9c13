package hardware

import "time"

const (
	Consumer = "line-tracer"

	GpioChip = "gpiochip0"
	PwmChip  = "/sys/class/pwm/pwmchip0"

	// The PWM frame matches the servo refresh of the kit board:
	// 24576 counts of 16 ms.
	PwmPeriodNs = 16000000

	ServoChannel      = 0
	LeftMotorChannel  = 1
	RightMotorChannel = 2

	ButtonDebounce = 10 * time.Millisecond

	// SerialStaleAfter is how long a serial sensor frame stays valid.
	SerialStaleAfter = 50 * time.Millisecond
)

// SensorLines lists the sensor bar line offsets, leftmost sensor (bit 7)
// first.
var SensorLines = []int{16, 17, 18, 19, 20, 21, 22, 23}

// DiMappings are the single-line inputs. Both are active-low on the board.
var DiMappings = map[string]int{
	"start_bar":   24,
	"push_button": 25,
}

// DoMappings are the outputs. The LEDs are active-low; the direction lines
// select reverse when high.
var DoMappings = map[string]int{
	"led0":            5,
	"led1":            6,
	"motor_left_dir":  12,
	"motor_right_dir": 13,
}
