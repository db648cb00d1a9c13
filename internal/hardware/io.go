package hardware

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"line-tracer/internal/actuator"
	"line-tracer/internal/types"
)

// SensorReader supplies raw sensor bar bytes when the bar is not wired to
// GPIO lines.
type SensorReader interface {
	ReadSensors() (uint8, error)
	Close() error
}

type LinuxHardwareIO struct {
	logger    *log.Logger
	chipName  string
	chip      *gpiocdev.Chip
	sensors   *gpiocdev.Lines
	leds      *gpiocdev.Lines
	lines     map[string]*gpiocdev.Line
	sensorBar SensorReader
	pwm       *SysfsPWM
	mu        sync.Mutex
	levels    []int
}

// NewLinuxHardwareIO creates the GPIO and PWM backend. pwmCycle is the
// number of timer counts in one PWM period.
func NewLinuxHardwareIO(pwmCycle int) *LinuxHardwareIO {
	return &LinuxHardwareIO{
		logger:   log.New(log.Writer(), "HardwareIO: ", log.LstdFlags),
		chipName: GpioChip,
		lines:    make(map[string]*gpiocdev.Line),
		pwm:      NewSysfsPWM(PwmChip, PwmPeriodNs, pwmCycle),
		levels:   make([]int, len(SensorLines)),
	}
}

// WithSensorBar replaces the GPIO sensor lines with an external reader,
// such as a serial sensor board.
func (io *LinuxHardwareIO) WithSensorBar(bar SensorReader) *LinuxHardwareIO {
	io.sensorBar = bar
	return io
}

func (io *LinuxHardwareIO) Initialize() error {
	io.logger.Printf("Initializing hardware IO")

	chip, err := gpiocdev.NewChip(io.chipName, gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return fmt.Errorf("failed to open GPIO chip %s: %w", io.chipName, err)
	}
	io.chip = chip

	if io.sensorBar == nil {
		io.sensors, err = chip.RequestLines(SensorLines, gpiocdev.AsInput)
		if err != nil {
			return fmt.Errorf("failed to request sensor lines %v: %w", SensorLines, err)
		}
		io.logger.Printf("Configured sensor bar on lines %v", SensorLines)
	} else {
		io.logger.Printf("Using external sensor bar")
	}

	for name, offset := range DiMappings {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.AsActiveLow, gpiocdev.WithPullUp}
		if name == "push_button" {
			opts = append(opts, gpiocdev.WithDebounce(ButtonDebounce))
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			return fmt.Errorf("failed to request DI %s (line %d): %w", name, offset, err)
		}
		io.lines[name] = line
		io.logger.Printf("Configured DI %s: line=%d", name, offset)
	}

	io.leds, err = chip.RequestLines(
		[]int{DoMappings["led0"], DoMappings["led1"]},
		gpiocdev.AsOutput(0, 0),
		gpiocdev.AsActiveLow)
	if err != nil {
		return fmt.Errorf("failed to request LED lines: %w", err)
	}

	for _, name := range []string{"motor_left_dir", "motor_right_dir"} {
		line, err := chip.RequestLine(DoMappings[name], gpiocdev.AsOutput(0))
		if err != nil {
			return fmt.Errorf("failed to request DO %s (line %d): %w", name, DoMappings[name], err)
		}
		io.lines[name] = line
		io.logger.Printf("Configured DO %s: line=%d", name, DoMappings[name])
	}

	for _, ch := range []int{ServoChannel, LeftMotorChannel, RightMotorChannel} {
		if err := io.pwm.Export(ch); err != nil {
			return fmt.Errorf("failed to initialize PWM: %w", err)
		}
	}

	return nil
}

// ReadSensors returns the raw, active-low sensor byte, leftmost sensor in
// bit 7.
func (io *LinuxHardwareIO) ReadSensors() (uint8, error) {
	if io.sensorBar != nil {
		return io.sensorBar.ReadSensors()
	}
	if io.sensors == nil {
		return 0xff, fmt.Errorf("sensor lines not requested")
	}

	io.mu.Lock()
	defer io.mu.Unlock()
	if err := io.sensors.Values(io.levels); err != nil {
		return 0xff, fmt.Errorf("failed to read sensor lines: %w", err)
	}
	return PackBits(io.levels), nil
}

func (io *LinuxHardwareIO) readInput(name string) (bool, error) {
	line, ok := io.lines[name]
	if !ok {
		return false, fmt.Errorf("unknown digital input channel: %s", name)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("failed to read DI %s: %w", name, err)
	}
	return v == 1, nil
}

func (io *LinuxHardwareIO) ReadStartBar() (bool, error) {
	return io.readInput("start_bar")
}

func (io *LinuxHardwareIO) ReadPushButton() (bool, error) {
	return io.readInput("push_button")
}

func (io *LinuxHardwareIO) SetIndicator(pattern types.Indicator) error {
	if io.leds == nil {
		return fmt.Errorf("LED lines not requested")
	}
	values := []int{
		boolToInt(pattern&types.IndicatorLED0 != 0),
		boolToInt(pattern&types.IndicatorLED1 != 0),
	}
	if err := io.leds.SetValues(values); err != nil {
		return fmt.Errorf("failed to set LEDs %v: %w", values, err)
	}
	return nil
}

func (io *LinuxHardwareIO) SetServo(compare int) error {
	return io.pwm.SetCounts(ServoChannel, compare)
}

func (io *LinuxHardwareIO) SetMotor(m actuator.Motor, reverse bool, duty int) error {
	dir, ch := "motor_left_dir", LeftMotorChannel
	if m == actuator.MotorRight {
		dir, ch = "motor_right_dir", RightMotorChannel
	}

	line, ok := io.lines[dir]
	if !ok {
		return fmt.Errorf("unknown digital output channel: %s", dir)
	}
	if err := line.SetValue(boolToInt(reverse)); err != nil {
		return fmt.Errorf("failed to set DO %s=%v: %w", dir, reverse, err)
	}
	return io.pwm.SetCounts(ch, duty)
}

func (io *LinuxHardwareIO) Cleanup() {
	io.logger.Printf("Cleaning up hardware resources")

	io.pwm.Close()
	io.logger.Printf("Closed PWM channels")

	if io.sensorBar != nil {
		if err := io.sensorBar.Close(); err != nil {
			io.logger.Printf("Failed to close sensor bar: %v", err)
		}
	}
	if io.sensors != nil {
		io.sensors.Close()
	}
	if io.leds != nil {
		io.leds.SetValues([]int{0, 0})
		io.leds.Close()
	}
	for name, line := range io.lines {
		line.Close()
		io.logger.Printf("Closed GPIO line for %s", name)
	}
	if io.chip != nil {
		io.chip.Close()
		io.logger.Printf("Closed GPIO chip %s", io.chipName)
	}

	io.logger.Printf("Hardware cleanup complete")
}
