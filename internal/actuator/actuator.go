// Package actuator maps logical steering angles and drive powers onto the
// servo and motor PWM channels.
package actuator

import (
	"fmt"

	"line-tracer/internal/types"
)

type Motor int

const (
	MotorLeft Motor = iota
	MotorRight
)

func (m Motor) String() string {
	if m == MotorLeft {
		return "left"
	}
	return "right"
}

// Driver is the PWM/direction-pin collaborator. Compare and duty values are
// in timer counts of one PWM cycle.
type Driver interface {
	SetServo(compare int) error
	SetMotor(m Motor, reverse bool, duty int) error
}

type Config struct {
	PWMCycle    int     `json:"pwm_cycle"`    // timer counts per PWM period (16 ms)
	ServoCenter int     `json:"servo_center"` // compare value for straight ahead
	HandleStep  int     `json:"handle_step"`  // counts per degree
	MaxAngle    int     `json:"max_angle"`    // steering limit in degrees
	SpeedFactor float64 `json:"speed_factor"` // global power ceiling, <= 1.0
	Reversed    bool    `json:"reversed"`     // servo mounted mirrored
}

func DefaultConfig() Config {
	return Config{
		PWMCycle:    24575,
		ServoCenter: 2038,
		HandleStep:  13,
		MaxAngle:    45,
		SpeedFactor: 0.7,
	}
}

type Actuator struct {
	cfg    Config
	driver Driver
	last   types.Command
}

func New(driver Driver, cfg Config) *Actuator {
	return &Actuator{cfg: cfg, driver: driver}
}

func (a *Actuator) Config() Config {
	return a.cfg
}

// ClampAngle limits an angle to the configured maximum magnitude.
func (a *Actuator) ClampAngle(angle int) int {
	if angle > a.cfg.MaxAngle {
		return a.cfg.MaxAngle
	}
	if angle < -a.cfg.MaxAngle {
		return -a.cfg.MaxAngle
	}
	return angle
}

// ServoCompare returns the servo compare value for an angle after clamping.
func (a *Actuator) ServoCompare(angle int) int {
	angle = a.ClampAngle(angle)
	if a.cfg.Reversed {
		return a.cfg.ServoCenter + angle*a.cfg.HandleStep
	}
	return a.cfg.ServoCenter - angle*a.cfg.HandleStep
}

// ScalePower clamps p to [-100,100] and applies the global speed factor.
// The result is truncated toward zero.
func (a *Actuator) ScalePower(p int) int {
	if p > 100 {
		p = 100
	}
	if p < -100 {
		p = -100
	}
	return int(float64(p) * a.cfg.SpeedFactor)
}

// MotorDuty maps a signed scaled power to a direction flag and duty count.
func (a *Actuator) MotorDuty(scaled int) (reverse bool, duty int) {
	if scaled < 0 {
		return true, (a.cfg.PWMCycle - 1) * -scaled / 100
	}
	return false, (a.cfg.PWMCycle - 1) * scaled / 100
}

func (a *Actuator) SetSteering(angle int) error {
	a.last.Angle = angle
	if err := a.driver.SetServo(a.ServoCompare(angle)); err != nil {
		return fmt.Errorf("failed to set steering %d: %w", angle, err)
	}
	return nil
}

func (a *Actuator) SetDrivePower(left, right int) error {
	a.last.Left, a.last.Right = left, right

	rev, duty := a.MotorDuty(a.ScalePower(left))
	if err := a.driver.SetMotor(MotorLeft, rev, duty); err != nil {
		return fmt.Errorf("failed to set left motor %d: %w", left, err)
	}
	rev, duty = a.MotorDuty(a.ScalePower(right))
	if err := a.driver.SetMotor(MotorRight, rev, duty); err != nil {
		return fmt.Errorf("failed to set right motor %d: %w", right, err)
	}
	return nil
}

// Apply sends a full command. Both halves are attempted even if the first
// fails.
func (a *Actuator) Apply(c types.Command) error {
	steerErr := a.SetSteering(c.Angle)
	driveErr := a.SetDrivePower(c.Left, c.Right)
	if steerErr != nil {
		return steerErr
	}
	return driveErr
}

// Stop centers the steering and cuts both motors.
func (a *Actuator) Stop() error {
	return a.Apply(types.Command{})
}

// Last returns the most recent logical command, before clamping.
func (a *Actuator) Last() types.Command {
	return a.last
}
