package actuator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"line-tracer/internal/types"
)

type motorWrite struct {
	reverse bool
	duty    int
}

type fakeDriver struct {
	servo    []int
	motors   map[Motor][]motorWrite
	servoErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{motors: make(map[Motor][]motorWrite)}
}

func (d *fakeDriver) SetServo(compare int) error {
	d.servo = append(d.servo, compare)
	return d.servoErr
}

func (d *fakeDriver) SetMotor(m Motor, reverse bool, duty int) error {
	d.motors[m] = append(d.motors[m], motorWrite{reverse, duty})
	return nil
}

func TestSteeringClamp(t *testing.T) {
	drv := newFakeDriver()
	a := New(drv, DefaultConfig())

	assert.Equal(t, 45, a.ClampAngle(200))
	assert.Equal(t, -45, a.ClampAngle(-200))
	assert.Equal(t, 15, a.ClampAngle(15))

	require.NoError(t, a.SetSteering(200))
	require.NoError(t, a.SetSteering(-200))
	require.NoError(t, a.SetSteering(0))
	assert.Equal(t, []int{2038 - 45*13, 2038 + 45*13, 2038}, drv.servo)
}

func TestReversedServo(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reversed = true
	a := New(newFakeDriver(), cfg)
	assert.Equal(t, 2038+10*13, a.ServoCompare(10))
}

func TestDrivePowerScaling(t *testing.T) {
	drv := newFakeDriver()
	a := New(drv, DefaultConfig())

	require.NoError(t, a.SetDrivePower(100, -50))
	// 100 * 0.7 = 70, -50 * 0.7 = -35
	assert.Equal(t, []motorWrite{{false, 24574 * 70 / 100}}, drv.motors[MotorLeft])
	assert.Equal(t, []motorWrite{{true, 24574 * 35 / 100}}, drv.motors[MotorRight])

	assert.Equal(t, 70, a.ScalePower(250))
	assert.Equal(t, -70, a.ScalePower(-250))
	assert.Equal(t, 5, a.ScalePower(8))
	assert.Equal(t, types.Command{Angle: 0, Left: 100, Right: -50}, a.Last())
}

func TestApplyReportsServoErrorButStillDrives(t *testing.T) {
	drv := newFakeDriver()
	drv.servoErr = errors.New("pwm export missing")
	a := New(drv, DefaultConfig())

	err := a.Apply(types.Command{Angle: 10, Left: 40, Right: 40})
	require.Error(t, err)
	assert.Len(t, drv.motors[MotorLeft], 1)
	assert.Len(t, drv.motors[MotorRight], 1)
}

func TestStop(t *testing.T) {
	drv := newFakeDriver()
	a := New(drv, DefaultConfig())
	require.NoError(t, a.Apply(types.Command{Angle: 30, Left: 60, Right: 40}))
	require.NoError(t, a.Stop())

	assert.Equal(t, types.Command{}, a.Last())
	assert.Equal(t, 2038, drv.servo[len(drv.servo)-1])
	assert.Equal(t, motorWrite{false, 0}, drv.motors[MotorLeft][1])
}

func TestLinearRamp(t *testing.T) {
	r := LinearRamp{DurationMs: 300, Floor: 10}
	// step = 300 / 90 = 3 ms per percent
	assert.Equal(t, 100, r.Power(0))
	assert.Equal(t, 100, r.Power(2))
	assert.Equal(t, 99, r.Power(3))
	assert.Equal(t, 50, r.Power(150))
	assert.Equal(t, 10, r.Power(270))
	assert.Equal(t, 10, r.Power(300))
	assert.Equal(t, 10, r.Power(5000))

	var off LinearRamp
	assert.False(t, off.Enabled())
	assert.Equal(t, 100, off.Power(1000))

	assert.Equal(t, 7, Scale(15, 50))
	assert.Equal(t, -7, Scale(-15, 50))
}
