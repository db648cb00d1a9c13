package hardware

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
	"go.uber.org/atomic"

	"line-tracer/internal/actuator"
	"line-tracer/internal/types"
)

func TestPackBits(t *testing.T) {
	assert.Equal(t, uint8(0x80), PackBits([]int{1, 0, 0, 0, 0, 0, 0, 0}))
	assert.Equal(t, uint8(0x01), PackBits([]int{0, 0, 0, 0, 0, 0, 0, 1}))
	assert.Equal(t, uint8(0xe7), PackBits([]int{1, 1, 1, 0, 0, 1, 1, 1}))

	for v := 0; v < 256; v++ {
		assert.Equal(t, uint8(v), PackBits(UnpackBits(uint8(v), 8)))
	}
}

func TestParsePattern(t *testing.T) {
	v, err := ParsePattern("0011_1100")
	require.NoError(t, err)
	assert.Equal(t, uint8(0x3c), v)

	v, err = ParsePattern("1111 1111")
	require.NoError(t, err)
	assert.Equal(t, uint8(0xff), v)

	_, err = ParsePattern("0101")
	assert.Error(t, err)
	_, err = ParsePattern("0101010x")
	assert.Error(t, err)
}

func TestDutyNs(t *testing.T) {
	// Full-scale drive at the 0.7 speed factor: 17201 of 24576 counts
	assert.Equal(t, int64(11198567), DutyNs(17201, 24576, PwmPeriodNs))
	assert.Equal(t, int64(0), DutyNs(-5, 24576, PwmPeriodNs))
	assert.Equal(t, int64(PwmPeriodNs), DutyNs(30000, 24576, PwmPeriodNs))
	assert.Equal(t, int64(0), DutyNs(100, 0, PwmPeriodNs))
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	_, err = PortOptions{DataBits: 9}.SerialMode()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.SerialMode()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.SerialMode()
	assert.Error(t, err)
}

func TestSerialSensorBar(t *testing.T) {
	var clock atomic.Int64
	clock.Store(time.Unix(100, 0).UnixNano())
	now := func() time.Time { return time.Unix(0, clock.Load()) }

	r, w := io.Pipe()
	bar := newSerialSensorBar(r, now)

	raw, err := bar.ReadSensors()
	assert.Error(t, err, "no frame yet")
	assert.Equal(t, uint8(0xff), raw)

	_, err = w.Write([]byte{0x12, 0xe7})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		v, err := bar.ReadSensors()
		return err == nil && v == 0xe7
	}, time.Second, time.Millisecond)

	clock.Add(int64(SerialStaleAfter + time.Millisecond))
	_, err = bar.ReadSensors()
	assert.Error(t, err, "stale frame")

	require.NoError(t, w.Close())
	require.Eventually(t, bar.readErrSet, time.Second, time.Millisecond)
	_, err = bar.ReadSensors()
	assert.ErrorContains(t, err, "stopped")
	assert.NoError(t, bar.Close())
}

func (b *SerialSensorBar) readErrSet() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readErr != nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScript(t *testing.T) {
	path := writeScript(t, `{"segments": [
		{"pattern": "00000000", "button": true, "duration_ms": 5},
		{"pattern": "00011000", "start_bar": true, "duration_ms": 10},
		{"pattern": "11111111", "duration_ms": 3}
	]}`)

	script, err := LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, script.Segments, 3)
	assert.Equal(t, 18, script.TotalMs())
	assert.Equal(t, types.Frame(0x18), script.Segments[1].frame)
}

func TestLoadScriptRejects(t *testing.T) {
	_, err := LoadScript(writeScript(t, `{"segments": []}`))
	assert.Error(t, err)

	_, err = LoadScript(writeScript(t, `{"segments": [{"pattern": "0001", "duration_ms": 1}]}`))
	assert.Error(t, err)

	_, err = LoadScript(writeScript(t, `{"segments": [{"pattern": "00011000", "duration_ms": 0}]}`))
	assert.Error(t, err)

	_, err = LoadScript(filepath.Join(t.TempDir(), "track.yaml"))
	assert.Error(t, err)
}

func TestScriptedIOPlaysSegments(t *testing.T) {
	script := &Script{Segments: []ScriptSegment{
		{Pattern: "00000000", Button: true, DurationMs: 2},
		{Pattern: "00111100", StartBar: true, DurationMs: 3},
	}}
	sim := NewScriptedIO(script)
	require.NoError(t, sim.Initialize())

	pressed, _ := sim.ReadPushButton()
	assert.True(t, pressed)
	raw, _ := sim.ReadSensors()
	assert.Equal(t, uint8(0xff), raw)

	sim.Advance(2)
	assert.Equal(t, 1, sim.Segment())
	raw, _ = sim.ReadSensors()
	assert.Equal(t, uint8(0xc3), raw, "active-low 00111100")
	closed, _ := sim.ReadStartBar()
	assert.True(t, closed)

	select {
	case <-sim.Done():
		t.Fatal("script finished early")
	default:
	}

	sim.Advance(10)
	assert.Equal(t, 1, sim.Segment(), "last segment is held")
	select {
	case <-sim.Done():
	default:
		t.Fatal("expected script to finish")
	}
	sim.Advance(1) // must not close twice
}

func TestScriptedIORecordsOutputs(t *testing.T) {
	sim := NewScriptedIO(&Script{Segments: []ScriptSegment{{Pattern: "00000000", DurationMs: 1}}})

	require.NoError(t, sim.SetServo(1453))
	require.NoError(t, sim.SetMotor(actuator.MotorLeft, true, 500))
	require.NoError(t, sim.SetMotor(actuator.MotorRight, false, 700))
	require.NoError(t, sim.SetIndicator(types.IndicatorBoth))

	out := sim.Outputs()
	assert.Equal(t, 1453, out.Servo)
	assert.Equal(t, [2]int{-500, 700}, out.Motors)
	assert.Equal(t, types.IndicatorBoth, out.Indicator)
	assert.Equal(t, 4, out.Writes)

	assert.Error(t, sim.SetMotor(actuator.Motor(7), false, 1))
}
