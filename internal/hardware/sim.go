package hardware

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"line-tracer/internal/actuator"
	"line-tracer/internal/types"
)

const maxScriptSize = 1 << 20

// ScriptSegment holds the inputs for a stretch of simulated track.
type ScriptSegment struct {
	Pattern    string `json:"pattern"` // 8 characters, 1 = sensor over the line
	StartBar   bool   `json:"start_bar"`
	Button     bool   `json:"button"`
	DurationMs int    `json:"duration_ms"`

	frame types.Frame
}

type Script struct {
	Segments []ScriptSegment `json:"segments"`
}

// LoadScript reads and validates a JSON track script.
func LoadScript(path string) (*Script, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return nil, fmt.Errorf("script file must have .json extension: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat script %s: %w", path, err)
	}
	if info.Size() > maxScriptSize {
		return nil, fmt.Errorf("script %s too large: %d bytes", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script %s: %w", path, err)
	}
	return &s, nil
}

// Validate parses every pattern and checks the durations.
func (s *Script) Validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("script has no segments")
	}
	for i := range s.Segments {
		seg := &s.Segments[i]
		v, err := ParsePattern(seg.Pattern)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		if seg.DurationMs <= 0 {
			return fmt.Errorf("segment %d: duration must be positive, got %d", i, seg.DurationMs)
		}
		seg.frame = types.Frame(v)
	}
	return nil
}

// TotalMs is the scripted run length.
func (s *Script) TotalMs() int {
	total := 0
	for _, seg := range s.Segments {
		total += seg.DurationMs
	}
	return total
}

// SimOutputs is the last state written to the simulated actuators.
type SimOutputs struct {
	Servo     int
	Motors    [2]int // signed duty, negative in reverse
	Indicator types.Indicator
	Writes    int
}

// ScriptedIO replays a script in place of real hardware. Time moves only
// through Advance, which the controller calls from its tick hook, so a run
// is reproducible.
type ScriptedIO struct {
	logger *log.Logger
	script *Script

	mu      sync.Mutex
	seg     int
	offset  int
	outputs SimOutputs

	done     chan struct{}
	doneOnce sync.Once
}

func NewScriptedIO(script *Script) *ScriptedIO {
	return &ScriptedIO{
		logger: log.New(log.Writer(), "SimIO: ", log.LstdFlags),
		script: script,
		done:   make(chan struct{}),
	}
}

func (s *ScriptedIO) Initialize() error {
	if err := s.script.Validate(); err != nil {
		return fmt.Errorf("failed to initialize simulator: %w", err)
	}
	s.logger.Printf("Simulating %d segments, %d ms", len(s.script.Segments), s.script.TotalMs())
	return nil
}

func (s *ScriptedIO) Cleanup() {
	s.logger.Printf("Simulation stopped in segment %d", s.Segment())
}

// Advance moves the script forward by n milliseconds. The last segment is
// held once the script has run out, and Done is closed.
func (s *ScriptedIO) Advance(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offset += n
	for s.offset >= s.script.Segments[s.seg].DurationMs {
		if s.seg == len(s.script.Segments)-1 {
			s.offset = s.script.Segments[s.seg].DurationMs
			s.doneOnce.Do(func() { close(s.done) })
			return
		}
		s.offset -= s.script.Segments[s.seg].DurationMs
		s.seg++
	}
}

// Done is closed when the script has played out.
func (s *ScriptedIO) Done() <-chan struct{} {
	return s.done
}

func (s *ScriptedIO) Segment() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seg
}

func (s *ScriptedIO) current() ScriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script.Segments[s.seg]
}

// ReadSensors presents the scripted pattern on an active-low bus.
func (s *ScriptedIO) ReadSensors() (uint8, error) {
	return ^uint8(s.current().frame), nil
}

func (s *ScriptedIO) ReadStartBar() (bool, error) {
	return s.current().StartBar, nil
}

func (s *ScriptedIO) ReadPushButton() (bool, error) {
	return s.current().Button, nil
}

func (s *ScriptedIO) SetIndicator(pattern types.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs.Indicator = pattern
	s.outputs.Writes++
	return nil
}

func (s *ScriptedIO) SetServo(compare int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs.Servo = compare
	s.outputs.Writes++
	return nil
}

func (s *ScriptedIO) SetMotor(m actuator.Motor, reverse bool, duty int) error {
	if m != actuator.MotorLeft && m != actuator.MotorRight {
		return fmt.Errorf("unknown motor %v", m)
	}
	if reverse {
		duty = -duty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs.Motors[m] = duty
	s.outputs.Writes++
	return nil
}

func (s *ScriptedIO) Outputs() SimOutputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputs
}
