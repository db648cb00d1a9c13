package hardware

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/atomic"
)

// PortOptions describes the serial connection to a sensor board that
// streams one raw sensor byte per sample.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for any unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// SerialMode converts the port options into the serial.Mode structure
// required by go.bug.st/serial.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	default:
		mode.Parity = serial.NoParity
	}
	return mode, nil
}

// SerialSensorBar keeps the most recent byte received from a sensor board.
// A background reader drains the port so ReadSensors never blocks.
type SerialSensorBar struct {
	port     io.ReadCloser
	latest   atomic.Uint32
	received atomic.Int64 // unix nanos of the latest byte, 0 before the first
	staleAge time.Duration
	now      func() time.Time

	mu      sync.Mutex
	readErr error
	done    chan struct{}
}

// OpenSerialSensorBar opens path with opts and starts reading.
func OpenSerialSensorBar(path string, opts PortOptions) (*SerialSensorBar, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", path, err)
	}

	log.Printf("Opened serial sensor bar %s at %d baud", path, mode.BaudRate)
	return NewSerialSensorBar(port), nil
}

// NewSerialSensorBar starts reading raw frames from port.
func NewSerialSensorBar(port io.ReadCloser) *SerialSensorBar {
	return newSerialSensorBar(port, time.Now)
}

func newSerialSensorBar(port io.ReadCloser, now func() time.Time) *SerialSensorBar {
	b := &SerialSensorBar{
		port:     port,
		staleAge: SerialStaleAfter,
		now:      now,
		done:     make(chan struct{}),
	}
	b.latest.Store(0xff)
	go b.readLoop()
	return b
}

func (b *SerialSensorBar) readLoop() {
	defer close(b.done)

	buf := make([]byte, 64)
	for {
		n, err := b.port.Read(buf)
		if n > 0 {
			b.latest.Store(uint32(buf[n-1]))
			b.received.Store(b.now().UnixNano())
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("Serial sensor bar read failed: %v", err)
			}
			b.mu.Lock()
			b.readErr = err
			b.mu.Unlock()
			return
		}
	}
}

// ReadSensors returns the latest raw byte. A frame older than the stale
// age is reported as an error alongside the all-background value.
func (b *SerialSensorBar) ReadSensors() (uint8, error) {
	b.mu.Lock()
	readErr := b.readErr
	b.mu.Unlock()
	if readErr != nil {
		return 0xff, fmt.Errorf("serial sensor bar stopped: %w", readErr)
	}

	at := b.received.Load()
	if at == 0 {
		return 0xff, fmt.Errorf("no sensor frame received yet")
	}
	if age := b.now().Sub(time.Unix(0, at)); age > b.staleAge {
		return 0xff, fmt.Errorf("sensor frame is %v old", age.Round(time.Millisecond))
	}
	return uint8(b.latest.Load()), nil
}

// Close closes the port and waits for the reader to stop.
func (b *SerialSensorBar) Close() error {
	err := b.port.Close()
	<-b.done
	return err
}
