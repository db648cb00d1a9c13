package hardware

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// SysfsPWM drives PWM channels through the kernel sysfs interface. Duty is
// given in timer counts of the controller board and converted to nanoseconds
// against the configured period.
type SysfsPWM struct {
	chip     string
	periodNs int64
	cycle    int // counts per period
	mu       sync.Mutex
	duty     map[int]int // channel -> open duty_cycle fd
}

func NewSysfsPWM(chip string, periodNs int64, cycle int) *SysfsPWM {
	return &SysfsPWM{
		chip:     chip,
		periodNs: periodNs,
		cycle:    cycle,
		duty:     make(map[int]int),
	}
}

// DutyNs converts timer counts to a duty cycle in nanoseconds, clamped to
// the period.
func DutyNs(counts, cycle int, periodNs int64) int64 {
	if counts <= 0 || cycle <= 0 {
		return 0
	}
	ns := int64(counts) * periodNs / int64(cycle)
	if ns > periodNs {
		return periodNs
	}
	return ns
}

func writeSysfs(path, value string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer unix.Close(fd)

	if _, err := unix.Write(fd, []byte(value)); err != nil {
		return fmt.Errorf("failed to write %q to %s: %w", value, path, err)
	}
	return nil
}

// Export makes a channel available, sets its period and enables it with a
// zero duty cycle.
func (p *SysfsPWM) Export(channel int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.duty[channel]; ok {
		return nil
	}

	dir := fmt.Sprintf("%s/pwm%d", p.chip, channel)
	if err := writeSysfs(p.chip+"/export", strconv.Itoa(channel)); err != nil && !errors.Is(err, unix.EBUSY) {
		return fmt.Errorf("failed to export PWM channel %d: %w", channel, err)
	}

	if err := writeSysfs(dir+"/duty_cycle", "0"); err != nil {
		log.Printf("Resetting duty of PWM channel %d: %v", channel, err)
	}
	if err := writeSysfs(dir+"/period", strconv.FormatInt(p.periodNs, 10)); err != nil {
		return fmt.Errorf("failed to set PWM period: %w", err)
	}

	fd, err := unix.Open(dir+"/duty_cycle", unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("failed to open PWM duty for channel %d: %w", channel, err)
	}

	if err := writeSysfs(dir+"/enable", "1"); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to enable PWM channel %d: %w", channel, err)
	}

	p.duty[channel] = fd
	log.Printf("Exported PWM channel %d (period %d ns)", channel, p.periodNs)
	return nil
}

// SetCounts sets the duty of an exported channel in timer counts.
func (p *SysfsPWM) SetCounts(channel, counts int) error {
	p.mu.Lock()
	fd, ok := p.duty[channel]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("PWM channel %d not exported", channel)
	}

	ns := DutyNs(counts, p.cycle, p.periodNs)
	if _, err := unix.Pwrite(fd, []byte(strconv.FormatInt(ns, 10)), 0); err != nil {
		return fmt.Errorf("failed to set PWM channel %d duty %d ns: %w", channel, ns, err)
	}
	return nil
}

// Close zeroes and disables every exported channel.
func (p *SysfsPWM) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for channel, fd := range p.duty {
		if _, err := unix.Pwrite(fd, []byte("0"), 0); err != nil {
			log.Printf("Failed to zero PWM channel %d: %v", channel, err)
		}
		unix.Close(fd)

		dir := fmt.Sprintf("%s/pwm%d", p.chip, channel)
		if err := writeSysfs(dir+"/enable", "0"); err != nil {
			log.Printf("Failed to disable PWM channel %d: %v", channel, err)
		}
		delete(p.duty, channel)
	}
}
