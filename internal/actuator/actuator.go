// Package actuator provides the outputs driven by duty control messages.
package actuator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

var (
	// ErrUnsupported is returned by New for unknown actuator types.
	ErrUnsupported = errors.New("actuator: unsupported type")

	// ErrOutOfRange is returned when a duty is outside [0, maxDuty].
	ErrOutOfRange = errors.New("actuator: duty out of range")
)

// Actuator is an output with a duty value in [0, maxDuty].
type Actuator interface {
	SetDuty(duty int) error
	Duty() int
	Close() error
}

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
}

// New builds the actuator described by cfg.
func New(cfg config.ActuatorConfig, logger Logger) (Actuator, error) {
	switch cfg.Type {
	case "log":
		return NewLog(cfg.MaxDuty, logger), nil
	case "pwm":
		return OpenPWM(cfg.Path, cfg.PeriodNS, cfg.MaxDuty)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Type)
	}
}

// Log is an actuator for hosts without PWM hardware. It only logs and
// remembers the duty.
type Log struct {
	mu      sync.Mutex
	duty    int
	maxDuty int
	logger  Logger
}

// NewLog creates a Log actuator.
func NewLog(maxDuty int, logger Logger) *Log {
	return &Log{maxDuty: maxDuty, logger: logger}
}

// SetDuty implements Actuator.
func (l *Log) SetDuty(duty int) error {
	if duty < 0 || duty > l.maxDuty {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, duty, l.maxDuty)
	}
	l.mu.Lock()
	l.duty = duty
	l.mu.Unlock()
	if l.logger != nil {
		l.logger.Info("duty set", "duty", duty, "max_duty", l.maxDuty)
	}
	return nil
}

// Duty implements Actuator.
func (l *Log) Duty() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.duty
}

// Close implements Actuator.
func (l *Log) Close() error { return nil }

// PWM drives a Linux sysfs PWM channel such as /sys/class/pwm/pwmchip0/pwm0.
// The channel must already be exported.
type PWM struct {
	mu       sync.Mutex
	dir      string
	periodNS int
	maxDuty  int
	duty     int
}

// OpenPWM configures the period and enables the channel.
func OpenPWM(dir string, periodNS, maxDuty int) (*PWM, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("pwm channel %s: %w", dir, err)
	}

	p := &PWM{dir: dir, periodNS: periodNS, maxDuty: maxDuty}
	if err := p.write("duty_cycle", 0); err != nil {
		return nil, err
	}
	if err := p.write("period", periodNS); err != nil {
		return nil, err
	}
	if err := p.write("enable", 1); err != nil {
		return nil, err
	}
	return p, nil
}

// SetDuty scales duty to nanoseconds of the period and writes duty_cycle.
func (p *PWM) SetDuty(duty int) error {
	if duty < 0 || duty > p.maxDuty {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrOutOfRange, duty, p.maxDuty)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ns := int(int64(p.periodNS) * int64(duty) / int64(p.maxDuty))
	if err := p.write("duty_cycle", ns); err != nil {
		return err
	}
	p.duty = duty
	return nil
}

// Duty implements Actuator.
func (p *PWM) Duty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Close disables the channel.
func (p *PWM) Close() error {
	return p.write("enable", 0)
}

func (p *PWM) write(attr string, v int) error {
	path := filepath.Join(p.dir, attr)
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)), 0); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
