package control

import (
	"fmt"
	"sync"
)

// Actuator is an output driven by a duty value.
type Actuator interface {
	SetDuty(duty int) error
}

// Action applies a decoded payload for one feed.
//
// Apply returns the applied value, or an error without side effects when
// the payload cannot be decoded.
type Action interface {
	Apply(feed string, payload []byte) (float64, error)
}

// DutyHandler drives an Actuator from integer payloads.
//
// Values are clamped to [0, maxDuty]. A payload that does not decode
// leaves the actuator untouched.
type DutyHandler struct {
	actuator Actuator
	maxDuty  int
}

// NewDutyHandler creates a DutyHandler. maxDuty is the full-scale value,
// 1023 on the reference boards.
func NewDutyHandler(actuator Actuator, maxDuty int) *DutyHandler {
	return &DutyHandler{actuator: actuator, maxDuty: maxDuty}
}

// Apply implements Action.
func (h *DutyHandler) Apply(_ string, payload []byte) (float64, error) {
	duty, err := ParseInt(payload)
	if err != nil {
		return 0, err
	}

	duty = clamp(duty, 0, h.maxDuty)
	if err := h.actuator.SetDuty(duty); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrActuator, err)
	}
	return float64(duty), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValueLogger records numeric payloads and keeps the last value per feed.
type ValueLogger struct {
	mu   sync.RWMutex
	last map[string]float64
}

// NewValueLogger creates an empty ValueLogger.
func NewValueLogger() *ValueLogger {
	return &ValueLogger{last: make(map[string]float64)}
}

// Apply implements Action.
func (l *ValueLogger) Apply(feed string, payload []byte) (float64, error) {
	v, err := ParseValue(payload)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	l.last[feed] = v
	l.mu.Unlock()
	return v, nil
}

// Last returns the most recent value received on feed.
func (l *ValueLogger) Last(feed string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.last[feed]
	return v, ok
}
