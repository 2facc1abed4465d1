package scheduler

import "time"

// Clock suspends the loop between iterations.
type Clock interface {
	Sleep(d time.Duration)
}

// RealClock sleeps on the wall clock.
type RealClock struct{}

// Sleep implements Clock.
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
