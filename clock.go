package auth

import "time"

// Clock abstracts time.Now so expiry logic stays testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func normalizeClock(c Clock) Clock {
	if c == nil {
		return systemClock{}
	}
	return c
}
