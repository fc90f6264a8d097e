package services

import "time"

// Clock supplies "now". A nil Clock reads the wall clock.
type Clock func() time.Time

// Now returns the current time according to c.
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// FixedClock returns a Clock frozen at t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
