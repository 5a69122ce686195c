package statemachine

import "time"

// Clock is the machine's time source. Implementations must be monotonic:
// Now never goes backwards.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the wall time, which carries a monotonic reading.
func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns the process clock.
func SystemClock() Clock { //nolint:ireturn
	return systemClock{}
}
