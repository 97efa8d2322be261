// Package system provides the real clock and tick source implementations.
package system

import "time"

// Clock reads wall time and the high-resolution monotonic tick counter.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time with its monotonic reading intact, so
// durations between two readings ignore wall clock steps. Convert with UTC
// only for display.
func (Clock) Now() time.Time {
	return time.Now()
}

// Ticks returns the current monotonic tick count. It is never zero.
func (Clock) Ticks() uint64 {
	return ticks()
}

// Frequency returns the number of ticks per second.
func (Clock) Frequency() uint64 {
	return TicksPerSecond
}

// TicksPerSecond is the resolution of Ticks.
const TicksPerSecond = uint64(time.Second)
