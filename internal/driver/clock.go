package driver

import "sync/atomic"

// Clock is a monotonic logical clock stamping each dispatched step.
//
// Sequence numbers give deterministic ordering without wall-clock race
// conditions, so a recorded run replays in the exact order it executed.
//
// Thread-safety: atomic, though the driver's strict-alternation rule
// means a single program instance only ever advances it from one
// goroutine at a time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a specific sequence number.
// Used by replay to continue a recorded run.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock position without advancing it.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
