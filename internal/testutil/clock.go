package testutil

import (
	"sync"
	"time"
)

// WallClock is a settable wall clock for tests that depend on real time,
// such as TTL expiry and time.now outcomes. Its Now method has the same
// shape as time.Now so it can be injected anywhere a `func() time.Time`
// is accepted.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type WallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewWallClock creates a wall clock frozen at the given instant.
func NewWallClock(at time.Time) *WallClock {
	return &WallClock{now: at}
}

// Now returns the current frozen instant.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d is allowed; tests
// occasionally need to model skew.
func (c *WallClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to the given instant.
func (c *WallClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}
