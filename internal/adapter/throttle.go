package adapter

import (
	"sync"
	"time"
)

// Throttle rate-limits an expensive operation to at most once per
// period regardless of how many triggers arrive.
//
// The gate opens when more than period has elapsed since the last
// run. The timestamp is recorded before the operation is invoked, so
// a slow operation cannot let a second trigger through while it is
// still running.
type Throttle struct {
	mu      sync.Mutex
	lastRun time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewThrottle creates an open throttle.
func NewThrottle() *Throttle {
	return &Throttle{now: time.Now}
}

// Attempt runs op if the gate is open and reports whether it ran.
// A closed gate is a silent no-op, not an error.
func (t *Throttle) Attempt(period time.Duration, op func()) bool {
	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastRun) <= period {
		t.mu.Unlock()
		return false
	}
	t.lastRun = now
	t.mu.Unlock()

	op()
	return true
}
