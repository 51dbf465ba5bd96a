package adapter

import (
	"sync"
	"time"
)

// timerSlot holds at most one pending one-shot timer.
//
// Authentication retries, initial full-state retries, and reconnect
// attempts all share a single slot: scheduling a new attempt first
// cancels the pending one, so the adapter never has more than one
// retry in flight.
type timerSlot struct {
	mu    sync.Mutex
	timer *time.Timer
}

// schedule arms fn to fire after d, cancelling any pending timer first.
func (s *timerSlot) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d, fn)
}

// cancel stops the pending timer, if any.
func (s *timerSlot) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// pending reports whether a timer is currently armed. A fired timer
// still counts as pending until cancel or the next schedule; callers
// use this for observability only, never for correctness.
func (s *timerSlot) pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
