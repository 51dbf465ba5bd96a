package adapter

import (
	"testing"
	"time"
)

func TestThrottle_FirstAttemptRuns(t *testing.T) {
	th := NewThrottle()

	ran := false
	if !th.Attempt(time.Minute, func() { ran = true }) {
		t.Error("Attempt() = false on first call")
	}
	if !ran {
		t.Error("op not invoked on first call")
	}
}

func TestThrottle_GateTiming(t *testing.T) {
	th := NewThrottle()
	period := 10 * time.Second

	now := time.Unix(1000, 0)
	th.now = func() time.Time { return now }

	runs := 0
	op := func() { runs++ }

	// t=0: open.
	if !th.Attempt(period, op) {
		t.Error("t=0: gate closed, want open")
	}
	// t=0.5P: closed.
	now = now.Add(period / 2)
	if th.Attempt(period, op) {
		t.Error("t=0.5P: gate open, want closed")
	}
	// t=1.5P from the first run: open again.
	now = now.Add(period)
	if !th.Attempt(period, op) {
		t.Error("t=1.5P: gate closed, want open")
	}

	if runs != 2 {
		t.Errorf("op ran %d times, want 2", runs)
	}
}

func TestThrottle_ExactPeriodStaysClosed(t *testing.T) {
	th := NewThrottle()
	period := 10 * time.Second

	now := time.Unix(1000, 0)
	th.now = func() time.Time { return now }

	th.Attempt(period, func() {})

	// Gate requires strictly more than period to elapse.
	now = now.Add(period)
	if th.Attempt(period, func() {}) {
		t.Error("gate open at exactly one period, want closed")
	}
}

func TestThrottle_TimestampRecordedBeforeOp(t *testing.T) {
	th := NewThrottle()
	period := 10 * time.Second

	now := time.Unix(1000, 0)
	th.now = func() time.Time { return now }

	// A re-entrant trigger fired from inside the op must find the
	// gate already closed.
	reentered := false
	th.Attempt(period, func() {
		th.Attempt(period, func() { reentered = true })
	})

	if reentered {
		t.Error("re-entrant attempt passed the gate during the guarded op")
	}
}
