package adapter

import (
	"sync"
	"time"
)

// Scheduler owns at most one recurring refresh job per adapter
// instance.
//
// Start and Stop are idempotent and mutually exclusive under a single
// lock, so concurrent triggers (status transitions, command handling,
// teardown) can never create two live timers. The job fires on a
// fixed delay: the next fire is scheduled after the previous run
// completes, and a failing or panicking run never unschedules it.
type Scheduler struct {
	logger Logger

	mu   sync.Mutex
	stop chan struct{}
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{logger: logger}
}

// Start schedules task to run every period, first fire after period.
// No-op if a job is already scheduled.
func (s *Scheduler) Start(period time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		return
	}

	stop := make(chan struct{})
	s.stop = stop
	s.logger.Debug("refresh job scheduled", "period", period.String())

	go func() {
		timer := time.NewTimer(period)
		defer timer.Stop()
		for {
			select {
			case <-stop:
				return
			case <-timer.C:
				runTask(task, s.logger)
				timer.Reset(period)
			}
		}
	}()
}

// Stop cancels the scheduled job, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.logger.Debug("refresh job cancelled")
}

// Running reports whether a job is currently scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// runTask invokes task, containing any panic so the timer loop
// survives a bad run.
func runTask(task func(), logger Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("refresh task panicked", "panic", r)
		}
	}()
	task()
}
