package adapter

import "sync"

// StatusController owns the adapter's externally visible status.
//
// A status write is only propagated to the sink when it differs from
// the last published value, so concurrent writers racing with equal
// values produce exactly one observable update. Transition side
// effects (starting or stopping the refresh scheduler) are applied
// before publication, based on the target status:
//
//   - ONLINE, or OFFLINE with COMMUNICATION_ERROR: refresh must run.
//   - OFFLINE with CONFIGURATION_ERROR or GONE: refresh must stop.
//   - Anything else leaves scheduling untouched.
//
// Thread Safety: all methods are safe for concurrent use.
type StatusController struct {
	sink         StatusSink
	startRefresh func()
	stopRefresh  func()
	logger       Logger

	mu   sync.Mutex
	last *Status
}

// NewStatusController creates a status controller publishing to sink.
// startRefresh and stopRefresh are invoked as transition side effects;
// both must be idempotent.
func NewStatusController(sink StatusSink, startRefresh, stopRefresh func(), logger Logger) *StatusController {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatusController{
		sink:         sink,
		startRefresh: startRefresh,
		stopRefresh:  stopRefresh,
		logger:       logger,
	}
}

// Set records a new status, applies scheduling side effects, and
// publishes the status if it differs from the last published value.
func (c *StatusController) Set(state State, detail Detail, description string) {
	switch {
	case state == StateOnline,
		state == StateOffline && detail == DetailCommunicationError:
		c.startRefresh()
	case state == StateOffline && (detail == DetailConfigurationError || detail == DetailGone):
		c.stopRefresh()
	}

	next := Status{State: state, Detail: detail, Description: description}

	c.mu.Lock()
	if c.last != nil && *c.last == next {
		c.mu.Unlock()
		return
	}
	c.last = &next
	c.mu.Unlock()

	c.logger.Debug("status changed",
		"state", string(state),
		"detail", string(detail),
		"description", description,
	)
	c.sink.PublishStatus(next)
}

// Current returns the last published status. ok is false before the
// first publication.
func (c *StatusController) Current() (status Status, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Status{}, false
	}
	return *c.last, true
}
