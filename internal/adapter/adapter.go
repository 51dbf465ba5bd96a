package adapter

import (
	"context"
	"fmt"
	"time"
)

// Adapter operation constants.
const (
	// defaultPollInterval is the delay for auth retries, initial
	// full-state retries, and reconnect backoff.
	defaultPollInterval = 10 * time.Second

	// defaultRefreshInterval is the periodic channel refresh cadence.
	defaultRefreshInterval = 10 * time.Second

	// defaultRequestTimeout bounds a single REST request.
	defaultRequestTimeout = 10 * time.Second

	// CommandRefresh is the pseudo-command that triggers a throttled
	// model refresh plus a single-channel refresh.
	CommandRefresh = "refresh"
)

// Options configures an Adapter.
type Options struct {
	// GatewayID identifies this adapter instance.
	GatewayID string

	// Host is the gateway's network address (without port).
	Host string

	// EventPort, when non-zero, overrides the event port the gateway
	// advertises in its full state.
	EventPort int

	// RefreshInterval is the periodic refresh cadence.
	// Defaults to 10s.
	RefreshInterval time.Duration

	// PollInterval is the retry/backoff delay. Defaults to 10s.
	PollInterval time.Duration

	// RequestTimeout bounds individual REST requests. Defaults to 10s.
	RequestTimeout time.Duration

	// Required collaborators.
	REST      RESTClient
	Transport EventTransport
	Sink      StatusSink
	Store     ConfigStore
	Devices   DeviceOps

	// Optional collaborators.
	Bridge    BridgeAccessor
	Discovery DiscoveryNotifier
	Logger    Logger
}

// Adapter composes the lifecycle components into the full bring-up,
// periodic-refresh, command-handling, and teardown sequence for one
// gateway.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Adapter struct {
	opts   Options
	logger Logger

	status    *StatusController
	scheduler *Scheduler
	throttle  *Throttle
	slot      *timerSlot
	auth      *AuthFlow
	fetcher   *FullStateFetcher
	session   *Session
}

// New validates opts and wires the lifecycle components together.
func New(opts Options) (*Adapter, error) {
	if opts.Host == "" {
		return nil, ErrNoHost
	}
	for name, ok := range map[string]bool{
		"rest client":     opts.REST != nil,
		"event transport": opts.Transport != nil,
		"status sink":     opts.Sink != nil,
		"config store":    opts.Store != nil,
		"device ops":      opts.Devices != nil,
	} {
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingCollaborator, name)
		}
	}

	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	a := &Adapter{
		opts:   opts,
		logger: logger,
		slot:   &timerSlot{},
	}
	a.scheduler = NewScheduler(logger)
	a.throttle = NewThrottle()
	a.status = NewStatusController(opts.Sink,
		func() { a.scheduler.Start(opts.RefreshInterval, a.scheduledRun) },
		a.scheduler.Stop,
		logger,
	)
	a.session = newSession(opts.Transport, a.status, a.slot, opts.Host, opts.PollInterval, logger)
	a.fetcher = newFullStateFetcher(opts.REST, a.status, opts.Store, opts.Discovery,
		a.session, a.slot, opts.PollInterval, opts.EventPort, logger)
	a.auth = newAuthFlow(opts.REST, a.status, opts.Store, a.slot,
		"graylogic-gateway", opts.PollInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.RequestTimeout)
			defer cancel()
			a.fetcher.Fetch(ctx, true)
		}, logger)

	return a, nil
}

// Initialize drives bring-up: verify the parent platform, then either
// request an access key or fetch the gateway's full state. ONLINE is
// published later, once the event stream comes up.
func (a *Adapter) Initialize(ctx context.Context) {
	a.logger.Info("initializing adapter", "gateway_id", a.opts.GatewayID, "host", a.opts.Host)

	if a.opts.Bridge != nil && !a.opts.Bridge.Online() {
		a.status.Set(StateOffline, DetailBridgeOffline, "Platform link is down")
		return
	}

	if a.opts.Store.Credential() == "" {
		a.auth.Request(ctx)
		return
	}
	a.fetcher.Fetch(ctx, true)
}

// HandleCommand dispatches a channel command. The refresh
// pseudo-command triggers a throttled model refresh followed by a
// single-channel refresh; anything else goes to the device executor.
// Command failures are logged, never propagated.
func (a *Adapter) HandleCommand(channel string, command string) {
	a.logger.Debug("handling command", "channel", channel, "command", command)

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.RequestTimeout)
	defer cancel()

	if command == CommandRefresh {
		a.throttledRefreshModels(ctx)
		if err := a.opts.Devices.RefreshChannel(ctx, channel); err != nil {
			a.logger.Warn("channel refresh failed", "channel", channel, "error", err)
		}
		return
	}

	if err := a.opts.Devices.ExecuteCommand(ctx, channel, command); err != nil {
		a.logger.Warn("command failed", "channel", channel, "command", command, "error", err)
	}
}

// Dispose tears the adapter down: cancel the refresh job, disable and
// stop the event session, release pending timers. Safe to call more
// than once.
func (a *Adapter) Dispose() {
	a.logger.Info("disposing adapter", "gateway_id", a.opts.GatewayID)
	a.scheduler.Stop()
	a.session.Stop()
	a.slot.cancel()
}

// Status returns the last published status. ok is false before the
// first publication.
func (a *Adapter) Status() (Status, bool) {
	return a.status.Current()
}

// Refreshing reports whether the periodic refresh job is scheduled.
func (a *Adapter) Refreshing() bool {
	return a.scheduler.Running()
}

// EventConnected reports whether the gateway event stream is up.
func (a *Adapter) EventConnected() bool {
	return a.opts.Transport.IsConnected()
}

// Session exposes the reconnecting session so the event transport can
// deliver its lifecycle callbacks.
func (a *Adapter) Session() *Session {
	return a.session
}

// scheduledRun is the periodic refresh cycle. It re-verifies bridge
// availability, refreshes all channels, and converts any failure into
// a communication error so the scheduler itself never sees one.
func (a *Adapter) scheduledRun() {
	if a.opts.Bridge != nil && !a.opts.Bridge.Online() {
		a.status.Set(StateOffline, DetailBridgeOffline, "Platform link is down")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.RequestTimeout)
	defer cancel()

	if err := a.opts.Devices.RefreshChannels(ctx); err != nil {
		a.logger.Warn("refresh cycle failed", "error", err)
		a.status.Set(StateOffline, DetailCommunicationError, err.Error())
		return
	}

	// A clean cycle with a live event stream means we are healthy
	// again after a transient error.
	if a.opts.Transport.IsConnected() {
		a.status.Set(StateOnline, DetailNone, "")
	}
}

// throttledRefreshModels re-reads the device inventory at most once
// per refresh interval. Skipped when no access key has been granted.
func (a *Adapter) throttledRefreshModels(ctx context.Context) {
	a.throttle.Attempt(a.opts.RefreshInterval, func() {
		if a.opts.Store.Credential() == "" {
			return
		}
		if err := a.opts.Devices.RefreshModels(ctx); err != nil {
			a.logger.Warn("model refresh failed", "error", err)
		}
	})
}
