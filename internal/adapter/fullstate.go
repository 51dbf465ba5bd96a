package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"
)

// FullStateFetcher performs the one-shot "describe yourself" request
// against the gateway and consumes the result: vendor validation,
// property publication, session parameterisation, and the discovery
// hand-off.
type FullStateFetcher struct {
	rest         RESTClient
	status       *StatusController
	store        ConfigStore
	discovery    DiscoveryNotifier
	session      *Session
	slot         *timerSlot
	interval     time.Duration
	portOverride int
	logger       Logger
}

// newFullStateFetcher wires the fetcher. discovery may be nil.
// portOverride, when non-zero, takes precedence over the event port
// the gateway advertises.
func newFullStateFetcher(rest RESTClient, status *StatusController, store ConfigStore, discovery DiscoveryNotifier, session *Session, slot *timerSlot, interval time.Duration, portOverride int, logger Logger) *FullStateFetcher {
	return &FullStateFetcher{
		rest:         rest,
		status:       status,
		store:        store,
		discovery:    discovery,
		session:      session,
		slot:         slot,
		interval:     interval,
		portOverride: portOverride,
		logger:       logger,
	}
}

// Fetch requests the gateway's full state and acts on the outcome.
//
// No-op without a credential. A timeout or empty payload schedules a
// single retry when initial is set, and is swallowed otherwise (the
// next refresh tick retries through the normal path). Other transport
// errors become a communication error without automatic retry. The
// discovery collaborator is notified exactly once per attempt,
// whatever the outcome.
func (f *FullStateFetcher) Fetch(ctx context.Context, initial bool) {
	key := f.store.Credential()
	if key == "" {
		return
	}

	var state *FullState
	if f.discovery != nil {
		defer func() {
			f.discovery.StateFetched(state)
		}()
	}

	resp, err := f.rest.Get(ctx, apiBasePath+"/"+key)
	if err != nil {
		if isTimeout(err) {
			f.retryIfInitial(initial, "full state request timed out")
			return
		}
		f.status.Set(StateOffline, DetailCommunicationError, err.Error())
		return
	}

	switch {
	case resp.Code == http.StatusForbidden:
		// Key no longer accepted; bring-up retries, otherwise the
		// next tick will.
		f.retryIfInitial(initial, "full state request was refused")
		return
	case resp.Code != http.StatusOK:
		f.status.Set(StateOffline, DetailNone,
			"unexpected response "+strconv.Itoa(resp.Code)+" for full state request")
		return
	}

	if len(resp.Body) == 0 {
		f.retryIfInitial(initial, "full state response was empty")
		return
	}

	var fs FullState
	if err := json.Unmarshal(resp.Body, &fs); err != nil {
		f.status.Set(StateOffline, DetailNone, err.Error())
		return
	}
	state = &fs

	if fs.Gateway.Name == "" {
		// Something answered on the configured address, but not a
		// gateway of the expected family.
		f.status.Set(StateOffline, DetailNone,
			"Responding device is not a supported gateway")
		return
	}

	if fs.Gateway.EventPort == 0 {
		f.status.Set(StateOffline, DetailNone,
			"Gateway firmware does not support event notifications, please update")
		return
	}

	props := map[string]string{
		"apiVersion":      fs.Gateway.APIVersion,
		"softwareVersion": fs.Gateway.SoftwareVersion,
		"firmwareVersion": fs.Gateway.FirmwareVersion,
		"uuid":            fs.Gateway.UUID,
		"ipAddress":       fs.Gateway.IPAddress,
		"eventPort":       strconv.Itoa(fs.Gateway.EventPort),
	}
	if err := f.store.SetProperties(props); err != nil {
		f.logger.Warn("property write failed", "error", err)
	}

	port := fs.Gateway.EventPort
	if f.portOverride != 0 {
		port = f.portOverride
	}

	f.logger.Info("full state fetched",
		"gateway", fs.Gateway.Name,
		"software", fs.Gateway.SoftwareVersion,
		"event_port", port,
		"lights", len(fs.Lights),
		"sensors", len(fs.Sensors),
	)

	f.session.SetPort(port)
	f.session.EnableReconnect()
	f.session.Start()
}

// retryIfInitial schedules a single delayed re-fetch during bring-up;
// outside bring-up the background tick covers it.
func (f *FullStateFetcher) retryIfInitial(initial bool, reason string) {
	if !initial {
		return
	}
	f.logger.Debug("retrying full state request", "reason", reason)
	f.slot.schedule(f.interval, func() {
		f.Fetch(context.Background(), true)
	})
}

// isTimeout reports whether err is a timeout or cancellation rather
// than a hard transport failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
