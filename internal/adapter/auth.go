package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// apiBasePath is the root of the gateway REST API.
const apiBasePath = "/api"

// AuthFlow acquires a gateway access key via the request/poll-until-
// granted protocol: the gateway answers 403 until the user presses
// the link button, then 200 with a generated key.
//
// The flow is bypassed entirely when a credential is already stored.
type AuthFlow struct {
	rest       RESTClient
	status     *StatusController
	store      ConfigStore
	slot       *timerSlot
	clientName string
	interval   time.Duration
	onGranted  func()
	logger     Logger
}

// newAuthFlow wires the flow. onGranted is invoked after a key has
// been persisted, to hand off to the full-state fetch.
func newAuthFlow(rest RESTClient, status *StatusController, store ConfigStore, slot *timerSlot, clientName string, interval time.Duration, onGranted func(), logger Logger) *AuthFlow {
	return &AuthFlow{
		rest:       rest,
		status:     status,
		store:      store,
		slot:       slot,
		clientName: clientName,
		interval:   interval,
		onGranted:  onGranted,
		logger:     logger,
	}
}

// Request issues a one-shot key creation request.
//
// A 403 schedules a single retry after the poll interval, replacing
// any pending one. A 200 persists the key and hands off via
// onGranted. Any other response or a transport failure becomes a
// communication error with no automatic retry.
func (a *AuthFlow) Request(ctx context.Context) {
	if a.store.Credential() != "" {
		return
	}

	a.status.Set(StateOffline, DetailConfigurationPending, "Requesting access key")

	body, err := json.Marshal(map[string]string{"devicetype": a.clientName})
	if err != nil {
		a.status.Set(StateOffline, DetailCommunicationError, err.Error())
		return
	}

	resp, err := a.rest.Post(ctx, apiBasePath, body)
	if err != nil {
		a.status.Set(StateOffline, DetailCommunicationError, err.Error())
		return
	}

	switch resp.Code {
	case http.StatusForbidden:
		a.logger.Info("access key request pending user approval")
		a.status.Set(StateOffline, DetailConfigurationPending,
			"Press the link button on the gateway to authorise this adapter")
		a.slot.schedule(a.interval, func() {
			a.Request(context.Background())
		})

	case http.StatusOK:
		key, err := parseKeyResponse(resp.Body)
		if err != nil {
			a.status.Set(StateOffline, DetailCommunicationError, err.Error())
			return
		}
		if err := a.store.SetCredential(key); err != nil {
			a.status.Set(StateOffline, DetailConfigurationError, err.Error())
			return
		}
		a.logger.Info("access key granted")
		a.status.Set(StateOffline, DetailConfigurationPending, "Waiting for configuration")
		a.onGranted()

	default:
		a.status.Set(StateOffline, DetailCommunicationError,
			fmt.Sprintf("unexpected response %d requesting access key", resp.Code))
	}
}

// parseKeyResponse extracts the generated key from a grant response:
//
//	[{"success":{"username":"<key>"}}]
func parseKeyResponse(body []byte) (string, error) {
	var entries []struct {
		Success struct {
			Username string `json:"username"`
		} `json:"success"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResponse, err)
	}
	if len(entries) == 0 || entries[0].Success.Username == "" {
		return "", ErrKeyResponse
	}
	return entries[0].Success.Username, nil
}
