package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

type adapterFixture struct {
	rest      *mockREST
	transport *mockTransport
	sink      *mockSink
	store     *mockStore
	bridge    *mockBridge
	discovery *mockDiscovery
	devices   *mockDevices
	adapter   *Adapter
}

func newAdapterFixture(t *testing.T, tweak func(*Options)) *adapterFixture {
	t.Helper()
	f := &adapterFixture{
		rest:      newMockREST(),
		transport: &mockTransport{},
		sink:      &mockSink{},
		store:     &mockStore{},
		bridge:    &mockBridge{online: true},
		discovery: &mockDiscovery{},
		devices:   &mockDevices{},
	}
	opts := Options{
		GatewayID:       "gateway-test",
		Host:            "192.168.1.50",
		RefreshInterval: 40 * time.Millisecond,
		PollInterval:    40 * time.Millisecond,
		RequestTimeout:  time.Second,
		REST:            f.rest,
		Transport:       f.transport,
		Sink:            f.sink,
		Store:           f.store,
		Devices:         f.devices,
		Bridge:          f.bridge,
		Discovery:       f.discovery,
	}
	if tweak != nil {
		tweak(&opts)
	}
	a, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.adapter = a
	t.Cleanup(a.Dispose)
	return f
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoHost) {
		t.Errorf("New() without host error = %v, want ErrNoHost", err)
	}

	_, err := New(Options{Host: "192.168.1.50", REST: newMockREST()})
	if !errors.Is(err, ErrMissingCollaborator) {
		t.Errorf("New() error = %v, want ErrMissingCollaborator", err)
	}
}

func TestInitialize_BridgeOffline(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.bridge.setOnline(false)

	f.adapter.Initialize(context.Background())

	last, _ := f.sink.last()
	if last.Detail != DetailBridgeOffline {
		t.Errorf("status = %+v, want OFFLINE/BRIDGE_OFFLINE", last)
	}
	if f.rest.callCount() != 0 {
		t.Error("bring-up proceeded despite offline bridge")
	}
}

func TestInitialize_NoCredentialRunsAuth(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.rest.script("POST", "/api", &Response{Code: 403})

	f.adapter.Initialize(context.Background())

	last, _ := f.sink.last()
	if last.Detail != DetailConfigurationPending {
		t.Errorf("status = %+v, want CONFIGURATION_PENDING", last)
	}
}

func TestInitialize_CredentialRunsFetch(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.store.credential = "testkey"
	f.rest.script("GET", "/api/testkey", &Response{Code: 200, Body: []byte(fullStateBody)})

	f.adapter.Initialize(context.Background())

	if f.transport.connectCount() != 1 {
		t.Error("full state fetch did not start the event session")
	}
}

// Bring-up end to end: no key, gateway answers 403, then the user
// presses the link button and the retry is granted a key, which flows
// straight into the full-state fetch and the event session.
func TestBringUp_AuthThenFetch(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.rest.script("POST", "/api", &Response{Code: 403})
	f.rest.script("GET", "/api/B109DC6F22", &Response{Code: 200, Body: []byte(fullStateBody)})

	f.adapter.Initialize(context.Background())

	last, _ := f.sink.last()
	if last.Detail != DetailConfigurationPending {
		t.Fatalf("status after 403 = %+v, want CONFIGURATION_PENDING", last)
	}

	// Link button pressed: next poll is granted.
	f.rest.script("POST", "/api", &Response{
		Code: 200,
		Body: []byte(`[{"success":{"username":"B109DC6F22"}}]`),
	})

	time.Sleep(70 * time.Millisecond)

	if f.store.Credential() != "B109DC6F22" {
		t.Fatalf("credential = %q, want granted key", f.store.Credential())
	}
	if f.transport.connectCount() != 1 {
		t.Error("granted key did not trigger the full-state fetch and session start")
	}

	// Event stream up: adapter goes ONLINE.
	f.transport.setConnected(true)
	f.adapter.Session().Connected()

	last, _ = f.sink.last()
	if last.State != StateOnline {
		t.Errorf("status = %+v, want ONLINE", last)
	}
}

func TestScheduledRun_RefreshesChannels(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.transport.setConnected(true)

	// A communication error arms the refresh job.
	f.adapter.Session().ConnectionError(errors.New("dial tcp: connection refused"))
	if !f.adapter.Refreshing() {
		t.Fatal("refresh job not scheduled after communication error")
	}

	time.Sleep(70 * time.Millisecond)
	if f.devices.cycleCount() < 1 {
		t.Error("scheduled run never refreshed channels")
	}

	// Clean cycles with a live event stream recover the status.
	last, _ := f.sink.last()
	if last.State != StateOnline {
		t.Errorf("status = %+v, want ONLINE after clean refresh", last)
	}
}

func TestScheduledRun_BridgeOfflineSkipsCycle(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.adapter.Session().ConnectionError(errors.New("dial tcp: connection refused"))
	f.bridge.setOnline(false)

	time.Sleep(70 * time.Millisecond)

	if f.devices.cycleCount() != 0 {
		t.Error("refresh cycle ran while bridge offline")
	}
	last, _ := f.sink.last()
	if last.Detail != DetailBridgeOffline {
		t.Errorf("status = %+v, want OFFLINE/BRIDGE_OFFLINE", last)
	}
}

func TestScheduledRun_FailureBecomesCommunicationError(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.devices.setRefreshErr(errors.New("api request failed"))

	f.adapter.Session().ConnectionError(errors.New("dial tcp: connection refused"))
	time.Sleep(70 * time.Millisecond)

	last, _ := f.sink.last()
	want := Status{StateOffline, DetailCommunicationError, "api request failed"}
	if last != want {
		t.Errorf("status = %+v, want %+v", last, want)
	}
	// The job keeps firing despite the failures.
	if !f.adapter.Refreshing() {
		t.Error("refresh job unscheduled by a failing cycle")
	}
}

func TestHandleCommand_RefreshIsThrottled(t *testing.T) {
	f := newAdapterFixture(t, func(o *Options) {
		o.RefreshInterval = time.Hour // keep the gate shut after the first pass
	})
	f.store.credential = "testkey"

	f.adapter.HandleCommand("lights/1/brightness", CommandRefresh)
	f.adapter.HandleCommand("lights/2/brightness", CommandRefresh)

	if got := f.devices.modelRefreshCount(); got != 1 {
		t.Errorf("model refreshes = %d, want 1 (throttled)", got)
	}
	// The single-channel refresh is not throttled.
	if got := len(f.devices.channels); got != 2 {
		t.Errorf("channel refreshes = %d, want 2", got)
	}
}

func TestHandleCommand_RefreshSkipsModelsWithoutCredential(t *testing.T) {
	f := newAdapterFixture(t, nil)

	f.adapter.HandleCommand("lights/1/brightness", CommandRefresh)

	if got := f.devices.modelRefreshCount(); got != 0 {
		t.Errorf("model refreshes = %d, want 0 (no credential)", got)
	}
}

func TestHandleCommand_DispatchesAndSwallowsErrors(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.devices.commandErr = errors.New("device unreachable")

	f.adapter.HandleCommand("lights/1/on", "on") // must not panic or publish

	if got := len(f.devices.commands); got != 1 {
		t.Fatalf("commands dispatched = %d, want 1", got)
	}
	if f.devices.commands[0] != "lights/1/on=on" {
		t.Errorf("dispatched %q", f.devices.commands[0])
	}
	if len(f.sink.statuses()) != 0 {
		t.Error("command failure changed the published status")
	}
}

func TestDispose_TearsEverythingDown(t *testing.T) {
	f := newAdapterFixture(t, nil)
	f.store.credential = "testkey"
	f.rest.script("GET", "/api/testkey", &Response{Code: 200, Body: []byte(fullStateBody)})

	f.adapter.Initialize(context.Background())
	f.adapter.Session().ConnectionError(errors.New("dial tcp: connection refused"))

	f.adapter.Dispose()

	if f.adapter.Refreshing() {
		t.Error("refresh job still scheduled after Dispose")
	}
	connects := f.transport.connectCount()
	time.Sleep(90 * time.Millisecond)
	if got := f.transport.connectCount(); got != connects {
		t.Error("reconnect timer fired after Dispose")
	}
	if f.transport.closes < 1 {
		t.Error("event transport not closed")
	}

	f.adapter.Dispose() // idempotent
}
