package adapter

import (
	"context"
	"sync"
)

// =============================================================================
// Test doubles
// =============================================================================

// mockSink records every published status.
type mockSink struct {
	mu        sync.Mutex
	published []Status
}

func (m *mockSink) PublishStatus(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, status)
}

func (m *mockSink) statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, len(m.published))
	copy(out, m.published)
	return out
}

func (m *mockSink) last() (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.published) == 0 {
		return Status{}, false
	}
	return m.published[len(m.published)-1], true
}

// mockREST returns scripted responses keyed by method+path, or a
// scripted error for everything.
type mockREST struct {
	mu        sync.Mutex
	responses map[string]*Response
	err       error
	calls     []string
}

func newMockREST() *mockREST {
	return &mockREST{responses: make(map[string]*Response)}
}

func (m *mockREST) script(method, path string, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+" "+path] = resp
}

func (m *mockREST) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockREST) do(method, path string) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method+" "+path)
	if m.err != nil {
		return nil, m.err
	}
	if resp, ok := m.responses[method+" "+path]; ok {
		return resp, nil
	}
	return &Response{Code: 404}, nil
}

func (m *mockREST) Get(_ context.Context, path string) (*Response, error) {
	return m.do("GET", path)
}

func (m *mockREST) Post(_ context.Context, path string, _ []byte) (*Response, error) {
	return m.do("POST", path)
}

func (m *mockREST) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockTransport records connect/close calls without any real I/O.
// Connection outcomes are driven by the test via the session's
// listener methods.
type mockTransport struct {
	mu         sync.Mutex
	connects   []string
	closes     int
	connected  bool
	connectErr error
}

func (m *mockTransport) Connect(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects = append(m.connects, addr)
	return m.connectErr
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.connected = false
	return nil
}

func (m *mockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockTransport) setConnected(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = v
}

func (m *mockTransport) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connects)
}

// mockStore is an in-memory ConfigStore.
type mockStore struct {
	mu         sync.Mutex
	credential string
	props      map[string]string
	propWrites int
}

func (m *mockStore) Credential() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credential
}

func (m *mockStore) SetCredential(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credential = key
	return nil
}

func (m *mockStore) SetProperties(props map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.props == nil {
		m.props = make(map[string]string)
	}
	for k, v := range props {
		m.props[k] = v
	}
	m.propWrites++
	return nil
}

func (m *mockStore) property(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props[key]
}

// mockBridge reports a switchable parent availability.
type mockBridge struct {
	mu     sync.Mutex
	online bool
}

func (m *mockBridge) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *mockBridge) setOnline(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = v
}

// mockDiscovery counts hand-off notifications.
type mockDiscovery struct {
	mu     sync.Mutex
	states []*FullState
}

func (m *mockDiscovery) StateFetched(state *FullState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func (m *mockDiscovery) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *mockDiscovery) lastState() *FullState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.states) == 0 {
		return nil
	}
	return m.states[len(m.states)-1]
}

// mockDevices counts refresh and command calls, with optional errors.
type mockDevices struct {
	mu             sync.Mutex
	modelRefreshes int
	cycleRefreshes int
	channels       []string
	commands       []string
	refreshErr     error
	commandErr     error
}

func (m *mockDevices) RefreshModels(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelRefreshes++
	return nil
}

func (m *mockDevices) RefreshChannels(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycleRefreshes++
	return m.refreshErr
}

func (m *mockDevices) RefreshChannel(_ context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	return nil
}

func (m *mockDevices) ExecuteCommand(_ context.Context, channel, command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, channel+"="+command)
	return m.commandErr
}

func (m *mockDevices) modelRefreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelRefreshes
}

func (m *mockDevices) cycleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycleRefreshes
}

func (m *mockDevices) setRefreshErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshErr = err
}
