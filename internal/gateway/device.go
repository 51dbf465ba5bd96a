package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
)

// Resources exposed by the gateway REST API.
const (
	ResourceLights  = "lights"
	ResourceSensors = "sensors"
)

// channelParts is the number of segments in a channel id:
// <resource>/<device id>/<state field>.
const channelParts = 3

// CredentialSource provides the current gateway access key.
type CredentialSource interface {
	Credential() string
}

// ChannelPublisher propagates channel value changes to the platform.
type ChannelPublisher interface {
	PublishChannel(channel string, value string) error
}

// HistoryRecorder persists channel values to time-series storage.
// Optional; a nil recorder disables history.
type HistoryRecorder interface {
	RecordValue(channel string, value float64)
	RecordState(channel string, state string)
}

// resourceDevice is one device as reported by a resource listing.
type resourceDevice struct {
	Name         string                     `json:"name"`
	Type         string                     `json:"type"`
	ModelID      string                     `json:"modelid"`
	Manufacturer string                     `json:"manufacturername"`
	UniqueID     string                     `json:"uniqueid"`
	State        map[string]json.RawMessage `json:"state"`
}

// Manager owns the device inventory and the last-known value of every
// exposed channel. It implements adapter.DeviceOps and consumes push
// events from the event stream.
//
// Values are diffed before publishing: polling and events race
// freely, but an unchanged value is never re-published.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	rest      *Client
	creds     CredentialSource
	publisher ChannelPublisher
	history   HistoryRecorder
	logger    Logger

	mu      sync.Mutex
	devices map[string]resourceDevice // "<resource>/<id>" -> device
	values  map[string]string         // channel -> last published value
}

// NewManager wires the device layer. history may be nil.
func NewManager(rest *Client, creds CredentialSource, publisher ChannelPublisher, history HistoryRecorder, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		rest:      rest,
		creds:     creds,
		publisher: publisher,
		history:   history,
		logger:    logger,
		devices:   make(map[string]resourceDevice),
		values:    make(map[string]string),
	}
}

// RefreshModels re-reads the device inventory from the gateway.
func (m *Manager) RefreshModels(ctx context.Context) error {
	key := m.creds.Credential()
	if key == "" {
		return ErrNoCredential
	}

	for _, resource := range []string{ResourceLights, ResourceSensors} {
		listing, err := m.fetchResource(ctx, key, resource)
		if err != nil {
			return err
		}
		m.mu.Lock()
		for id, dev := range listing {
			m.devices[resource+"/"+id] = dev
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	count := len(m.devices)
	m.mu.Unlock()
	m.logger.Debug("device inventory refreshed", "devices", count)
	return nil
}

// RefreshChannels polls both resources and publishes every changed
// channel value.
func (m *Manager) RefreshChannels(ctx context.Context) error {
	key := m.creds.Credential()
	if key == "" {
		return ErrNoCredential
	}

	for _, resource := range []string{ResourceLights, ResourceSensors} {
		listing, err := m.fetchResource(ctx, key, resource)
		if err != nil {
			return err
		}
		for id, dev := range listing {
			m.applyState(resource, id, dev.State)
		}
	}
	return nil
}

// RefreshChannel polls a single channel's device and publishes the
// channel's current value if it changed.
func (m *Manager) RefreshChannel(ctx context.Context, channel string) error {
	resource, id, field, err := splitChannel(channel)
	if err != nil {
		return err
	}
	key := m.creds.Credential()
	if key == "" {
		return ErrNoCredential
	}

	resp, err := m.rest.Get(ctx, fmt.Sprintf("/api/%s/%s/%s", key, resource, id))
	if err != nil {
		return err
	}
	if resp.Code != http.StatusOK {
		return fmt.Errorf("%w: %s/%s returned %d", ErrRequestFailed, resource, id, resp.Code)
	}

	var dev resourceDevice
	if err := json.Unmarshal(resp.Body, &dev); err != nil {
		return fmt.Errorf("gateway: parse %s/%s: %w", resource, id, err)
	}

	raw, ok := dev.State[field]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	m.publishIfChanged(channel, renderValue(raw))
	return nil
}

// ExecuteCommand writes a state change to a device. The command value
// is interpreted as a bool, a number, or a bare string, in that order.
func (m *Manager) ExecuteCommand(ctx context.Context, channel string, command string) error {
	resource, id, field, err := splitChannel(channel)
	if err != nil {
		return err
	}
	key := m.creds.Credential()
	if key == "" {
		return ErrNoCredential
	}

	body, err := json.Marshal(map[string]any{field: parseCommand(command)})
	if err != nil {
		return fmt.Errorf("gateway: encode command: %w", err)
	}

	resp, err := m.rest.Put(ctx, fmt.Sprintf("/api/%s/%s/%s/state", key, resource, id), body)
	if err != nil {
		return err
	}
	if resp.Code != http.StatusOK {
		return fmt.Errorf("%w: command on %s returned %d", ErrRequestFailed, channel, resp.Code)
	}
	return nil
}

// HandleEvent consumes a push notification from the event stream.
// State changes flow through the same diff-and-publish path as polls.
func (m *Manager) HandleEvent(ev Event) {
	if ev.Resource == "" || ev.ID == "" {
		return
	}

	switch ev.Event {
	case EventChanged:
		if len(ev.State) == 0 {
			return
		}
		var state map[string]json.RawMessage
		if err := json.Unmarshal(ev.State, &state); err != nil {
			m.logger.Debug("unparseable event state", "resource", ev.Resource, "id", ev.ID, "error", err)
			return
		}
		m.applyState(ev.Resource, ev.ID, state)

	case EventDeleted:
		m.mu.Lock()
		delete(m.devices, ev.Resource+"/"+ev.ID)
		prefix := ev.Resource + "/" + ev.ID + "/"
		for channel := range m.values {
			if strings.HasPrefix(channel, prefix) {
				delete(m.values, channel)
			}
		}
		m.mu.Unlock()
		m.logger.Info("device removed", "resource", ev.Resource, "id", ev.ID)

	case EventAdded:
		m.logger.Info("device added", "resource", ev.Resource, "id", ev.ID)
	}
}

// Channels returns the sorted list of channels with a known value.
func (m *Manager) Channels() []string {
	m.mu.Lock()
	channels := make([]string, 0, len(m.values))
	for channel := range m.values {
		channels = append(channels, channel)
	}
	m.mu.Unlock()
	sort.Strings(channels)
	return channels
}

// DeviceCount returns the size of the known device inventory.
func (m *Manager) DeviceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

func (m *Manager) fetchResource(ctx context.Context, key, resource string) (map[string]resourceDevice, error) {
	resp, err := m.rest.Get(ctx, fmt.Sprintf("/api/%s/%s", key, resource))
	if err != nil {
		return nil, err
	}
	if resp.Code != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrRequestFailed, resource, resp.Code)
	}

	var listing map[string]resourceDevice
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, fmt.Errorf("gateway: parse %s listing: %w", resource, err)
	}
	return listing, nil
}

// applyState diffs and publishes every field of a device state.
func (m *Manager) applyState(resource, id string, state map[string]json.RawMessage) {
	for field, raw := range state {
		m.publishIfChanged(resource+"/"+id+"/"+field, renderValue(raw))
	}
}

// publishIfChanged updates the owned value map and publishes only on
// an actual change.
func (m *Manager) publishIfChanged(channel, value string) {
	m.mu.Lock()
	if last, ok := m.values[channel]; ok && last == value {
		m.mu.Unlock()
		return
	}
	m.values[channel] = value
	m.mu.Unlock()

	if err := m.publisher.PublishChannel(channel, value); err != nil {
		m.logger.Warn("channel publish failed", "channel", channel, "error", err)
		return
	}
	m.record(channel, value)
}

// record writes the value to history storage, numeric values as a
// series and everything else as state transitions.
func (m *Manager) record(channel, value string) {
	if m.history == nil {
		return
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		m.history.RecordValue(channel, f)
		return
	}
	m.history.RecordState(channel, value)
}

// splitChannel parses "<resource>/<id>/<field>".
func splitChannel(channel string) (resource, id, field string, err error) {
	parts := strings.Split(channel, "/")
	if len(parts) != channelParts || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	return parts[0], parts[1], parts[2], nil
}

// renderValue flattens a JSON state value to its canonical string
// form: true, 178, "str" without quotes.
func renderValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseCommand interprets a command payload: bools and numbers keep
// their JSON types so the gateway accepts them, anything else is sent
// as a string.
func parseCommand(command string) any {
	switch command {
	case "true", "on":
		return true
	case "false", "off":
		return false
	}
	if n, err := strconv.ParseFloat(command, 64); err == nil {
		// Whole numbers are sent as integers; brightness and similar
		// fields reject fractions anyway.
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	}
	return command
}

// interface conformance
var _ adapter.DeviceOps = (*Manager)(nil)
var _ adapter.RESTClient = (*Client)(nil)
var _ adapter.EventTransport = (*EventStream)(nil)
