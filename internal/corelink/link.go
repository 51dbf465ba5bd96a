package corelink

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
)

// qosAtLeastOnce is used for everything the platform must not miss.
const qosAtLeastOnce = 1

// MQTTClient is the broker surface the link needs. Satisfied by
// *mqtt.Client.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// CommandHandler receives channel commands addressed to this adapter.
type CommandHandler func(channel string, command string)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// statusPayload is the retained health message for this adapter.
type statusPayload struct {
	State       string `json:"state"`
	Detail      string `json:"detail"`
	Description string `json:"description,omitempty"`
	GatewayID   string `json:"gateway_id"`
	Timestamp   string `json:"timestamp"`
}

// coreStatus is the platform core's availability message.
type coreStatus struct {
	Status string `json:"status"`
}

// Link binds the adapter to the platform over MQTT. It is the
// adapter's status sink, its view of the parent platform's
// availability, the publisher for channel state changes, and the
// intake for channel commands.
//
// Thread Safety: all methods are safe for concurrent use.
type Link struct {
	gatewayID string
	client    MQTTClient
	logger    Logger

	mu         sync.Mutex
	coreOnline bool
	coreSeen   time.Time
	onCommand  CommandHandler
}

// New creates a platform link for the given gateway.
func New(gatewayID string, client MQTTClient, logger Logger) *Link {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Link{
		gatewayID: gatewayID,
		client:    client,
		logger:    logger,
	}
}

// Start subscribes to the core availability topic and the adapter's
// command topics. handler receives every channel command; it may be
// nil to ignore commands.
func (l *Link) Start(handler CommandHandler) error {
	l.mu.Lock()
	l.onCommand = handler
	l.mu.Unlock()

	topics := mqtt.Topics{}
	if err := l.client.Subscribe(topics.CoreStatus(), qosAtLeastOnce, l.handleCoreStatus); err != nil {
		return fmt.Errorf("corelink: subscribe core status: %w", err)
	}
	if err := l.client.Subscribe(topics.CommandSubscribe(l.gatewayID), qosAtLeastOnce, l.handleCommand); err != nil {
		return fmt.Errorf("corelink: subscribe commands: %w", err)
	}
	return nil
}

// PublishStatus implements adapter.StatusSink. The status is retained
// so the platform sees the adapter's health immediately on
// reconnection.
func (l *Link) PublishStatus(status adapter.Status) {
	payload, err := json.Marshal(statusPayload{
		State:       string(status.State),
		Detail:      string(status.Detail),
		Description: status.Description,
		GatewayID:   l.gatewayID,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		l.logger.Error("status payload encode failed", "error", err)
		return
	}

	topic := mqtt.Topics{}.AdapterStatus(l.gatewayID)
	if err := l.client.Publish(topic, payload, qosAtLeastOnce, true); err != nil {
		l.logger.Warn("status publish failed", "error", err)
	}
}

// Online implements adapter.BridgeAccessor: the parent platform is
// available when the broker is connected and the core has reported
// itself online.
func (l *Link) Online() bool {
	if !l.client.IsConnected() {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coreOnline
}

// CoreSeen returns when the core's availability was last reported.
func (l *Link) CoreSeen() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coreSeen
}

// PublishChannel implements the channel publisher consumed by the
// device layer. Values are retained so late subscribers see the
// current state.
func (l *Link) PublishChannel(channel string, value string) error {
	topic := mqtt.Topics{}.ChannelState(l.gatewayID, channel)
	return l.client.Publish(topic, []byte(value), qosAtLeastOnce, true)
}

// handleCoreStatus tracks the platform core's availability messages.
func (l *Link) handleCoreStatus(_ string, payload []byte) error {
	var msg coreStatus
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("corelink: parse core status: %w", err)
	}

	online := msg.Status == "online"
	l.mu.Lock()
	changed := l.coreOnline != online
	l.coreOnline = online
	l.coreSeen = time.Now()
	l.mu.Unlock()

	if changed {
		l.logger.Info("core availability changed", "online", online)
	}
	return nil
}

// handleCommand recovers the channel id from the command topic and
// hands the payload to the registered handler.
func (l *Link) handleCommand(topic string, payload []byte) error {
	prefix := mqtt.Topics{}.CommandPrefix(l.gatewayID)
	channel := strings.TrimPrefix(topic, prefix)
	if channel == topic || channel == "" {
		return fmt.Errorf("corelink: unexpected command topic %q", topic)
	}

	l.mu.Lock()
	handler := l.onCommand
	l.mu.Unlock()
	if handler != nil {
		handler(channel, string(payload))
	}
	return nil
}

var (
	_ adapter.StatusSink     = (*Link)(nil)
	_ adapter.BridgeAccessor = (*Link)(nil)
)
