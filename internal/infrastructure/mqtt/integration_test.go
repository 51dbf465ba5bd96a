//go:build integration

package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// Integration tests for broker-facing behaviour.
// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...
//
// Note: Some tests may be flaky in CI due to timing dependencies.
// Consider running with: go test -tags=integration -count=1 -v ...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// TestIntegration_GatewayTopicTracking verifies the gateway's standing
// subscriptions are tracked by topic filter, the way the adapter holds
// its command and core-status subscriptions across reconnects.
func TestIntegration_GatewayTopicTracking(t *testing.T) {
	client, err := Connect(integrationConfig("gateway-int-topics"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := Topics{}
	filters := []string{
		topics.CommandSubscribe("gateway-001"),
		topics.CoreStatus(),
		"graylogic/state/zigbee/+",
	}

	handler := func(topic string, payload []byte) error {
		return nil
	}

	for _, filter := range filters {
		if err := client.Subscribe(filter, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", filter, err)
		}
	}

	if client.SubscriptionCount() != len(filters) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(filters))
	}

	for _, filter := range filters {
		if !client.HasSubscription(filter) {
			t.Errorf("HasSubscription(%s) = false, want true", filter)
		}
	}

	if err := client.Unsubscribe(topics.CoreStatus()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}

	if client.HasSubscription(topics.CoreStatus()) {
		t.Error("HasSubscription(core status) = true after unsubscribe")
	}
	if client.SubscriptionCount() != len(filters)-1 {
		t.Errorf("SubscriptionCount() after unsubscribe = %d, want %d", client.SubscriptionCount(), len(filters)-1)
	}
}

// TestIntegration_ChannelStateRoundtrip publishes a channel state the way
// the device manager does and verifies a subscriber receives it intact.
func TestIntegration_ChannelStateRoundtrip(t *testing.T) {
	pubClient, err := Connect(integrationConfig("gateway-int-state-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	subClient, err := Connect(integrationConfig("gateway-int-state-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topic := Topics{}.ChannelState("gateway-001", "lights/3/on")
	payload, err := json.Marshal(map[string]any{
		"value":     true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}

	received := make(chan []byte, 1)
	var once sync.Once

	err = subClient.Subscribe(topic, 1, func(t string, p []byte) error {
		once.Do(func() {
			received <- p
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pubClient.Publish(topic, payload, 1, true); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case got := <-received:
		var state struct {
			Value bool `json:"value"`
		}
		if err := json.Unmarshal(got, &state); err != nil {
			t.Fatalf("unmarshaling received payload: %v", err)
		}
		if !state.Value {
			t.Error("received value = false, want true")
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for channel state")
	}
}

// TestIntegration_CommandDelivery verifies a command published to the
// adapter's command topic reaches a wildcard subscription, mirroring how
// the core link receives commands.
func TestIntegration_CommandDelivery(t *testing.T) {
	pubClient, err := Connect(integrationConfig("gateway-int-cmd-pub"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pubClient.Close()

	subClient, err := Connect(integrationConfig("gateway-int-cmd-sub"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer subClient.Close()

	topics := Topics{}
	commands := make(chan string, 1)
	var once sync.Once

	err = subClient.Subscribe(topics.CommandSubscribe("gateway-001"), 1, func(topic string, payload []byte) error {
		once.Do(func() {
			commands <- topic
		})
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	cmdTopic := topics.CommandPrefix("gateway-001") + "lights/3/on"
	if err := pubClient.PublishString(cmdTopic, "ON", 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case topic := <-commands:
		if topic != cmdTopic {
			t.Errorf("command topic = %q, want %q", topic, cmdTopic)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for command")
	}
}

// TestIntegration_LoggerAttach verifies a logger can be attached and
// detached on a live connection.
func TestIntegration_LoggerAttach(t *testing.T) {
	client, err := Connect(integrationConfig("gateway-int-logger"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	logger := &recordingLogger{}
	client.SetLogger(logger)

	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}

	client.SetLogger(nil)

	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}

// recordingLogger implements Logger for integration tests.
type recordingLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *recordingLogger) Error(msg string, args ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
