// Package mqtt provides MQTT client connectivity for the gateway adapter.
//
// This package manages:
//   - Connection to the platform broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The adapter speaks to the Gray Logic platform exclusively over MQTT.
// Channel values, adapter status, and discovered sub-devices are published
// to the broker; commands and the core's availability arrive as
// subscriptions.
//
//	Gateway Adapter ↔ MQTT Broker ↔ Gray Logic Core
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to commands for this gateway
//	err = client.Subscribe(mqtt.Topics{}.CommandSubscribe("gateway-001"), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a channel value
//	topic := mqtt.Topics{}.ChannelState("gateway-001", "lights/3/on")
//	client.Publish(topic, []byte(`{"value":true}`), 1, true)
package mqtt
