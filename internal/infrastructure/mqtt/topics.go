package mqtt

import "fmt"

// Topic prefixes per the Gray Logic MQTT specification.
//
// The adapter participates in the platform's flat bridge scheme:
// graylogic/{category}/{protocol}/{address}. This gateway adapter publishes
// under the "zigbee" protocol segment.
const (
	// TopicPrefix is the base for all platform topics.
	TopicPrefix = "graylogic"

	// TopicProtocol is the protocol segment used by this adapter.
	TopicProtocol = "zigbee"

	// TopicCoreStatus is the retained topic where the platform core
	// publishes its own availability. The adapter subscribes to it to
	// decide whether the parent bridge is reachable.
	TopicCoreStatus = "graylogic/system/status"
)

// Topics provides builders for the adapter's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ChannelState("gateway-001", "sensors/5/temperature")
//	// Returns: "graylogic/state/zigbee/gateway-001/sensors/5/temperature"
type Topics struct{}

// AdapterStatus returns the retained topic for the adapter's host-visible
// connection status (state, detail, description).
//
// Example: graylogic/health/zigbee/gateway-001
func (Topics) AdapterStatus(gatewayID string) string {
	return fmt.Sprintf("%s/health/%s/%s", TopicPrefix, TopicProtocol, gatewayID)
}

// ChannelState returns the topic for a single channel value update.
//
// Example: graylogic/state/zigbee/gateway-001/sensors/5/temperature
func (Topics) ChannelState(gatewayID, channel string) string {
	return fmt.Sprintf("%s/state/%s/%s/%s", TopicPrefix, TopicProtocol, gatewayID, channel)
}

// CommandSubscribe returns the wildcard pattern for commands addressed to
// any channel of this adapter.
//
// Example: graylogic/command/zigbee/gateway-001/#
func (Topics) CommandSubscribe(gatewayID string) string {
	return fmt.Sprintf("%s/command/%s/%s/#", TopicPrefix, TopicProtocol, gatewayID)
}

// CommandPrefix returns the topic prefix stripped from incoming command
// topics to recover the channel identifier.
func (Topics) CommandPrefix(gatewayID string) string {
	return fmt.Sprintf("%s/command/%s/%s/", TopicPrefix, TopicProtocol, gatewayID)
}

// Discovery returns the retained topic for a discovered sub-device.
//
// Example: graylogic/discovery/zigbee/gateway-001/sensors/5
func (Topics) Discovery(gatewayID, deviceID string) string {
	return fmt.Sprintf("%s/discovery/%s/%s/%s", TopicPrefix, TopicProtocol, gatewayID, deviceID)
}

// ClientStatus returns the retained availability topic for this adapter
// process. Used for the LWT and graceful online/offline messages.
//
// Example: graylogic/system/status/graylogic-gateway
func (Topics) ClientStatus(clientID string) string {
	return fmt.Sprintf("%s/%s", TopicCoreStatus, clientID)
}

// CoreStatus returns the retained topic carrying the platform core's
// availability.
func (Topics) CoreStatus() string {
	return TopicCoreStatus
}
