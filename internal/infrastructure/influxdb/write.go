package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names for channel history.
const (
	measurementChannelValues = "channel_values"
	measurementChannelStates = "channel_states"
)

// WritePoint enqueues a point on the batched write pipeline. Points are
// timestamped at enqueue time and dropped silently when the client is
// closed, so event handling never blocks on history.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// WriteChannelValue records a numeric channel reading, such as a
// brightness level or a temperature.
//
// Example:
//
//	client.WriteChannelValue("gateway-001", "sensors/5/temperature", 21.5)
func (c *Client) WriteChannelValue(gatewayID string, channel string, value float64) {
	c.WritePoint(measurementChannelValues,
		map[string]string{"gateway_id": gatewayID, "channel": channel},
		map[string]interface{}{"value": value})
}

// WriteChannelState records a discrete channel transition. Used for
// on/off and reachability channels where the series of transitions
// matters more than a numeric value.
func (c *Client) WriteChannelState(gatewayID string, channel string, state string) {
	c.WritePoint(measurementChannelStates,
		map[string]string{"gateway_id": gatewayID, "channel": channel},
		map[string]interface{}{"state": state})
}
