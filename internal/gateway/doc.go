// Package gateway binds the lifecycle engine to a concrete Zigbee
// gateway: its REST API, its websocket event stream, and the device
// inventory behind both.
//
// Three pieces live here:
//
//   - Client: the HTTP transport for the gateway REST API, with
//     access keys redacted from logs.
//   - EventStream: the websocket event connection, implementing
//     adapter.EventTransport with asynchronous dialling.
//   - Manager: the device and channel layer, implementing
//     adapter.DeviceOps. It owns the last-known value of every
//     channel and publishes only actual changes, whether a value
//     arrives from a poll or a push event.
//
// Channel ids follow <resource>/<device id>/<state field>, for
// example lights/3/bri or sensors/5/temperature.
package gateway
