// Package corelink binds the adapter to the Gray Logic platform over
// MQTT.
//
// One Link per adapter provides four surfaces:
//
//   - the status sink: adapter health retained on the health topic
//   - the bridge accessor: platform availability derived from the
//     core's retained status message and the broker connection
//   - the channel publisher: retained channel state updates
//   - the command intake: channel commands routed to the lifecycle
//     engine
//
// Topic layout lives in the mqtt package's Topics builders.
package corelink
