// Package influxdb provides InfluxDB connectivity for the gateway adapter.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, channel history writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Numeric channel history (brightness, temperature, power)
//   - Discrete channel state transitions (on/off, reachability)
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "graylogic",
//	    Bucket: "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteChannelValue("gateway-001", "sensors/5/temperature", 21.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps network overhead low for high-frequency event streams.
package influxdb
