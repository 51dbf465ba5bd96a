package adapter

import "context"

// State is the externally visible connection state of the adapter.
type State string

// Adapter states.
const (
	StateOnline  State = "ONLINE"
	StateOffline State = "OFFLINE"
)

// Detail qualifies an OFFLINE state with the reason for it.
type Detail string

// Status details.
const (
	DetailNone                 Detail = "NONE"
	DetailConfigurationError   Detail = "CONFIGURATION_ERROR"
	DetailConfigurationPending Detail = "CONFIGURATION_PENDING"
	DetailCommunicationError   Detail = "COMMUNICATION_ERROR"
	DetailBridgeOffline        Detail = "BRIDGE_OFFLINE"
	DetailGone                 Detail = "GONE"
)

// Status is the adapter's externally visible health tuple.
//
// Description is optional human-readable context; empty means absent.
type Status struct {
	State       State
	Detail      Detail
	Description string
}

// StatusSink receives status publications from the adapter.
// Implemented by the platform link (MQTT health topic).
type StatusSink interface {
	// PublishStatus propagates a status change to the host platform.
	PublishStatus(status Status)
}

// Response is a REST response from the gateway.
type Response struct {
	Code int
	Body []byte
}

// RESTClient performs HTTP requests against the gateway's REST API.
// Implemented by the gateway transport layer.
type RESTClient interface {
	// Get issues a GET request to the given API path.
	Get(ctx context.Context, path string) (*Response, error)

	// Post issues a POST request with a JSON body to the given API path.
	Post(ctx context.Context, path string, body []byte) (*Response, error)
}

// EventTransport is the persistent event connection to the gateway.
//
// Connect initiates the connection asynchronously; outcomes are
// delivered to the registered EventListener, never returned here
// beyond immediate address errors.
type EventTransport interface {
	// Connect starts connecting to the given host:port address.
	Connect(addr string) error

	// Close tears down the connection. Safe to call when not connected.
	Close() error

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool
}

// EventListener receives connection lifecycle callbacks from an
// EventTransport. The Session implements this.
type EventListener interface {
	// Connected is called when the transport comes up.
	Connected()

	// ConnectionLost is called when an established connection drops.
	ConnectionLost(reason string)

	// ConnectionError is called when a connection attempt fails.
	ConnectionError(err error)
}

// BridgeAccessor reports the availability of the parent platform the
// adapter bridges into. Implemented by the platform link.
type BridgeAccessor interface {
	// Online reports whether the parent platform is reachable and healthy.
	Online() bool
}

// ConfigStore persists the adapter's credential and gateway-reported
// properties. Property writes must not be reported back to the adapter
// as user-driven configuration updates.
type ConfigStore interface {
	// Credential returns the stored gateway access key, or "" if absent.
	Credential() string

	// SetCredential persists a newly granted access key.
	SetCredential(key string) error

	// SetProperties merges gateway-reported properties without
	// triggering a configuration-update notification.
	SetProperties(props map[string]string) error
}

// DiscoveryNotifier receives the outcome of every full-state fetch
// attempt, successful or not.
type DiscoveryNotifier interface {
	// StateFetched is called exactly once per fetch attempt.
	// state is nil when the attempt yielded no payload.
	StateFetched(state *FullState)
}

// DeviceOps is the device-specific surface the orchestrator drives.
// Implemented by the channel layer.
type DeviceOps interface {
	// RefreshModels re-reads the device inventory from the gateway.
	RefreshModels(ctx context.Context) error

	// RefreshChannels polls current values for all exposed channels.
	RefreshChannels(ctx context.Context) error

	// RefreshChannel polls the current value for a single channel.
	RefreshChannel(ctx context.Context, channel string) error

	// ExecuteCommand dispatches a command to a device channel.
	ExecuteCommand(ctx context.Context, channel string, command string) error
}

// GatewayInfo is the configuration section of a full-state payload.
//
// An empty Name means the responding device is not a supported
// gateway. An EventPort of zero means the firmware does not advertise
// an event stream.
type GatewayInfo struct {
	Name            string `json:"name"`
	APIVersion      string `json:"apiversion"`
	SoftwareVersion string `json:"swversion"`
	FirmwareVersion string `json:"fwversion"`
	UUID            string `json:"uuid"`
	EventPort       int    `json:"eventport"`
	IPAddress       string `json:"ipaddress"`
}

// DeviceInfo describes one sub-device in a full-state payload.
type DeviceInfo struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	ModelID      string `json:"modelid"`
	Manufacturer string `json:"manufacturername"`
	UniqueID     string `json:"uniqueid"`
}

// FullState is the gateway's one-shot self-description payload,
// fetched once per bring-up and consumed immediately.
type FullState struct {
	Gateway GatewayInfo           `json:"config"`
	Lights  map[string]DeviceInfo `json:"lights"`
	Sensors map[string]DeviceInfo `json:"sensors"`
}

// Logger is the logging interface used by this package.
// Satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}
