package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
)

// seedTimeout bounds one registry seeding pass.
const seedTimeout = 10 * time.Second

// Publisher sends retained discovery announcements to the platform.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

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

// announcement is the retained discovery payload for one device.
type announcement struct {
	ID           string `json:"id"`
	GatewayID    string `json:"gateway_id"`
	Resource     string `json:"resource"`
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	UniqueID     string `json:"unique_id,omitempty"`
}

// Service consumes full-state fetch outcomes: every attempt is
// recorded, and successful payloads seed the device registry and are
// announced to the platform as retained discovery messages.
//
// It implements adapter.DiscoveryNotifier. db and publisher are both
// optional; a nil collaborator disables that half.
type Service struct {
	gatewayID string
	db        *database.DB
	publisher Publisher
	logger    Logger

	mu       sync.Mutex
	attempts int
	devices  int
	lastSeen time.Time
}

// New creates the discovery service for one gateway.
func New(gatewayID string, db *database.DB, publisher Publisher, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		gatewayID: gatewayID,
		db:        db,
		publisher: publisher,
		logger:    logger,
	}
}

// StateFetched implements adapter.DiscoveryNotifier. state is nil
// when a fetch attempt yielded no payload; the attempt still counts.
func (s *Service) StateFetched(state *adapter.FullState) {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.mu.Unlock()

	if state == nil {
		s.logger.Debug("full state attempt yielded no payload", "attempt", attempt)
		return
	}

	total := len(state.Lights) + len(state.Sensors)
	s.mu.Lock()
	s.devices = total
	s.lastSeen = time.Now()
	s.mu.Unlock()

	s.logger.Info("discovery pass",
		"attempt", attempt,
		"lights", len(state.Lights),
		"sensors", len(state.Sensors),
	)

	ctx, cancel := context.WithTimeout(context.Background(), seedTimeout)
	defer cancel()

	s.handleResource(ctx, "lights", state.Lights)
	s.handleResource(ctx, "sensors", state.Sensors)
}

// Stats returns attempt and device counters for observability.
func (s *Service) Stats() (attempts, devices int, lastSeen time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, s.devices, s.lastSeen
}

func (s *Service) handleResource(ctx context.Context, resource string, devices map[string]adapter.DeviceInfo) {
	for id, dev := range devices {
		deviceID := resource + "/" + id
		if err := s.seed(ctx, deviceID, resource, dev); err != nil {
			s.logger.Warn("registry seed failed", "device", deviceID, "error", err)
		}
		s.announce(deviceID, resource, dev)
	}
}

// seed upserts the device row. Descriptive fields are only written on
// first sight; later passes just refresh last_seen, preserving any
// user edits.
func (s *Service) seed(ctx context.Context, deviceID, resource string, dev adapter.DeviceInfo) error {
	if s.db == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gateway_devices
			(id, resource, name, type, model, manufacturer, unique_id, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen = excluded.last_seen`,
		deviceID, resource, dev.Name, dev.Type, dev.ModelID, dev.Manufacturer, dev.UniqueID, now, now)
	if err != nil {
		return fmt.Errorf("discovery: upsert %s: %w", deviceID, err)
	}
	return nil
}

// announce publishes the retained discovery message for a device.
func (s *Service) announce(deviceID, resource string, dev adapter.DeviceInfo) {
	if s.publisher == nil || !s.publisher.IsConnected() {
		return
	}

	payload, err := json.Marshal(announcement{
		ID:           deviceID,
		GatewayID:    s.gatewayID,
		Resource:     resource,
		Name:         dev.Name,
		Type:         dev.Type,
		Model:        dev.ModelID,
		Manufacturer: dev.Manufacturer,
		UniqueID:     dev.UniqueID,
	})
	if err != nil {
		s.logger.Warn("discovery payload encode failed", "device", deviceID, "error", err)
		return
	}

	topic := mqtt.Topics{}.Discovery(s.gatewayID, deviceID)
	if err := s.publisher.Publish(topic, payload, 1, true); err != nil {
		s.logger.Warn("discovery publish failed", "device", deviceID, "error", err)
	}
}

var _ adapter.DiscoveryNotifier = (*Service)(nil)
