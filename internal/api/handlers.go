package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// statusResponse is the JSON shape of the adapter's connection status.
type statusResponse struct {
	State          string `json:"state"`
	Detail         string `json:"detail"`
	Description    string `json:"description,omitempty"`
	Published      bool   `json:"published"`
	Refreshing     bool   `json:"refreshing"`
	EventConnected bool   `json:"event_connected"`
}

// handleStatus returns the adapter's last published status plus live
// refresh-job and event-stream state. Before the first publication the
// state and detail fields are empty and published is false.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Refreshing:     s.adapter.Refreshing(),
		EventConnected: s.adapter.EventConnected(),
	}
	if status, ok := s.adapter.Status(); ok {
		resp.State = string(status.State)
		resp.Detail = string(status.Detail)
		resp.Description = status.Description
		resp.Published = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics returns operational counters for monitoring.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	metrics := map[string]any{
		"uptime_seconds":  int64(time.Since(s.started).Seconds()),
		"device_count":    s.devices.DeviceCount(),
		"channel_count":   len(s.devices.Channels()),
		"refreshing":      s.adapter.Refreshing(),
		"event_connected": s.adapter.EventConnected(),
	}
	if s.discovery != nil {
		attempts, devices, lastSeen := s.discovery.Stats()
		disc := map[string]any{
			"fetch_attempts": attempts,
			"devices_seen":   devices,
		}
		if !lastSeen.IsZero() {
			disc["last_seen"] = lastSeen.UTC().Format(time.RFC3339)
		}
		metrics["discovery"] = disc
	}
	if s.core != nil {
		core := map[string]any{
			"online": s.core.Online(),
		}
		if seen := s.core.CoreSeen(); !seen.IsZero() {
			core["last_seen"] = seen.UTC().Format(time.RFC3339)
		}
		metrics["core"] = core
	}
	writeJSON(w, http.StatusOK, metrics)
}

// handleProperties returns the persisted adapter properties. The
// property store masks credential values before they reach this handler.
func (s *Server) handleProperties(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.All())
}

// handleListChannels returns the live channel identifiers currently
// tracked by the device manager.
func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"channels": s.devices.Channels(),
	})
}

// deviceRecord is a row from the persisted device registry.
type deviceRecord struct {
	ID           string `json:"id"`
	Resource     string `json:"resource"`
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	UniqueID     string `json:"unique_id,omitempty"`
	FirstSeen    string `json:"first_seen"`
	LastSeen     string `json:"last_seen"`
}

// handleListDevices returns the persisted device registry. Without a
// database the listing falls back to the live channel set.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.handleListChannels(w, r)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, resource, name, type, model, manufacturer, unique_id, first_seen, last_seen
		FROM gateway_devices
		ORDER BY id`)
	if err != nil {
		s.logger.Error("device listing failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}
	defer rows.Close() //nolint:errcheck // Read-only query

	devices := []deviceRecord{}
	for rows.Next() {
		var d deviceRecord
		if err := rows.Scan(&d.ID, &d.Resource, &d.Name, &d.Type, &d.Model,
			&d.Manufacturer, &d.UniqueID, &d.FirstSeen, &d.LastSeen); err != nil {
			s.logger.Error("device row scan failed", "error", err)
			writeInternalError(w, "failed to list devices")
			return
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("device listing failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single persisted device by resource and ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeNotFound(w, "device registry not available")
		return
	}

	deviceID := chi.URLParam(r, "resource") + "/" + chi.URLParam(r, "id")

	var d deviceRecord
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, resource, name, type, model, manufacturer, unique_id, first_seen, last_seen
		FROM gateway_devices
		WHERE id = ?`, deviceID).
		Scan(&d.ID, &d.Resource, &d.Name, &d.Type, &d.Model,
			&d.Manufacturer, &d.UniqueID, &d.FirstSeen, &d.LastSeen)
	if err != nil {
		writeNotFound(w, "device not found: "+deviceID)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// commandRequest is the payload for the manual command endpoint.
type commandRequest struct {
	Channel string `json:"channel"`
	Command string `json:"command"`
}

// handleCommand dispatches a command through the adapter, exactly as if
// it had arrived over MQTT. The refresh pseudo-command triggers a
// throttled model refresh plus a single-channel refresh.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	s.adapter.HandleCommand(req.Channel, req.Command)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"channel":  req.Channel,
		"command":  req.Command,
	})
}
