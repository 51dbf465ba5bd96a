package gateway

import (
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
)

// Event is a push notification from the gateway's event stream.
type Event struct {
	Type     string          `json:"t"`
	Event    string          `json:"e"`
	Resource string          `json:"r"`
	ID       string          `json:"id"`
	State    json.RawMessage `json:"state,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// Event kinds carried in the "e" field.
const (
	EventAdded   = "added"
	EventChanged = "changed"
	EventDeleted = "deleted"
)

// EventStream is the websocket connection to the gateway's event
// port. It implements adapter.EventTransport: Connect dials
// asynchronously and reports outcomes to the registered listener,
// and incoming events are handed to the event handler.
//
// Thread Safety: all methods are safe for concurrent use.
type EventStream struct {
	logger Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	listener adapter.EventListener
	handler  func(Event)
	closing  bool
}

// NewEventStream creates a disconnected event stream.
func NewEventStream(logger Logger) *EventStream {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventStream{logger: logger}
}

// SetListener registers the connection lifecycle listener.
// Must be called before Connect.
func (s *EventStream) SetListener(l adapter.EventListener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// SetHandler registers the callback invoked for every parsed event.
func (s *EventStream) SetHandler(h func(Event)) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Connect starts dialing addr (host:port). The outcome arrives at the
// listener as Connected or ConnectionError.
func (s *EventStream) Connect(addr string) error {
	s.mu.Lock()
	s.closing = false
	s.mu.Unlock()

	u := url.URL{Scheme: "ws", Host: addr}
	go s.dial(u.String())
	return nil
}

// Close tears down the current connection. Safe to call when not
// connected; a dial still in flight will discard its result.
func (s *EventStream) Close() error {
	s.mu.Lock()
	s.closing = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports whether the event stream is currently up.
func (s *EventStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *EventStream) dial(rawURL string) {
	conn, resp, err := websocket.DefaultDialer.Dial(rawURL, nil) //nolint:bodyclose // closed below
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	listener := s.listener
	if err != nil {
		s.mu.Unlock()
		if listener != nil {
			listener.ConnectionError(err)
		}
		return
	}
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	old := s.conn
	s.conn = conn
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	s.logger.Debug("event stream dialled", "url", rawURL)
	if listener != nil {
		listener.Connected()
	}
	go s.readLoop(conn)
}

// readLoop consumes messages until the connection drops. A read error
// on the live connection is reported as a loss unless Close initiated
// the teardown.
func (s *EventStream) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasCurrent := s.conn == conn
			if wasCurrent {
				s.conn = nil
			}
			closing := s.closing
			listener := s.listener
			s.mu.Unlock()

			conn.Close()
			if wasCurrent && !closing && listener != nil {
				listener.ConnectionLost(err.Error())
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("unparseable event", "error", err)
			continue
		}

		s.mu.Lock()
		handler := s.handler
		s.mu.Unlock()
		if handler != nil {
			handler(ev)
		}
	}
}
