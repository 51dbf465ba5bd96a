package adapter

import (
	"fmt"
	"sync"
	"time"
)

// sessionState tracks the persistent connection lifecycle.
type sessionState int

const (
	sessionDisconnected sessionState = iota
	sessionConnecting
	sessionConnected
)

// Session owns the single persistent event connection to the gateway
// and reconnects it after failures.
//
// Two failure modes are distinguished: a connection lost after being
// up is retried immediately, while a failed connection attempt backs
// off for one poll interval. The reconnect flag gates every entry
// point so a timer firing after teardown cannot revive the session.
//
// Session implements EventListener; the transport delivers its
// lifecycle callbacks here.
type Session struct {
	transport EventTransport
	status    *StatusController
	slot      *timerSlot
	interval  time.Duration
	logger    Logger

	mu        sync.Mutex
	state     sessionState
	host      string
	port      int
	reconnect bool
}

// newSession wires a session for the given transport.
func newSession(transport EventTransport, status *StatusController, slot *timerSlot, host string, interval time.Duration, logger Logger) *Session {
	return &Session{
		transport: transport,
		status:    status,
		slot:      slot,
		host:      host,
		interval:  interval,
		logger:    logger,
	}
}

// SetPort records the event port to connect to. Zero means unknown.
func (s *Session) SetPort(port int) {
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
}

// EnableReconnect arms the session. Until called, and after Stop,
// Start is a no-op.
func (s *Session) EnableReconnect() {
	s.mu.Lock()
	s.reconnect = true
	s.mu.Unlock()
}

// Start initiates the connection.
//
// No-op when already connected, when no port is known, or when
// reconnection is disabled. Otherwise a watchdog retry is armed one
// poll interval out, covering a connect attempt that hangs, and the
// transport is told to connect.
func (s *Session) Start() {
	s.mu.Lock()
	if s.state == sessionConnected || s.port == 0 || !s.reconnect {
		s.mu.Unlock()
		return
	}
	s.state = sessionConnecting
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.mu.Unlock()

	s.logger.Debug("connecting event stream", "addr", addr)
	s.slot.schedule(s.interval, s.Start)

	if err := s.transport.Connect(addr); err != nil {
		s.ConnectionError(err)
	}
}

// Stop disables reconnection, cancels any pending retry, and closes
// the connection. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	s.reconnect = false
	s.state = sessionDisconnected
	s.mu.Unlock()

	s.slot.cancel()
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("event stream close", "error", err)
	}
}

// Connected implements EventListener.
func (s *Session) Connected() {
	s.mu.Lock()
	s.state = sessionConnected
	s.mu.Unlock()

	s.slot.cancel()
	s.logger.Info("event stream connected")
	s.status.Set(StateOnline, DetailNone, "")
}

// ConnectionLost implements EventListener. A clean loss after being
// up is retried immediately.
func (s *Session) ConnectionLost(reason string) {
	s.mu.Lock()
	s.state = sessionDisconnected
	s.mu.Unlock()

	s.logger.Warn("event stream lost", "reason", reason)
	s.status.Set(StateOffline, DetailCommunicationError, reason)
	s.Start()
}

// ConnectionError implements EventListener. A failed attempt backs
// off for one poll interval before retrying.
func (s *Session) ConnectionError(err error) {
	s.mu.Lock()
	s.state = sessionDisconnected
	enabled := s.reconnect
	s.mu.Unlock()

	s.logger.Warn("event stream connect failed", "error", err)
	s.status.Set(StateOffline, DetailCommunicationError, err.Error())

	s.slot.cancel()
	if enabled {
		s.slot.schedule(s.interval, s.Start)
	}
}
