// Package api provides the local admin HTTP API for the gateway adapter.
//
// It exposes read-only views of the adapter's connection status, the
// discovered device registry, persisted properties, and operational
// metrics, plus a command endpoint for manual refreshes and testing.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
	"github.com/nerrad567/gray-logic-gateway/internal/corelink"
	"github.com/nerrad567/gray-logic-gateway/internal/discovery"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/propstore"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Logger    *logging.Logger
	Adapter   *adapter.Adapter
	Devices   *gateway.Manager
	Store     *propstore.Store
	Discovery *discovery.Service // Optional: metrics omit discovery stats when nil
	Core      *corelink.Link     // Optional: metrics omit core link stats when nil
	DB        *database.DB       // Optional: device listing falls back to live channels when nil
	Version   string
}

// Server is the admin HTTP server for the gateway adapter.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	adapter   *adapter.Adapter
	devices   *gateway.Manager
	store     *propstore.Store
	discovery *discovery.Service
	core      *corelink.Link
	db        *database.DB
	version   string
	started   time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Adapter == nil {
		return nil, fmt.Errorf("adapter is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device manager is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("property store is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		adapter:   deps.Adapter,
		devices:   deps.Devices,
		store:     deps.Store,
		discovery: deps.Discovery,
		core:      deps.Core,
		db:        deps.DB,
		version:   deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.started = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("admin API starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin API error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("admin API shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down admin API: %w", err)
	}
	return nil
}
