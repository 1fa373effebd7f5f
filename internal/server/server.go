// Package server wires the room manager into the process's HTTP
// surfaces: the health check, the room REST API, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jameshartt/tutti/internal/config"
	"github.com/jameshartt/tutti/internal/core/room"
	"github.com/jameshartt/tutti/internal/svc/api"
	"github.com/jameshartt/tutti/internal/svc/health"
)

// Server wraps the process's two HTTP listeners — health and the room
// API — and the room manager they sit in front of.
type Server struct {
	manager     *room.Manager
	healthServer *http.Server
	apiServer    *http.Server
}

// New creates a new server instance with the given configuration. The
// room manager's RT threads and reaper start immediately; the HTTP
// listeners are not started until Start is called.
func New(cfg *config.Config) *Server {
	manager := room.NewManager(cfg.Room.MaxParticipants, cfg.Room.RingCapacity, room.ReaperConfig{
		SweepInterval:     cfg.Room.ReaperSweepPeriod(),
		UnboundTimeout:    cfg.Room.UnboundTimeout(),
		InactivityTimeout: cfg.Room.InactivityTimeout(),
	})
	manager.StartReaper()

	healthMux := http.NewServeMux()
	health.New().RegisterRoutes(healthMux)

	apiMux := http.NewServeMux()
	api.NewService(manager).RegisterRoutes(apiMux)

	return &Server{
		manager: manager,
		healthServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.HealthPort),
			Handler: healthMux,
		},
		apiServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler: apiMux,
		},
	}
}

// Manager returns the underlying room manager, so a transport stack can
// be wired to the same rooms this server exposes over REST.
func (s *Server) Manager() *room.Manager {
	return s.manager
}

// Start begins serving HTTP requests on both listeners. Blocks until
// the API listener is stopped or encounters an error.
func (s *Server) Start() error {
	go func() {
		if err := s.healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// A health listener failure is discarded: it is neither
			// logged nor returned. Only the API listener's error is
			// returned from Start.
			_ = err
		}
	}()
	return s.apiServer.ListenAndServe()
}

// Shutdown gracefully stops both listeners and the room manager within
// the given context's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.healthServer.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.apiServer.Shutdown(ctx); err != nil {
		return err
	}
	s.manager.Shutdown()
	return nil
}

// ShutdownWithTimeout stops the server with a fixed 5-second timeout.
func (s *Server) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
