// Package api implements the room REST surface: listing rooms and
// joining, leaving, claiming, or requesting a vacate on one of them.
// Handlers are fast and allocation-light; nothing here touches the
// audio path.
package api

import (
	"net/http"
	"time"

	"github.com/jameshartt/tutti/internal/core/room"
)

// Service provides the room HTTP API.
type Service struct {
	manager   *room.Manager
	startTime int64
}

// NewService creates a new API service backed by manager.
func NewService(manager *room.Manager) *Service {
	return &Service{
		manager:   manager,
		startTime: time.Now().Unix(),
	}
}

// RegisterRoutes registers the room API routes on the provided mux,
// using the method-and-path patterns supported since Go 1.22.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/server", s.handleServer)
	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms/{name}/join", s.handleJoinRoom)
	mux.HandleFunc("POST /api/rooms/{name}/leave", s.handleLeaveRoom)
	mux.HandleFunc("POST /api/rooms/{name}/claim", s.handleClaimRoom)
	mux.HandleFunc("POST /api/rooms/{name}/vacate-request", s.handleVacateRequest)
}
