package api

import (
	"encoding/json"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/jameshartt/tutti/internal/core/room"
)

// ServerResponse represents the /api/server response.
type ServerResponse struct {
	Version         string   `json:"version"`
	Uptime          int64    `json:"uptime"` // seconds
	GoVersion       string   `json:"go_version"`
	EnabledServices []string `json:"enabled_services"`
}

// RoomResponse represents one room in the /api/rooms listing.
type RoomResponse struct {
	Name             string `json:"name"`
	ParticipantCount int    `json:"participant_count"`
	MaxParticipants  int    `json:"max_participants"`
	Claimed          bool   `json:"claimed"`
}

// RoomsResponse represents the /api/rooms response.
type RoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

// JoinResponse represents the /api/rooms/{name}/join response.
type JoinResponse struct {
	ParticipantID string `json:"participant_id"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleServer(w http.ResponseWriter, r *http.Request) {
	response := ServerResponse{
		Version:   "0.1.0",
		Uptime:    time.Now().Unix() - s.startTime,
		GoVersion: runtime.Version(),
		EnabledServices: []string{
			"room_api",
			"reference_transport",
		},
	}
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Service) handleListRooms(w http.ResponseWriter, r *http.Request) {
	summaries := s.manager.ListRooms()
	rooms := make([]RoomResponse, 0, len(summaries))
	for _, rs := range summaries {
		rooms = append(rooms, RoomResponse{
			Name:             rs.Name,
			ParticipantCount: rs.ParticipantCount,
			MaxParticipants:  rs.MaxParticipants,
			Claimed:          rs.Claimed,
		})
	}
	s.writeJSON(w, http.StatusOK, RoomsResponse{Rooms: rooms})
}

func (s *Service) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Alias    string `json:"alias,omitempty"`
		Password string `json:"password,omitempty"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	id, res := s.manager.JoinRoom(name, req.Alias, req.Password)
	switch res {
	case room.JoinSuccess:
		s.writeJSON(w, http.StatusOK, JoinResponse{ParticipantID: id})
	case room.JoinRoomNotFound:
		s.writeError(w, http.StatusNotFound, "room not found")
	case room.JoinRoomFull:
		s.writeError(w, http.StatusConflict, "room is full")
	case room.JoinPasswordRequired:
		s.writeError(w, http.StatusUnauthorized, "password required")
	case room.JoinPasswordIncorrect:
		s.writeError(w, http.StatusForbidden, "incorrect password")
	default:
		s.writeError(w, http.StatusInternalServerError, "unexpected join result")
	}
}

func (s *Service) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		ParticipantID string `json:"participant_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		s.writeError(w, http.StatusBadRequest, "participant_id is required")
		return
	}

	s.manager.LeaveRoom(name, req.ParticipantID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleClaimRoom(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := s.manager.ClaimRoom(name, req.Password); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleVacateRequest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	sourceIP := remoteIP(r)

	switch s.manager.VacateRequest(name, sourceIP) {
	case room.VacateSent:
		w.WriteHeader(http.StatusNoContent)
	case room.VacateRoomNotFound:
		s.writeError(w, http.StatusNotFound, "room not found")
	case room.VacateRoomEmpty:
		s.writeError(w, http.StatusConflict, "room is empty")
	case room.VacateCooldownActive:
		s.writeError(w, http.StatusTooManyRequests, "vacate request already sent recently")
	default:
		s.writeError(w, http.StatusInternalServerError, "unexpected vacate result")
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
