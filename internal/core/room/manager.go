package room

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// JoinResult reports the outcome of a Manager.JoinRoom call.
type JoinResult int

const (
	JoinSuccess JoinResult = iota
	JoinRoomNotFound
	JoinRoomFull
	JoinPasswordRequired
	JoinPasswordIncorrect
)

// VacateResult reports the outcome of a Manager.VacateRequest call.
type VacateResult int

const (
	VacateSent VacateResult = iota
	VacateRoomNotFound
	VacateRoomEmpty
	VacateCooldownActive
)

// vacateCooldown is the minimum time between two vacate requests from the
// same source IP against the same room, to keep the feature from being
// used to harass occupants.
const vacateCooldown = 24 * time.Hour

// ReaperConfig controls how often and under what thresholds Manager's
// background reaper sweeps rooms for stale participants.
type ReaperConfig struct {
	SweepInterval     time.Duration
	UnboundTimeout    time.Duration
	InactivityTimeout time.Duration
}

// DefaultReaperConfig matches the thresholds used by every room unless a
// deployment overrides them.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		SweepInterval:     5 * time.Second,
		UnboundTimeout:    30 * time.Second,
		InactivityTimeout: 60 * time.Second,
	}
}

// Manager owns the fixed roster of rooms for one venue, and the
// background reaper that evicts stale participants from all of them.
type Manager struct {
	maxParticipants int
	ringCapacity    int
	reaperCfg       ReaperConfig

	rooms map[string]*Room

	cooldownMu sync.Mutex
	cooldowns  map[string]time.Time // "sourceIP:roomName" -> last vacate request time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// NewManager creates a Manager and its fixed set of rooms, starting each
// room's RT thread immediately.
func NewManager(maxParticipants, ringCapacity int, reaperCfg ReaperConfig) *Manager {
	m := &Manager{
		maxParticipants: maxParticipants,
		ringCapacity:    ringCapacity,
		reaperCfg:       reaperCfg,
		rooms:           make(map[string]*Room, len(names)),
		cooldowns:       make(map[string]time.Time),
	}
	for _, n := range names {
		r := New(n, maxParticipants, ringCapacity)
		r.Start()
		m.rooms[n] = r
	}
	return m
}

// GetRoom returns the named room, or nil if no room by that name exists.
func (m *Manager) GetRoom(name string) *Room {
	return m.rooms[name]
}

// RoomSummary is the listing shape returned by ListRooms.
type RoomSummary struct {
	Name              string
	ParticipantCount  int
	MaxParticipants   int
	Claimed           bool
}

// ListRooms returns every room's summary, sorted by name.
func (m *Manager) ListRooms() []RoomSummary {
	out := make([]RoomSummary, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, RoomSummary{
			Name:             r.Name,
			ParticipantCount: r.ParticipantCount(),
			MaxParticipants:  m.maxParticipants,
			Claimed:          r.IsClaimed(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// maxAliasLength is the display alias length cap.
const maxAliasLength = 32

// JoinRoom reserves a new participant slot in the named room, generating
// its id. alias is the participant's display name, truncated to
// maxAliasLength; an empty alias falls back to the generated id. Returns
// the new participant id on success.
func (m *Manager) JoinRoom(roomName, alias, password string) (string, JoinResult) {
	r := m.rooms[roomName]
	if r == nil {
		return "", JoinRoomNotFound
	}
	if r.IsClaimed() {
		if password == "" {
			return "", JoinPasswordRequired
		}
		if !r.CheckPassword(password) {
			return "", JoinPasswordIncorrect
		}
	}
	id, err := generateID()
	if err != nil {
		return "", JoinRoomNotFound
	}
	if len(alias) > maxAliasLength {
		alias = alias[:maxAliasLength]
	}
	if alias == "" {
		alias = id
	}
	if err := r.AddParticipant(id, alias); err != nil {
		return "", JoinRoomFull
	}
	return id, JoinSuccess
}

// LeaveRoom removes a participant from the named room.
func (m *Manager) LeaveRoom(roomName, participantID string) {
	r := m.rooms[roomName]
	if r == nil {
		return
	}
	r.RemoveParticipant(participantID)
}

// ClaimRoom sets a password on the named room.
func (m *Manager) ClaimRoom(roomName, password string) error {
	r := m.rooms[roomName]
	if r == nil {
		return fmt.Errorf("room %q not found", roomName)
	}
	return r.Claim(password)
}

// VacateRequest asks every bound occupant of roomName to leave, subject
// to a per-source-IP cooldown that keeps the request from being replayed
// to harass current occupants.
func (m *Manager) VacateRequest(roomName, sourceIP string) VacateResult {
	r := m.rooms[roomName]
	if r == nil {
		return VacateRoomNotFound
	}
	if r.ParticipantCount() == 0 {
		return VacateRoomEmpty
	}

	key := sourceIP + ":" + roomName
	now := time.Now()

	m.cooldownMu.Lock()
	if last, ok := m.cooldowns[key]; ok && now.Sub(last) < vacateCooldown {
		m.cooldownMu.Unlock()
		return VacateCooldownActive
	}
	m.cooldowns[key] = now
	m.cooldownMu.Unlock()

	r.BroadcastVacateRequest()
	return VacateSent
}

// StartReaper launches the background goroutine that periodically sweeps
// every room for stale participants. Sleeps in short chunks so StopReaper
// returns promptly rather than waiting out a full sweep interval.
func (m *Manager) StartReaper() {
	m.reaperStop = make(chan struct{})
	m.reaperDone = make(chan struct{})
	go m.reaperLoop()
}

// StopReaper signals the reaper goroutine to exit and waits for it.
func (m *Manager) StopReaper() {
	if m.reaperStop == nil {
		return
	}
	close(m.reaperStop)
	<-m.reaperDone
	m.reaperStop = nil
}

func (m *Manager) reaperLoop() {
	defer close(m.reaperDone)

	const chunk = 100 * time.Millisecond
	elapsed := time.Duration(0)
	ticker := time.NewTicker(chunk)
	defer ticker.Stop()

	for {
		select {
		case <-m.reaperStop:
			return
		case <-ticker.C:
			elapsed += chunk
			if elapsed >= m.reaperCfg.SweepInterval {
				elapsed = 0
				m.sweep()
			}
		}
	}
}

func (m *Manager) sweep() {
	for _, r := range m.rooms {
		r.ReapStaleParticipants(m.reaperCfg.UnboundTimeout, m.reaperCfg.InactivityTimeout)
	}
}

// Shutdown stops the reaper and every room's RT thread.
func (m *Manager) Shutdown() {
	m.StopReaper()
	for _, r := range m.rooms {
		r.Stop()
	}
}

func generateID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
