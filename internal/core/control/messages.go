// Package control defines the JSON-shaped reliable control messages
// exchanged between a bound session and the room, and a small decoder
// that tolerates malformed input by dropping it rather than failing.
package control

import "encoding/json"

// Envelope is the minimal shape every control message shares: enough to
// dispatch on Type before parsing the rest.
type Envelope struct {
	Type string `json:"type"`
}

// Bind is sent client→server by a pending session to attach itself to a
// participant in a room.
type Bind struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Room          string `json:"room"`
}

// Ping is sent for RTT measurement: client→server, and server→client by
// the room's heartbeat.
type Ping struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	T    int64  `json:"t"`
}

// Pong answers a Ping in either direction, echoing the ping's id and t.
type Pong struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	T    int64  `json:"t"`
}

// GainMessage is sent client→server to adjust how loud ParticipantID
// sounds in the sender's own mix.
type GainMessage struct {
	Type          string  `json:"type"`
	ParticipantID string  `json:"participant_id"`
	Value         float64 `json:"value"`
}

// MuteMessage is sent client→server to mute/unmute ParticipantID in the
// sender's own mix.
type MuteMessage struct {
	Type          string `json:"type"`
	ParticipantID string `json:"participant_id"`
	Muted         bool   `json:"muted"`
}

// ParticipantInfo describes one participant for room_state and
// participant_joined payloads.
type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomState is sent server→client: the full current participant list.
type RoomState struct {
	Type         string            `json:"type"`
	Participants []ParticipantInfo `json:"participants"`
}

// ParticipantJoined is broadcast server→client when a new participant
// joins.
type ParticipantJoined struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ParticipantLeft is broadcast server→client when a participant leaves.
type ParticipantLeft struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// VacateRequest is broadcast server→client asking current occupants to
// leave a full room.
type VacateRequest struct {
	Type string `json:"type"`
}

// ErrorMessage is sent server→client when a reliable-path request
// cannot be fulfilled.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewRoomState(participants []ParticipantInfo) RoomState {
	return RoomState{Type: "room_state", Participants: participants}
}

func NewParticipantJoined(id, name string) ParticipantJoined {
	return ParticipantJoined{Type: "participant_joined", ID: id, Name: name}
}

func NewParticipantLeft(id string) ParticipantLeft {
	return ParticipantLeft{Type: "participant_left", ID: id}
}

func NewVacateRequest() VacateRequest {
	return VacateRequest{Type: "vacate_request"}
}

func NewError(code string) ErrorMessage {
	return ErrorMessage{Type: "error", Error: code}
}

func NewPong(id, t int64) Pong {
	return Pong{Type: "pong", ID: id, T: t}
}

// Marshal encodes v to its JSON wire form. Errors are not expected for the
// well-formed struct types above, but are still returned rather than
// panicking.
func Marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
