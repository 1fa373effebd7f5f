package control

import "encoding/json"

// ParseType extracts just the "type" field from a raw control message, so
// callers can dispatch before fully decoding. Returns ok=false on
// malformed JSON — callers should log and drop, never treat this as
// fatal.
func ParseType(raw string) (string, bool) {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return "", false
	}
	return env.Type, true
}

// DecodeBind parses a bind message, requiring both participant_id and
// room to be non-empty.
func DecodeBind(raw string) (Bind, bool) {
	var b Bind
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Bind{}, false
	}
	if b.ParticipantID == "" || b.Room == "" {
		return Bind{}, false
	}
	return b, true
}

// DecodePing parses a ping message.
func DecodePing(raw string) (Ping, bool) {
	var p Ping
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Ping{}, false
	}
	return p, true
}

// DecodePong parses a pong message.
func DecodePong(raw string) (Pong, bool) {
	var p Pong
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Pong{}, false
	}
	return p, true
}

// DecodeGain parses a gain message, requiring a non-empty participant_id.
func DecodeGain(raw string) (GainMessage, bool) {
	var g GainMessage
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return GainMessage{}, false
	}
	if g.ParticipantID == "" {
		return GainMessage{}, false
	}
	return g, true
}

// DecodeMute parses a mute message, requiring a non-empty participant_id.
func DecodeMute(raw string) (MuteMessage, bool) {
	var m MuteMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return MuteMessage{}, false
	}
	if m.ParticipantID == "" {
		return MuteMessage{}, false
	}
	return m, true
}
