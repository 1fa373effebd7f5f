// Package binder translates raw transport events into room operations.
// A session starts out pending (no participant id yet) and becomes
// bound once it sends a valid bind message naming an existing
// participant in an existing room.
package binder

import (
	"log"
	"sync"

	"github.com/jameshartt/tutti/internal/core/control"
	"github.com/jameshartt/tutti/internal/core/room"
	"github.com/jameshartt/tutti/internal/core/transport"
)

// boundSession records which room and participant id a transport
// session has attached to.
type boundSession struct {
	session       transport.Session
	room          *room.Room
	participantID string
}

// Binder is the glue between a transport stack and a room.Manager: it
// implements transport.Callbacks and dispatches bind/ping/gain/mute
// messages and audio datagrams to the right room.
type Binder struct {
	manager *room.Manager

	mu      sync.Mutex
	pending map[string]transport.Session  // session id -> session, not yet bound
	bound   map[string]*boundSession     // session id -> bound state
}

// New creates a Binder wired to manager. Use Callbacks to obtain the
// transport.Callbacks struct to hand to a concrete transport server.
func New(manager *room.Manager) *Binder {
	return &Binder{
		manager: manager,
		pending: make(map[string]transport.Session),
		bound:   make(map[string]*boundSession),
	}
}

// Callbacks returns the transport.Callbacks that drive this binder.
func (b *Binder) Callbacks() transport.Callbacks {
	return transport.Callbacks{
		OnSessionOpen:  b.onSessionOpen,
		OnMessage:      b.onMessage,
		OnDatagram:     b.onDatagram,
		OnSessionClose: b.onSessionClose,
	}
}

func (b *Binder) onSessionOpen(session transport.Session) {
	b.mu.Lock()
	b.pending[session.ID()] = session
	b.mu.Unlock()
}

func (b *Binder) onSessionClose(session transport.Session) {
	id := session.ID()

	b.mu.Lock()
	delete(b.pending, id)
	bs, wasBound := b.bound[id]
	delete(b.bound, id)
	b.mu.Unlock()

	if wasBound {
		bs.room.RemoveParticipant(bs.participantID)
	}
}

func (b *Binder) onMessage(session transport.Session, text string) {
	msgType, ok := control.ParseType(text)
	if !ok {
		return
	}

	b.mu.Lock()
	bs, isBound := b.bound[session.ID()]
	_, isPending := b.pending[session.ID()]
	b.mu.Unlock()

	switch {
	case isBound:
		b.dispatchBound(bs, msgType, text)
	case isPending:
		if msgType == "bind" {
			b.handleBind(session, text)
		}
	}
}

func (b *Binder) dispatchBound(bs *boundSession, msgType, text string) {
	switch msgType {
	case "ping":
		p, ok := control.DecodePing(text)
		if !ok {
			return
		}
		reply, err := control.Marshal(control.NewPong(p.ID, p.T))
		if err == nil {
			bs.session.SendReliable(reply)
		}
	case "gain":
		g, ok := control.DecodeGain(text)
		if !ok {
			return
		}
		bs.room.SetGain(bs.participantID, g.ParticipantID, g.Value)
	case "mute":
		m, ok := control.DecodeMute(text)
		if !ok {
			return
		}
		bs.room.SetMute(bs.participantID, m.ParticipantID, m.Muted)
	case "pong":
		p, ok := control.DecodePong(text)
		if !ok {
			return
		}
		bs.room.RecordPong(bs.participantID, p.ID)
	}
}

func (b *Binder) handleBind(session transport.Session, text string) {
	bind, ok := control.DecodeBind(text)
	if !ok {
		b.sendError(session, "invalid_bind")
		return
	}

	r := b.manager.GetRoom(bind.Room)
	if r == nil {
		b.sendError(session, "room_not_found")
		return
	}
	if err := r.AttachSession(bind.ParticipantID, session); err != nil {
		log.Printf("binder: attach %s to room %s failed: %v", bind.ParticipantID, bind.Room, err)
		b.sendError(session, "participant_not_found")
		return
	}

	b.mu.Lock()
	delete(b.pending, session.ID())
	b.bound[session.ID()] = &boundSession{
		session:       session,
		room:          r,
		participantID: bind.ParticipantID,
	}
	b.mu.Unlock()
}

func (b *Binder) onDatagram(session transport.Session, data []byte) {
	b.mu.Lock()
	bs, ok := b.bound[session.ID()]
	b.mu.Unlock()
	if !ok {
		return
	}
	bs.room.OnAudioReceived(bs.participantID, data)
}

func (b *Binder) sendError(session transport.Session, code string) {
	msg, err := control.Marshal(control.NewError(code))
	if err != nil {
		return
	}
	session.SendReliable(msg)
}
