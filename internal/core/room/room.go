// Package room implements a single rehearsal room: its participant
// table, its mixer-driving RT thread, and the two-participant fast path
// that bypasses the mixer entirely.
package room

import (
	"errors"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jameshartt/tutti/internal/core/audio"
	"github.com/jameshartt/tutti/internal/core/control"
	"github.com/jameshartt/tutti/internal/core/latency"
	"github.com/jameshartt/tutti/internal/core/mixer"
	"github.com/jameshartt/tutti/internal/core/transport"
)

var (
	ErrParticipantExists   = errors.New("room: participant already exists")
	ErrParticipantNotFound = errors.New("room: participant not found")
	ErrRoomFull            = errors.New("room: full")
)

// mixInterval is how often the RT thread wakes on its own when no
// participant signals it early. At 128 samples/48kHz a render quantum is
// ~2.67ms; waking every 3ms keeps at most one quantum of extra latency
// when the wakeup signal is missed.
const mixInterval = 3 * time.Millisecond

// heartbeatInterval is how often the room sends its own ping to every
// bound participant, independent of any ping the client sends on its
// own initiative, to keep a server-side RTT/jitter estimate even for
// clients that never ping.
const heartbeatInterval = 2 * time.Second

// participant is one occupant of a room's table. A participant exists in
// the table from AddParticipant even before a transport session attaches
// — bind is a two-step handshake (reserve an id, then attach a session to
// it) mirroring how a client learns its participant id before any audio
// flows.
type participant struct {
	id   string
	name string

	// session is read without a lock by the RT thread's send path after
	// being copied out under participantsMu; it is only ever written
	// under participantsMu.
	session transport.Session

	joinTime time.Time

	outputSeq           uint32 // atomic; next sequence stamped on a packet sent TO this participant
	lastAudioReceivedNs int64  // atomic; UnixNano of the last audio frame received FROM this participant
	lastAudioSentNs     int64  // atomic; UnixNano of the last audio frame sent TO this participant
}

type pendingSend struct {
	session transport.Session
	packet  [audio.PacketSize]byte
}

// Room holds one rehearsal room's participants, mixer, and RT thread.
// Exported methods are safe for concurrent use; AddParticipant,
// AttachSession and RemoveParticipant are not called from the RT thread,
// OnAudioReceived is called from network-receive goroutines (one per
// session, potentially concurrent with each other), and the mix/send
// loop runs on its own goroutine.
type Room struct {
	Name string

	maxParticipants int
	mixer           *mixer.Mixer

	participantsMu sync.Mutex
	participants   map[string]*participant

	passwordMu sync.Mutex
	password   string

	wakeup chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	tracker   *latency.Tracker
	pingSeq   int64 // atomic

	framesReceived uint64 // atomic; general-path frames seen since the last wakeup signal

	// pendingSends is scratch state reused every mix cycle by the single
	// RT goroutine; no lock needed since only that goroutine touches it.
	pendingSends []pendingSend

	rtWarnOnce sync.Once
}

// New creates a room with the given fixed name and capacity. The room
// does not start its RT thread until Start is called.
func New(name string, maxParticipants, ringCapacity int) *Room {
	return &Room{
		Name:            name,
		maxParticipants: maxParticipants,
		mixer:           mixer.New(maxParticipants, ringCapacity),
		participants:    make(map[string]*participant, maxParticipants),
		wakeup:          make(chan struct{}, 1),
		stopCh:          make(chan struct{}),
		pendingSends:    make([]pendingSend, 0, maxParticipants),
		tracker:         latency.New(),
	}
}

// Start launches the room's RT thread and its heartbeat goroutine. Safe
// to call once per Room.
func (r *Room) Start() {
	r.wg.Add(2)
	go r.runLoop()
	go r.heartbeatLoop()
}

// Stop signals the RT thread and heartbeat goroutine to exit and waits
// for both.
func (r *Room) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// Tracker returns the room's latency tracker. The REST API does not
// expose it.
func (r *Room) Tracker() *latency.Tracker {
	return r.tracker
}

func (r *Room) runLoop() {
	defer r.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	r.rtWarnOnce.Do(func() {
		log.Printf("room %s: realtime scheduling priority is not requestable from Go; running on a locked OS thread at default priority", r.Name)
	})

	timer := time.NewTimer(mixInterval)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.wakeup:
			timer.Reset(mixInterval)
			r.mixAndSend()
		case <-timer.C:
			timer.Reset(mixInterval)
			r.mixAndSend()
		}
	}
}

func (r *Room) mixAndSend() {
	start := time.Now()
	r.mixer.MixCycle()
	r.sendOutputs()
	r.tracker.RecordMixDuration(time.Since(start))
}

func (r *Room) heartbeatLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sendHeartbeatPings()
		}
	}
}

func (r *Room) sendHeartbeatPings() {
	r.participantsMu.Lock()
	type target struct {
		id      string
		session transport.Session
	}
	targets := make([]target, 0, len(r.participants))
	for id, p := range r.participants {
		if p.session != nil {
			targets = append(targets, target{id: id, session: p.session})
		}
	}
	r.participantsMu.Unlock()

	for _, tgt := range targets {
		id := atomic.AddInt64(&r.pingSeq, 1)
		now := time.Now().UnixNano()
		r.tracker.RecordPing(tgt.id, id)
		msg, err := control.Marshal(control.Ping{Type: "ping", ID: id, T: now})
		if err != nil {
			continue
		}
		tgt.session.SendReliable(msg)
	}
}

// RecordPong feeds a pong reply back into the room's latency tracker.
func (r *Room) RecordPong(participantID string, pingID int64) {
	r.tracker.RecordPong(participantID, pingID)
}

// sendOutputs drains every bound participant's mixer output ring and
// forwards it over the transport, stamping a fresh per-listener sequence
// number as it goes. The network sends happen outside participantsMu.
func (r *Room) sendOutputs() {
	r.pendingSends = r.pendingSends[:0]

	r.participantsMu.Lock()
	now := time.Now().UnixNano()
	for _, p := range r.participants {
		if p.session == nil {
			continue
		}
		var frame audio.Frame
		if !r.mixer.PopOutput(p.id, &frame) {
			continue
		}
		seq := atomic.AddUint32(&p.outputSeq, 1)
		atomic.StoreInt64(&p.lastAudioSentNs, now)
		frame.Sequence = seq

		r.pendingSends = append(r.pendingSends, pendingSend{session: p.session})
		frame.Serialize(r.pendingSends[len(r.pendingSends)-1].packet[:])
	}
	r.participantsMu.Unlock()

	for i := range r.pendingSends {
		r.pendingSends[i].session.SendDatagram(r.pendingSends[i].packet[:])
	}
}

func (r *Room) signalWakeup() {
	select {
	case r.wakeup <- struct{}{}:
	default:
	}
}

// AddParticipant reserves a slot in the room's table for id, before any
// transport session exists for it. Broadcasts participant_joined to
// every already-bound participant; the joiner itself learns the roster
// once AttachSession sends it a room_state.
func (r *Room) AddParticipant(id, name string) error {
	r.participantsMu.Lock()
	if _, exists := r.participants[id]; exists {
		r.participantsMu.Unlock()
		return ErrParticipantExists
	}
	if len(r.participants) >= r.maxParticipants {
		r.participantsMu.Unlock()
		return ErrRoomFull
	}
	p := &participant{id: id, name: name, joinTime: time.Now()}
	r.participants[id] = p
	bound := r.boundSessionsLocked()
	r.participantsMu.Unlock()

	r.mixer.AddParticipant(id)

	msg, err := control.Marshal(control.NewParticipantJoined(id, name))
	if err == nil {
		for _, s := range bound {
			s.SendReliable(msg)
		}
	}
	return nil
}

// AttachSession binds a transport session to a previously reserved
// participant id and sends it the current room_state.
func (r *Room) AttachSession(id string, session transport.Session) error {
	r.participantsMu.Lock()
	p, ok := r.participants[id]
	if !ok {
		r.participantsMu.Unlock()
		return ErrParticipantNotFound
	}
	p.session = session
	infos := r.rosterLocked()
	r.participantsMu.Unlock()

	msg, err := control.Marshal(control.NewRoomState(infos))
	if err == nil {
		session.SendReliable(msg)
	}
	return nil
}

// RemoveParticipant drops a participant from the room's table and
// mixer, broadcasting participant_left to everyone remaining. Clears the
// room's password once it is empty.
func (r *Room) RemoveParticipant(id string) {
	r.participantsMu.Lock()
	if _, ok := r.participants[id]; !ok {
		r.participantsMu.Unlock()
		return
	}
	delete(r.participants, id)
	bound := r.boundSessionsLocked()
	empty := len(r.participants) == 0
	r.participantsMu.Unlock()

	r.mixer.RemoveParticipant(id)
	r.tracker.RemoveParticipant(id)

	msg, err := control.Marshal(control.NewParticipantLeft(id))
	if err == nil {
		for _, s := range bound {
			s.SendReliable(msg)
		}
	}

	if empty {
		r.ClearPassword()
	}
}

// boundSessionsLocked must be called with participantsMu held.
func (r *Room) boundSessionsLocked() []transport.Session {
	out := make([]transport.Session, 0, len(r.participants))
	for _, p := range r.participants {
		if p.session != nil {
			out = append(out, p.session)
		}
	}
	return out
}

// rosterLocked must be called with participantsMu held.
func (r *Room) rosterLocked() []control.ParticipantInfo {
	out := make([]control.ParticipantInfo, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, control.ParticipantInfo{ID: p.id, Name: p.name})
	}
	return out
}

// BroadcastVacateRequest asks every currently bound participant to leave
// the room, by sending each of them a vacate_request control message.
func (r *Room) BroadcastVacateRequest() {
	r.participantsMu.Lock()
	bound := r.boundSessionsLocked()
	r.participantsMu.Unlock()

	msg, err := control.Marshal(control.NewVacateRequest())
	if err != nil {
		return
	}
	for _, s := range bound {
		s.SendReliable(msg)
	}
}

// OnAudioReceived handles one inbound audio datagram from senderID. With
// exactly two participants it forwards directly to the other participant,
// skipping the mixer; otherwise it hands the frame to the mixer's input
// ring and nudges the RT thread to run a mix cycle sooner.
func (r *Room) OnAudioReceived(senderID string, packet []byte) {
	if len(packet) < audio.PacketSize {
		return
	}
	packet = packet[:audio.PacketSize]

	r.participantsMu.Lock()
	sender, ok := r.participants[senderID]
	if !ok {
		r.participantsMu.Unlock()
		return
	}
	now := time.Now().UnixNano()
	atomic.StoreInt64(&sender.lastAudioReceivedNs, now)

	if len(r.participants) == 2 {
		var other *participant
		for id, p := range r.participants {
			if id != senderID {
				other = p
				break
			}
		}
		var otherSeq uint32
		var otherSession transport.Session
		if other != nil {
			otherSeq = atomic.AddUint32(&other.outputSeq, 1)
			atomic.StoreInt64(&other.lastAudioSentNs, now)
			otherSession = other.session
		}
		otherID := ""
		if other != nil {
			otherID = other.id
		}
		r.participantsMu.Unlock()

		if otherSession == nil || !otherSession.IsConnected() {
			return
		}
		r.forwardFastPath(packet, otherID, senderID, otherSeq, otherSession)
		return
	}
	r.participantsMu.Unlock()

	var frame audio.Frame
	frame.Deserialize(packet)
	if r.mixer.PushInput(senderID, frame) {
		r.noteFrameReceived()
	}
}

// noteFrameReceived counts one general-path input frame and wakes the RT
// thread only once the count reaches the mixer's participant count,
// rather than on every packet; the count then restarts from zero. The
// counter does not track which participant each frame came from.
func (r *Room) noteFrameReceived() {
	threshold := uint64(r.mixer.ParticipantCount())
	if threshold == 0 {
		return
	}
	for {
		old := atomic.LoadUint64(&r.framesReceived)
		next := old + 1
		if next >= threshold {
			if atomic.CompareAndSwapUint64(&r.framesReceived, old, 0) {
				r.signalWakeup()
				return
			}
			continue
		}
		if atomic.CompareAndSwapUint64(&r.framesReceived, old, next) {
			return
		}
	}
}

// forwardFastPath builds the outgoing packet for the two-participant case.
// A muted or zero-gain source is dropped without sending. A gain of
// exactly 1.0 is forwarded byte-for-byte except for the rewritten
// sequence; any other gain requires scaling the payload.
func (r *Room) forwardFastPath(packet []byte, listenerID, sourceID string, seq uint32, session transport.Session) {
	entry := r.mixer.GetGainEntry(listenerID, sourceID)
	if entry.Muted || entry.Gain <= 0 {
		return
	}
	gain := entry.Gain

	var out [audio.PacketSize]byte
	copy(out[:], packet)
	audio.RewriteSequence(out[:], seq)
	if gain != 1.0 {
		audio.ScaleSamplesInPlace(out[:], gain)
	}
	session.SendDatagram(out[:])
}

// SetGain sets how loud sourceID sounds in listenerID's mix.
func (r *Room) SetGain(listenerID, sourceID string, gain float64) {
	r.mixer.SetGain(listenerID, sourceID, gain)
}

// SetMute sets whether sourceID is muted in listenerID's mix.
func (r *Room) SetMute(listenerID, sourceID string, muted bool) {
	r.mixer.SetMute(listenerID, sourceID, muted)
}

// GetGainEntry returns listenerID's current gain/mute setting for
// sourceID.
func (r *Room) GetGainEntry(listenerID, sourceID string) mixer.GainEntry {
	return r.mixer.GetGainEntry(listenerID, sourceID)
}

// Claim sets the room's password, failing if one is already set.
func (r *Room) Claim(password string) error {
	r.passwordMu.Lock()
	defer r.passwordMu.Unlock()
	if r.password != "" {
		return errors.New("room: already claimed")
	}
	r.password = password
	return nil
}

// CheckPassword reports whether candidate matches the room's password.
// An unclaimed room (empty password) accepts any candidate.
func (r *Room) CheckPassword(candidate string) bool {
	r.passwordMu.Lock()
	defer r.passwordMu.Unlock()
	return r.password == "" || r.password == candidate
}

// ClearPassword un-claims the room.
func (r *Room) ClearPassword() {
	r.passwordMu.Lock()
	r.password = ""
	r.passwordMu.Unlock()
}

// IsClaimed reports whether the room currently requires a password.
func (r *Room) IsClaimed() bool {
	r.passwordMu.Lock()
	defer r.passwordMu.Unlock()
	return r.password != ""
}

// ParticipantCount returns the number of reserved or bound participants.
func (r *Room) ParticipantCount() int {
	r.participantsMu.Lock()
	defer r.participantsMu.Unlock()
	return len(r.participants)
}

// IsFull reports whether the room has reached its participant cap.
func (r *Room) IsFull() bool {
	r.participantsMu.Lock()
	defer r.participantsMu.Unlock()
	return len(r.participants) >= r.maxParticipants
}

// Roster returns the current participant list for the room REST surface.
func (r *Room) Roster() []control.ParticipantInfo {
	r.participantsMu.Lock()
	defer r.participantsMu.Unlock()
	return r.rosterLocked()
}

// ReapStaleParticipants removes participants that have sat unbound
// longer than unboundTimeout, or that have been bound and idle (no audio
// sent or received) longer than inactivityTimeout. A lone remaining
// participant is exempt from the inactivity check, since there is no one
// for their audio to flow to or from. Returns the ids removed.
func (r *Room) ReapStaleParticipants(unboundTimeout, inactivityTimeout time.Duration) []string {
	now := time.Now()

	r.participantsMu.Lock()
	var stale []string
	total := len(r.participants)
	for id, p := range r.participants {
		if p.session == nil {
			if now.Sub(p.joinTime) > unboundTimeout {
				stale = append(stale, id)
			}
			continue
		}
		if total < 2 {
			continue
		}
		recv := atomic.LoadInt64(&p.lastAudioReceivedNs)
		sent := atomic.LoadInt64(&p.lastAudioSentNs)
		last := recv
		if sent > last {
			last = sent
		}
		var idleSince time.Time
		if last == 0 {
			idleSince = p.joinTime
		} else {
			idleSince = time.Unix(0, last)
		}
		if now.Sub(idleSince) > inactivityTimeout {
			stale = append(stale, id)
		}
	}
	r.participantsMu.Unlock()

	for _, id := range stale {
		r.RemoveParticipant(id)
	}
	return stale
}
