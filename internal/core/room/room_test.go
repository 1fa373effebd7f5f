package room

import (
	"sync"
	"testing"
	"time"

	"github.com/jameshartt/tutti/internal/core/audio"
)

type fakeSession struct {
	id        string
	mu        sync.Mutex
	datagrams [][]byte
	reliable  []string
	connected bool
	closed    bool
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, connected: true}
}

func (f *fakeSession) SendDatagram(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.datagrams = append(f.datagrams, cp)
	return true
}

func (f *fakeSession) SendReliable(message string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return false
	}
	f.reliable = append(f.reliable, message)
	return true
}

func (f *fakeSession) Close()                  { f.mu.Lock(); f.connected = false; f.closed = true; f.mu.Unlock() }
func (f *fakeSession) ID() string               { return f.id }
func (f *fakeSession) RemoteAddress() string    { return "127.0.0.1:0" }
func (f *fakeSession) IsConnected() bool        { f.mu.Lock(); defer f.mu.Unlock(); return f.connected }

func (f *fakeSession) lastDatagram() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.datagrams) == 0 {
		return nil
	}
	return f.datagrams[len(f.datagrams)-1]
}

func (f *fakeSession) datagramCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.datagrams)
}

func (f *fakeSession) reliableCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reliable)
}

func packetWithValue(value int16, seq uint32) []byte {
	f := audio.Frame{Sequence: seq}
	for i := range f.Samples {
		f.Samples[i] = value
	}
	buf := make([]byte, audio.PacketSize)
	f.Serialize(buf)
	return buf
}

func TestAddParticipantBroadcastsToExistingBoundOnly(t *testing.T) {
	r := New("Allegro", 4, 8)

	if err := r.AddParticipant("a", "Alice"); err != nil {
		t.Fatalf("add a: %v", err)
	}
	sessA := newFakeSession("a")
	if err := r.AttachSession("a", sessA); err != nil {
		t.Fatalf("attach a: %v", err)
	}

	if err := r.AddParticipant("b", "Bob"); err != nil {
		t.Fatalf("add b: %v", err)
	}

	if sessA.reliableCount() != 2 { // room_state + participant_joined
		t.Fatalf("alice should have received room_state and exactly one participant_joined, got %d", sessA.reliableCount())
	}
}

func TestAttachSessionSendsRoomState(t *testing.T) {
	r := New("Ballata", 4, 8)
	r.AddParticipant("a", "Alice")
	sess := newFakeSession("a")
	if err := r.AttachSession("a", sess); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if sess.reliableCount() != 1 {
		t.Fatalf("expected one room_state message, got %d", sess.reliableCount())
	}
}

func TestAttachSessionUnknownParticipant(t *testing.T) {
	r := New("Cantabile", 4, 8)
	sess := newFakeSession("ghost")
	if err := r.AttachSession("ghost", sess); err != ErrParticipantNotFound {
		t.Fatalf("err = %v, want ErrParticipantNotFound", err)
	}
}

func TestTwoParticipantFastPathForwardsWithRewrittenSequence(t *testing.T) {
	r := New("Dolce", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	pkt := packetWithValue(1234, 99)
	r.OnAudioReceived("a", pkt)

	got := sessB.lastDatagram()
	if got == nil {
		t.Fatal("bob should have received a forwarded datagram")
	}
	var f audio.Frame
	f.Deserialize(got)
	if f.Sequence != 1 {
		t.Errorf("sequence = %d, want 1 (bob's own counter, pre-incremented)", f.Sequence)
	}
	if f.Samples[0] != 1234 {
		t.Errorf("sample[0] = %d, want 1234 (unscaled passthrough)", f.Samples[0])
	}
	if sessA.datagramCount() != 0 {
		t.Errorf("alice should not receive her own audio back")
	}
}

func TestTwoParticipantFastPathAppliesGainAndMute(t *testing.T) {
	r := New("Espressivo", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	r.mixer.AddParticipant("a")
	r.mixer.AddParticipant("b")
	r.mixer.SetGain("b", "a", 0.5)

	pkt := packetWithValue(1000, 1)
	r.OnAudioReceived("a", pkt)

	var f audio.Frame
	f.Deserialize(sessB.lastDatagram())
	if f.Samples[0] != 500 {
		t.Errorf("sample[0] = %d, want 500 (0.5 gain applied)", f.Samples[0])
	}

	before := sessB.datagramCount()
	r.mixer.SetMute("b", "a", true)
	r.OnAudioReceived("a", pkt)
	if got := sessB.datagramCount(); got != before {
		t.Errorf("datagramCount() = %d, want %d (muted source should be dropped, not forwarded at zero volume)", got, before)
	}
}

func TestOnAudioReceivedAcceptsOversizedPacketIgnoringTrailingBytes(t *testing.T) {
	r := New("Giocoso", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	pkt := packetWithValue(1234, 99)
	oversized := append(pkt, make([]byte, 248)...) // 512 bytes total
	r.OnAudioReceived("a", oversized)

	got := sessB.lastDatagram()
	if got == nil {
		t.Fatal("bob should have received a forwarded datagram")
	}
	var f audio.Frame
	f.Deserialize(got)
	if f.Samples[0] != 1234 {
		t.Errorf("sample[0] = %d, want 1234 (trailing bytes beyond PacketSize should be ignored)", f.Samples[0])
	}
}

func TestOnAudioReceivedDropsUndersizedPacket(t *testing.T) {
	r := New("Harmonics", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	r.OnAudioReceived("a", make([]byte, audio.PacketSize-1))

	if sessB.datagramCount() != 0 {
		t.Errorf("undersized packet should be dropped, got %d forwarded datagrams", sessB.datagramCount())
	}
}

func TestGeneralPathPushesIntoMixerAndMixes(t *testing.T) {
	r := New("Fortepiano", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	r.AddParticipant("c", "Carol")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	sessC := newFakeSession("c")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)
	r.AttachSession("c", sessC)

	r.OnAudioReceived("b", packetWithValue(5000, 1))
	r.OnAudioReceived("c", packetWithValue(3000, 1))

	r.mixAndSend()

	var f audio.Frame
	got := sessA.lastDatagram()
	if got == nil {
		t.Fatal("alice should receive a mixed datagram")
	}
	f.Deserialize(got)
	if f.Samples[0] != 8000 {
		t.Errorf("sample[0] = %d, want 8000 (5000+3000)", f.Samples[0])
	}
}

func TestNoteFrameReceivedGatesWakeupOnParticipantCount(t *testing.T) {
	r := New("Intermezzo", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	r.AddParticipant("c", "Carol")
	r.AttachSession("a", newFakeSession("a"))
	r.AttachSession("b", newFakeSession("b"))
	r.AttachSession("c", newFakeSession("c"))

	r.OnAudioReceived("b", packetWithValue(1000, 1))
	select {
	case <-r.wakeup:
		t.Fatal("should not wake up before every participant has contributed a frame")
	default:
	}

	r.OnAudioReceived("c", packetWithValue(2000, 1))
	select {
	case <-r.wakeup:
		t.Fatal("should not wake up before every participant has contributed a frame")
	default:
	}

	r.OnAudioReceived("a", packetWithValue(3000, 1))
	select {
	case <-r.wakeup:
	default:
		t.Fatal("should wake up once every participant has contributed a frame")
	}
}

func TestRemoveParticipantBroadcastsAndClearsPassword(t *testing.T) {
	r := New("Giocoso", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	r.Claim("secret")
	r.RemoveParticipant("b")

	if sessA.reliableCount() != 2 { // room_state + participant_left
		t.Errorf("alice reliable count = %d, want 2", sessA.reliableCount())
	}
	if !r.IsClaimed() {
		t.Error("password should still be set with one participant left")
	}

	r.RemoveParticipant("a")
	if r.IsClaimed() {
		t.Error("password should clear once room is empty")
	}
}

func TestClaimRejectsSecondClaim(t *testing.T) {
	r := New("Harmonics", 4, 8)
	if err := r.Claim("pw1"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := r.Claim("pw2"); err == nil {
		t.Fatal("second claim should fail")
	}
	if !r.CheckPassword("pw1") {
		t.Error("original password should still be active")
	}
}

func TestBroadcastVacateRequest(t *testing.T) {
	r := New("Intermezzo", 4, 8)
	r.AddParticipant("a", "Alice")
	sess := newFakeSession("a")
	r.AttachSession("a", sess)

	r.BroadcastVacateRequest()
	if sess.reliableCount() != 2 { // room_state + vacate_request
		t.Errorf("reliable count = %d, want 2", sess.reliableCount())
	}
}

func TestReapStaleParticipantsUnboundTimeout(t *testing.T) {
	r := New("Jubiloso", 4, 8)
	r.AddParticipant("a", "Alice")
	r.participants["a"].joinTime = time.Now().Add(-1 * time.Hour)

	removed := r.ReapStaleParticipants(30*time.Second, time.Minute)
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("removed = %v, want [a]", removed)
	}
	if r.ParticipantCount() != 0 {
		t.Error("participant should be gone")
	}
}

func TestReapStaleParticipantsExemptsSoloBoundParticipant(t *testing.T) {
	r := New("Kaprizios", 4, 8)
	r.AddParticipant("a", "Alice")
	sess := newFakeSession("a")
	r.AttachSession("a", sess)
	r.participants["a"].joinTime = time.Now().Add(-1 * time.Hour)

	removed := r.ReapStaleParticipants(30*time.Second, time.Minute)
	if len(removed) != 0 {
		t.Errorf("solo bound participant should be exempt, removed = %v", removed)
	}
}

func TestReapStaleParticipantsInactivityTimeout(t *testing.T) {
	r := New("Legato", 4, 8)
	r.AddParticipant("a", "Alice")
	r.AddParticipant("b", "Bob")
	sessA := newFakeSession("a")
	sessB := newFakeSession("b")
	r.AttachSession("a", sessA)
	r.AttachSession("b", sessB)

	stale := time.Now().Add(-2 * time.Minute).UnixNano()
	r.participants["a"].lastAudioReceivedNs = stale
	r.participants["a"].lastAudioSentNs = stale
	r.participants["b"].lastAudioReceivedNs = stale
	r.participants["b"].lastAudioSentNs = stale

	removed := r.ReapStaleParticipants(30*time.Second, time.Minute)
	if len(removed) != 2 {
		t.Fatalf("removed = %v, want both participants", removed)
	}
}

func TestRoomFullRejectsExtraParticipant(t *testing.T) {
	r := New("Maestoso", 1, 8)
	if err := r.AddParticipant("a", "Alice"); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := r.AddParticipant("b", "Bob"); err != ErrRoomFull {
		t.Fatalf("err = %v, want ErrRoomFull", err)
	}
}

func TestStartStop(t *testing.T) {
	r := New("Notturno", 4, 8)
	r.Start()
	r.Stop()
}
