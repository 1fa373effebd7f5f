// Package latency tracks round-trip time and jitter per participant
// from ping/pong exchanges, plus the room's own mix-cycle duration, for
// diagnostics. No REST endpoint reports these stats.
package latency

import (
	"sync"
	"time"
)

// ewmaAlpha is the smoothing factor applied to both the RTT and jitter
// running averages.
const ewmaAlpha = 0.125

// staleAfter is how long an outstanding ping is kept waiting for its
// pong before it is dropped rather than counted against jitter.
const staleAfter = 5 * time.Second

// Stats is a snapshot of one participant's latency measurements.
type Stats struct {
	RTTMillis    float64
	JitterMillis float64
	SampleCount  uint64
	Loss         float64 // 1 - received/sent, over all pings ever sent to this participant
	LastMixUs    int64   // most recent mix-cycle duration for the owning room
}

type pendingPing struct {
	sentAt time.Time
}

type participantLatency struct {
	pending map[int64]pendingPing

	rttEWMA     float64
	jitterEWMA  float64
	sampleCount uint64
	haveRTT     bool

	pingsSent     uint64
	pongsReceived uint64
}

// Tracker aggregates latency state for every participant in one room,
// plus the room's own mix-cycle duration (not tied to any participant).
type Tracker struct {
	mu           sync.Mutex
	participants map[string]*participantLatency
	lastMixUs    int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{participants: make(map[string]*participantLatency)}
}

// RecordPing notes that a ping with the given id was sent to
// participantID at the current time, for later RTT computation when its
// pong arrives.
func (t *Tracker) RecordPing(participantID string, pingID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.getOrCreate(participantID)
	t.pruneStale(p)
	p.pending[pingID] = pendingPing{sentAt: time.Now()}
	p.pingsSent++
}

// RecordPong matches a returned pong against its outstanding ping and
// updates the RTT and jitter EWMAs. Pongs for unknown or already-stale
// ping ids are ignored.
func (t *Tracker) RecordPong(participantID string, pingID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.participants[participantID]
	if p == nil {
		return
	}
	pp, ok := p.pending[pingID]
	if !ok {
		return
	}
	delete(p.pending, pingID)
	p.pongsReceived++

	rtt := time.Since(pp.sentAt).Seconds() * 1000.0
	if !p.haveRTT {
		p.rttEWMA = rtt
		p.jitterEWMA = 0
		p.haveRTT = true
	} else {
		delta := rtt - p.rttEWMA
		p.rttEWMA += ewmaAlpha * delta
		if delta < 0 {
			delta = -delta
		}
		p.jitterEWMA += ewmaAlpha * (delta - p.jitterEWMA)
	}
	p.sampleCount++
}

// RecordMixDuration stores the room's most recent mix-cycle duration.
// There is one Tracker per room, so this is not keyed by participant.
func (t *Tracker) RecordMixDuration(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastMixUs = d.Microseconds()
}

// LastMixUs returns the room's most recently recorded mix-cycle
// duration, in microseconds.
func (t *Tracker) LastMixUs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastMixUs
}

// GetStats returns a snapshot of participantID's latency stats,
// including the owning room's last mix-cycle duration. The zero value
// (with LastMixUs still populated) is returned for an unknown
// participant.
func (t *Tracker) GetStats(participantID string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.participants[participantID]
	if p == nil {
		return Stats{LastMixUs: t.lastMixUs}
	}
	var loss float64
	if p.pingsSent > 0 {
		loss = 1 - float64(p.pongsReceived)/float64(p.pingsSent)
	}
	return Stats{
		RTTMillis:    p.rttEWMA,
		JitterMillis: p.jitterEWMA,
		SampleCount:  p.sampleCount,
		Loss:         loss,
		LastMixUs:    t.lastMixUs,
	}
}

// RemoveParticipant discards all tracked state for participantID.
func (t *Tracker) RemoveParticipant(participantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.participants, participantID)
}

func (t *Tracker) getOrCreate(id string) *participantLatency {
	p := t.participants[id]
	if p == nil {
		p = &participantLatency{pending: make(map[int64]pendingPing)}
		t.participants[id] = p
	}
	return p
}

// pruneStale drops any outstanding ping older than staleAfter, so a
// client that stops responding does not leak ping ids forever.
func (t *Tracker) pruneStale(p *participantLatency) {
	cutoff := time.Now().Add(-staleAfter)
	for id, pp := range p.pending {
		if pp.sentAt.Before(cutoff) {
			delete(p.pending, id)
		}
	}
}
