// Package mixer implements the per-room personalised audio summing engine:
// every listener hears the sum of every other participant's next queued
// frame, scaled by the listener's per-source gain and mute setting.
package mixer

import (
	"sync"

	"github.com/jameshartt/tutti/internal/core/audio"
)

// GainEntry is one (listener, source) pair's mix setting. A pair with no
// stored entry uses GainEntry{Gain: 1.0}: full volume, not muted.
type GainEntry struct {
	Gain  float64
	Muted bool
}

// participantState is a mixer-owned handle for one participant's audio
// queues. It is held by pointer inside participants so that a mix_cycle
// snapshot can retain a stable reference after releasing the table lock.
type participantState struct {
	id     string
	input  *audio.Ring
	output *audio.Ring
}

// Mixer produces a personalised mix for every participant in one room.
// add_participant/remove_participant are never called from the RT thread;
// mix_cycle is called only from the RT thread and must not allocate once
// warmed up.
type Mixer struct {
	maxParticipants int
	ringCapacity    int

	participantsMu sync.Mutex
	participants   map[string]*participantState

	gainsMu sync.Mutex
	gains   map[string]map[string]GainEntry

	// Scratch state reused by mix_cycle every call — sized once at
	// construction time and never reallocated past warmup.
	activeIDs     []string
	activeStates  []*participantState
	inputFrames   []audio.Frame
	hasInput      []bool
	gainsSnapshot map[string]map[string]GainEntry
	accum         [audio.SamplesPerFrame]int64
}

// New creates a Mixer sized for at most maxParticipants concurrent
// participants, each backed by an input/output ring of ringCapacity
// frames.
func New(maxParticipants, ringCapacity int) *Mixer {
	return &Mixer{
		maxParticipants: maxParticipants,
		ringCapacity:    ringCapacity,
		participants:    make(map[string]*participantState, maxParticipants),
		gains:           make(map[string]map[string]GainEntry),
		activeIDs:       make([]string, 0, maxParticipants),
		activeStates:    make([]*participantState, 0, maxParticipants),
		inputFrames:     make([]audio.Frame, maxParticipants),
		hasInput:        make([]bool, maxParticipants),
		gainsSnapshot:   make(map[string]map[string]GainEntry, maxParticipants),
	}
}

// AddParticipant registers a new participant with fresh input/output
// rings. Not called from the RT thread.
func (m *Mixer) AddParticipant(id string) {
	m.participantsMu.Lock()
	defer m.participantsMu.Unlock()
	if _, exists := m.participants[id]; exists {
		return
	}
	m.participants[id] = &participantState{
		id:     id,
		input:  audio.NewRing(m.ringCapacity),
		output: audio.NewRing(m.ringCapacity),
	}
}

// RemoveParticipant drops a participant's queues and prunes every gain
// entry naming them, on either side of the pair. Safe to call twice.
func (m *Mixer) RemoveParticipant(id string) {
	m.participantsMu.Lock()
	delete(m.participants, id)
	m.participantsMu.Unlock()

	m.gainsMu.Lock()
	delete(m.gains, id)
	for _, sources := range m.gains {
		delete(sources, id)
	}
	m.gainsMu.Unlock()
}

// SetGain sets how loud sourceID sounds in listenerID's mix, clamped to
// [0,1]. Callable from any thread.
func (m *Mixer) SetGain(listenerID, sourceID string, gain float64) {
	if gain < 0 {
		gain = 0
	} else if gain > 1 {
		gain = 1
	}
	m.gainsMu.Lock()
	defer m.gainsMu.Unlock()
	sources := m.gains[listenerID]
	if sources == nil {
		sources = make(map[string]GainEntry)
		m.gains[listenerID] = sources
	}
	entry, ok := sources[sourceID]
	if !ok {
		entry = GainEntry{Gain: 1.0}
	}
	entry.Gain = gain
	sources[sourceID] = entry
}

// SetMute sets whether sourceID is muted in listenerID's mix. Callable
// from any thread.
func (m *Mixer) SetMute(listenerID, sourceID string, muted bool) {
	m.gainsMu.Lock()
	defer m.gainsMu.Unlock()
	sources := m.gains[listenerID]
	if sources == nil {
		sources = make(map[string]GainEntry)
		m.gains[listenerID] = sources
	}
	entry, ok := sources[sourceID]
	if !ok {
		entry = GainEntry{Gain: 1.0}
	}
	entry.Muted = muted
	sources[sourceID] = entry
}

// GetGainEntry returns a snapshot of (listener, source)'s gain setting.
// Used by Room's two-participant fast path, which must read the same
// storage the mix cycle does so it cannot race with SetGain.
func (m *Mixer) GetGainEntry(listenerID, sourceID string) GainEntry {
	m.gainsMu.Lock()
	defer m.gainsMu.Unlock()
	sources := m.gains[listenerID]
	if sources == nil {
		return GainEntry{Gain: 1.0}
	}
	entry, ok := sources[sourceID]
	if !ok {
		return GainEntry{Gain: 1.0}
	}
	return entry
}

// PushInput is the producer side of participantID's input ring, called
// from the network-receive path. Returns false if the participant is
// unknown or the ring is full (frame dropped).
func (m *Mixer) PushInput(participantID string, frame audio.Frame) bool {
	m.participantsMu.Lock()
	state, ok := m.participants[participantID]
	m.participantsMu.Unlock()
	if !ok {
		return false
	}
	return state.input.TryPush(frame)
}

// PopOutput is the consumer side of participantID's output ring, called
// from the send path. Returns false if the participant is unknown or
// there is no frame to pop this cycle.
func (m *Mixer) PopOutput(participantID string, out *audio.Frame) bool {
	m.participantsMu.Lock()
	state, ok := m.participants[participantID]
	m.participantsMu.Unlock()
	if !ok {
		return false
	}
	return state.output.TryPop(out)
}

// ParticipantCount returns the current number of registered participants.
func (m *Mixer) ParticipantCount() int {
	m.participantsMu.Lock()
	defer m.participantsMu.Unlock()
	return len(m.participants)
}

// MixCycle runs one mix step: it snapshots participants and gains, mixes
// every listener's personalised sum of every other participant's next
// queued input frame (at most one popped per participant), and pushes the result to each listener's output ring. Must
// not allocate once warmed up. Called only from the room's RT thread.
func (m *Mixer) MixCycle() {
	m.activeIDs = m.activeIDs[:0]
	m.activeStates = m.activeStates[:0]
	m.participantsMu.Lock()
	for id, state := range m.participants {
		m.activeIDs = append(m.activeIDs, id)
		m.activeStates = append(m.activeStates, state)
	}
	m.participantsMu.Unlock()

	n := len(m.activeIDs)
	if n == 0 {
		return
	}
	if cap(m.inputFrames) < n {
		m.inputFrames = make([]audio.Frame, n)
		m.hasInput = make([]bool, n)
	}
	m.inputFrames = m.inputFrames[:n]
	m.hasInput = m.hasInput[:n]

	for i := 0; i < n; i++ {
		m.hasInput[i] = m.activeStates[i].input.TryPop(&m.inputFrames[i])
	}

	m.gainsMu.Lock()
	for listener := range m.gainsSnapshot {
		if _, ok := m.gains[listener]; !ok {
			delete(m.gainsSnapshot, listener)
		}
	}
	for listener, sources := range m.gains {
		copySources := m.gainsSnapshot[listener]
		if copySources == nil {
			copySources = make(map[string]GainEntry, len(sources))
			m.gainsSnapshot[listener] = copySources
		} else {
			for k := range copySources {
				delete(copySources, k)
			}
		}
		for source, entry := range sources {
			copySources[source] = entry
		}
	}
	m.gainsMu.Unlock()

	for listenerIdx := 0; listenerIdx < n; listenerIdx++ {
		listenerID := m.activeIDs[listenerIdx]

		for s := range m.accum {
			m.accum[s] = 0
		}
		anyInput := false
		listenerGains := m.gainsSnapshot[listenerID]

		for sourceIdx := 0; sourceIdx < n; sourceIdx++ {
			if sourceIdx == listenerIdx || !m.hasInput[sourceIdx] {
				continue
			}
			sourceID := m.activeIDs[sourceIdx]

			gain := 1.0
			muted := false
			if listenerGains != nil {
				if entry, ok := listenerGains[sourceID]; ok {
					gain = entry.Gain
					muted = entry.Muted
				}
			}
			if muted || gain <= 0 {
				continue
			}

			anyInput = true
			samples := &m.inputFrames[sourceIdx].Samples
			for s := 0; s < audio.SamplesPerFrame; s++ {
				m.accum[s] += int64(roundHalfToNearest(float64(samples[s]) * gain))
			}
		}

		if !anyInput {
			continue
		}

		var out audio.Frame
		for s := 0; s < audio.SamplesPerFrame; s++ {
			out.Samples[s] = audio.SaturateSample(float64(m.accum[s]))
		}
		m.activeStates[listenerIdx].output.TryPush(out)
	}
}

func roundHalfToNearest(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}
