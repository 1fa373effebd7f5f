package mixer

import (
	"testing"

	"github.com/jameshartt/tutti/internal/core/audio"
)

func makeFrame(value int16, seq uint32) audio.Frame {
	var f audio.Frame
	f.Sequence = seq
	f.Timestamp = seq * audio.SamplesPerFrame
	for i := range f.Samples {
		f.Samples[i] = value
	}
	return f
}

func TestEmptyMixProducesNothing(t *testing.T) {
	m := New(4, 8)
	m.MixCycle() // should not panic
}

func TestSingleParticipantNoOutput(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("alice")

	if !m.PushInput("alice", makeFrame(1000, 0)) {
		t.Fatal("PushInput should succeed")
	}
	m.MixCycle()

	var out audio.Frame
	if m.PopOutput("alice", &out) {
		t.Error("solo participant should never receive output")
	}
}

func TestTwoParticipantsForward(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("alice")
	m.AddParticipant("bob")

	m.PushInput("alice", makeFrame(5000, 1))
	m.PushInput("bob", makeFrame(3000, 1))

	m.MixCycle()

	var aliceOut audio.Frame
	if !m.PopOutput("alice", &aliceOut) {
		t.Fatal("alice should receive output")
	}
	for i, s := range aliceOut.Samples {
		if s != 3000 {
			t.Fatalf("alice sample[%d] = %d, want 3000 (bob's audio)", i, s)
		}
	}

	var bobOut audio.Frame
	if !m.PopOutput("bob", &bobOut) {
		t.Fatal("bob should receive output")
	}
	for i, s := range bobOut.Samples {
		if s != 5000 {
			t.Fatalf("bob sample[%d] = %d, want 5000 (alice's audio)", i, s)
		}
	}
}

func TestThreeParticipantSumWithClamp(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")
	m.AddParticipant("c")

	m.PushInput("a", makeFrame(0, 1))
	m.PushInput("b", makeFrame(30000, 1))
	m.PushInput("c", makeFrame(30000, 1))

	m.MixCycle()

	var aOut audio.Frame
	if !m.PopOutput("a", &aOut) {
		t.Fatal("a should receive output")
	}
	for i, s := range aOut.Samples {
		if s != 32767 {
			t.Fatalf("a sample[%d] = %d, want 32767 (saturated sum)", i, s)
		}
	}

	var bOut audio.Frame
	if !m.PopOutput("b", &bOut) {
		t.Fatal("b should receive output")
	}
	for i, s := range bOut.Samples {
		if s != 30000 {
			t.Fatalf("b sample[%d] = %d, want 30000 (only c's audio)", i, s)
		}
	}

	var cOut audio.Frame
	if !m.PopOutput("c", &cOut) {
		t.Fatal("c should receive output")
	}
	for i, s := range cOut.Samples {
		if s != 30000 {
			t.Fatalf("c sample[%d] = %d, want 30000 (only b's audio)", i, s)
		}
	}
}

func TestGainAndMute(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")
	m.AddParticipant("c")

	m.SetGain("a", "b", 0.5)
	m.SetMute("a", "c", true)

	m.PushInput("b", makeFrame(10000, 1))
	m.PushInput("c", makeFrame(20000, 1))

	m.MixCycle()

	var aOut audio.Frame
	if !m.PopOutput("a", &aOut) {
		t.Fatal("a should receive output")
	}
	for i, s := range aOut.Samples {
		if s != 5000 {
			t.Fatalf("a sample[%d] = %d, want 5000 (0.5*10000, c muted)", i, s)
		}
	}
}

func TestGainClampedToUnitRange(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")

	m.SetGain("a", "b", -0.5)
	if got := m.GetGainEntry("a", "b"); got.Gain != 0.0 {
		t.Errorf("gain = %v, want clamped to 0.0", got.Gain)
	}

	m.SetGain("a", "b", 2.0)
	if got := m.GetGainEntry("a", "b"); got.Gain != 1.0 {
		t.Errorf("gain = %v, want clamped to 1.0", got.Gain)
	}
}

func TestSetGainIsIdempotentNoOp(t *testing.T) {
	m := New(4, 8)
	m.SetGain("a", "b", 0.3)
	m.SetGain("a", "b", 0.3)
	if got := m.GetGainEntry("a", "b"); got.Gain != 0.3 {
		t.Errorf("gain = %v, want 0.3", got.Gain)
	}
}

func TestSetMuteOnUntouchedPairDefaultsGainToUnity(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")

	// An idempotent "ensure unmuted" call against a pair that has never
	// had its gain set must not pin the source at zero volume.
	m.SetMute("a", "b", false)
	if got := m.GetGainEntry("a", "b"); got.Gain != 1.0 || got.Muted {
		t.Fatalf("entry = %+v, want {Gain:1.0, Muted:false}", got)
	}

	m.PushInput("b", makeFrame(4000, 1))
	m.MixCycle()

	var aOut audio.Frame
	if !m.PopOutput("a", &aOut) {
		t.Fatal("a should receive output")
	}
	if aOut.Samples[0] != 4000 {
		t.Fatalf("sample[0] = %d, want 4000 (b's audio at default unity gain)", aOut.Samples[0])
	}
}

func TestMuteThenUnmuteRestoresUnityGain(t *testing.T) {
	m := New(4, 8)
	m.SetMute("a", "b", true)
	m.SetMute("a", "b", false)
	if got := m.GetGainEntry("a", "b"); got.Gain != 1.0 || got.Muted {
		t.Fatalf("entry = %+v, want {Gain:1.0, Muted:false}", got)
	}
}

func TestListenerNeverHearsItself(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")
	m.AddParticipant("c")

	m.PushInput("a", makeFrame(9999, 1))
	m.PushInput("b", makeFrame(1, 1))
	m.PushInput("c", makeFrame(1, 1))

	m.MixCycle()

	var aOut audio.Frame
	if !m.PopOutput("a", &aOut) {
		t.Fatal("a should receive output")
	}
	for i, s := range aOut.Samples {
		if s != 2 {
			t.Fatalf("a sample[%d] = %d, want 2 (b+c, not a's own 9999)", i, s)
		}
	}
}

func TestRemoveParticipantPrunesGainsBothSides(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")
	m.SetGain("a", "b", 0.5)
	m.SetGain("b", "a", 0.7)

	m.RemoveParticipant("b")
	// Idempotent: a second removal must not panic or error.
	m.RemoveParticipant("b")

	if got := m.GetGainEntry("a", "b"); got.Gain != 1.0 {
		t.Errorf("gains[a][b] should be pruned back to default, got %v", got.Gain)
	}
	if got := m.GetGainEntry("b", "a"); got.Gain != 1.0 {
		t.Errorf("gains[b][a] should be pruned, got %v", got.Gain)
	}

	m.MixCycle() // must not reference removed participant b
	if m.ParticipantCount() != 1 {
		t.Errorf("participant count = %d, want 1", m.ParticipantCount())
	}
}

func TestMixCycleSaturatesEverySample(t *testing.T) {
	m := New(4, 8)
	m.AddParticipant("a")
	m.AddParticipant("b")
	m.AddParticipant("c")

	m.PushInput("b", makeFrame(-30000, 1))
	m.PushInput("c", makeFrame(-30000, 1))

	m.MixCycle()

	var aOut audio.Frame
	if !m.PopOutput("a", &aOut) {
		t.Fatal("a should receive output")
	}
	for i, s := range aOut.Samples {
		if s < -32768 || s > 32767 {
			t.Fatalf("sample[%d] = %d out of int16 range", i, s)
		}
		if s != -32768 {
			t.Fatalf("sample[%d] = %d, want -32768 (saturated)", i, s)
		}
	}
}
