package audio

import "testing"

func TestRingPushPop(t *testing.T) {
	r := NewRing(8)

	var out Frame
	if r.TryPop(&out) {
		t.Error("TryPop should fail on empty ring")
	}

	frame := Frame{Sequence: 1}
	if !r.TryPush(frame) {
		t.Error("TryPush should succeed on empty ring")
	}

	if !r.TryPop(&out) {
		t.Fatal("TryPop should succeed after push")
	}
	if out.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", out.Sequence)
	}

	if r.TryPop(&out) {
		t.Error("TryPop should fail once drained")
	}
}

func TestRingFullDropsAtProducer(t *testing.T) {
	r := NewRing(4) // clamped up to MinRingCapacity (8)
	for i := 0; i < r.Capacity(); i++ {
		if !r.TryPush(Frame{Sequence: uint32(i)}) {
			t.Fatalf("push %d should succeed", i)
		}
	}

	if r.TryPush(Frame{Sequence: 999}) {
		t.Error("push into full ring should fail (drop at producer)")
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}

	// Draining then pushing should work again.
	var out Frame
	r.TryPop(&out)
	if !r.TryPush(Frame{Sequence: 1000}) {
		t.Error("push after drain should succeed")
	}
}

func TestRingCapacityRoundsUpAndClampsMinimum(t *testing.T) {
	r := NewRing(5)
	if r.Capacity() != 8 {
		t.Errorf("capacity = %d, want 8 (rounded up)", r.Capacity())
	}

	r2 := NewRing(1)
	if r2.Capacity() != MinRingCapacity {
		t.Errorf("capacity = %d, want clamped to %d", r2.Capacity(), MinRingCapacity)
	}
}

func TestRingFIFOOrder(t *testing.T) {
	r := NewRing(8)
	for i := 0; i < 5; i++ {
		r.TryPush(Frame{Sequence: uint32(i)})
	}
	for i := 0; i < 5; i++ {
		var out Frame
		if !r.TryPop(&out) {
			t.Fatalf("pop %d should succeed", i)
		}
		if out.Sequence != uint32(i) {
			t.Errorf("pop %d: sequence = %d, want %d", i, out.Sequence, i)
		}
	}
}

func TestRingSizeHint(t *testing.T) {
	r := NewRing(8)
	if r.SizeHint() != 0 {
		t.Errorf("SizeHint() = %d, want 0", r.SizeHint())
	}
	r.TryPush(Frame{})
	r.TryPush(Frame{})
	if r.SizeHint() != 2 {
		t.Errorf("SizeHint() = %d, want 2", r.SizeHint())
	}
}
