package wsref

import "testing"

func TestFormatIDIsStableAndNonEmpty(t *testing.T) {
	seen := make(map[string]bool)
	for i := uint64(1); i < 1000; i++ {
		id := formatID(i)
		if id == "" {
			t.Fatalf("formatID(%d) is empty", i)
		}
		if seen[id] {
			t.Fatalf("formatID(%d) collided with a previous id: %q", i, id)
		}
		seen[id] = true
	}
}

func TestAllocateIDIsUnique(t *testing.T) {
	s := &Server{sessions: make(map[string]*Session), byAddr: make(map[string]*Session)}
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.allocateID()
		if ids[id] {
			t.Fatalf("duplicate id %q", id)
		}
		ids[id] = true
	}
}
