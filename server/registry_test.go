package server

import "testing"

func TestRegistryTracksOpenAndClose(t *testing.T) {
	r := NewRegistry()
	id1 := r.Open("127.0.0.1:1", "text")
	id2 := r.Open("127.0.0.1:2", "binary")

	curr, total := r.Stats()
	if curr != 2 || total != 2 {
		t.Fatalf("expected curr=2 total=2, got curr=%d total=%d", curr, total)
	}

	r.Close(id1)
	curr, total = r.Stats()
	if curr != 1 || total != 2 {
		t.Fatalf("expected curr=1 total=2 after close, got curr=%d total=%d", curr, total)
	}

	r.Close(id2)
	curr, total = r.Stats()
	if curr != 0 || total != 2 {
		t.Fatalf("expected curr=0 total=2, got curr=%d total=%d", curr, total)
	}
}

func TestRegistryAssignsDistinctIDs(t *testing.T) {
	r := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := r.Open("addr", "text")
		if seen[id] {
			t.Fatalf("duplicate connection id %q", id)
		}
		seen[id] = true
	}
}
