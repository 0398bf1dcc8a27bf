package cache

import (
	"bytes"
	"testing"
	"time"
)

func newTestStore() (*Store, *ManualClock) {
	clock := NewManualClock(time.Unix(1_700_000_000, 0))
	return NewStore(clock), clock
}

func TestSetThenGetRoundTrips(t *testing.T) {
	s, _ := newTestStore()
	s.Set("foo", []byte("hello"), 42, 0)
	body, flags, ok := s.Get("foo")
	if !ok || !bytes.Equal(body, []byte("hello")) || flags != 42 {
		t.Fatalf("got body=%q flags=%d ok=%v", body, flags, ok)
	}
}

func TestGetMissOnUnknownKey(t *testing.T) {
	s, _ := newTestStore()
	if _, _, ok := s.Get("nope"); ok {
		t.Fatal("expected miss")
	}
}

func TestGetHitWithZeroFlags(t *testing.T) {
	// regression: the original source's `if body and flags` hid flags==0 hits
	s, _ := newTestStore()
	s.Set("k", []byte("v"), 0, 0)
	body, flags, ok := s.Get("k")
	if !ok {
		t.Fatal("flags==0 must still be a hit")
	}
	if flags != 0 || !bytes.Equal(body, []byte("v")) {
		t.Fatalf("got body=%q flags=%d", body, flags)
	}
}

func TestAddFailsWhenKeyExists(t *testing.T) {
	s, _ := newTestStore()
	if !s.Add("k", []byte("abc"), 7, 0) {
		t.Fatal("first add must succeed")
	}
	if s.Add("k", []byte("xyz"), 7, 0) {
		t.Fatal("second add on a live key must fail")
	}
	body, flags, _ := s.Get("k")
	if !bytes.Equal(body, []byte("abc")) || flags != 7 {
		t.Fatalf("add must not have overwritten, got body=%q flags=%d", body, flags)
	}
}

func TestAddSucceedsAgainstExpiredKey(t *testing.T) {
	s, clock := newTestStore()
	s.Set("k", []byte("old"), 0, 5)
	clock.Advance(10 * time.Second)
	if !s.Add("k", []byte("new"), 0, 0) {
		t.Fatal("add against an expired-but-indexed key must treat it as absent")
	}
	body, _, _ := s.Get("k")
	if !bytes.Equal(body, []byte("new")) {
		t.Fatalf("got %q", body)
	}
}

func TestReplaceRequiresExistingLiveKey(t *testing.T) {
	s, _ := newTestStore()
	if s.Replace("missing", []byte("v"), 0, 0) {
		t.Fatal("replace against a missing key must fail")
	}
	s.Set("k", []byte("v1"), 0, 0)
	if !s.Replace("k", []byte("v2"), 0, 0) {
		t.Fatal("replace against a live key must succeed")
	}
}

func TestAppendConcatenatesAndKeepsOriginalFlags(t *testing.T) {
	s, _ := newTestStore()
	s.Set("k", []byte("ab"), 9, 0)
	if !s.Append("k", []byte("cd"), nil, nil) {
		t.Fatal("append on a live key must succeed")
	}
	body, flags, _ := s.Get("k")
	if !bytes.Equal(body, []byte("abcd")) || flags != 9 {
		t.Fatalf("got body=%q flags=%d", body, flags)
	}
}

func TestAppendOnMissingKeyFails(t *testing.T) {
	s, _ := newTestStore()
	if s.Append("missing", []byte("x"), nil, nil) {
		t.Fatal("append on a missing key must fail")
	}
}

func TestAppendOnExpiredKeyFails(t *testing.T) {
	s, clock := newTestStore()
	s.Set("k", []byte("ab"), 0, 1)
	clock.Advance(2 * time.Second)
	if s.Append("k", []byte("cd"), nil, nil) {
		t.Fatal("append on an expired key must fail")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newTestStore()
	s.Set("k", []byte("v"), 0, 0)
	if !s.Delete("k") {
		t.Fatal("first delete must report hit")
	}
	if s.Delete("k") {
		t.Fatal("second delete must report miss")
	}
	if s.Delete("k") {
		t.Fatal("delete must stay idempotent thereafter")
	}
}

func TestTouchUpdatesExpiry(t *testing.T) {
	s, clock := newTestStore()
	s.Set("k", []byte("v"), 0, 5)
	clock.Advance(4 * time.Second)
	newExp := uint32(100)
	if !s.Touch("k", &newExp) {
		t.Fatal("touch on a live key must succeed")
	}
	clock.Advance(50 * time.Second)
	if _, _, ok := s.Get("k"); !ok {
		t.Fatal("touch must have extended the expiry window")
	}
}

func TestTouchOnMissingKeyFails(t *testing.T) {
	s, _ := newTestStore()
	if s.Touch("missing", nil) {
		t.Fatal("touch on a missing key must fail")
	}
}

func TestCounterMonotonicity(t *testing.T) {
	s, _ := newTestStore()
	s.Set("a", []byte("1"), 0, 0)
	s.Get("a")
	s.Get("missing")
	s.Delete("a")
	s.Delete("a")

	stats1 := s.Stats()
	s.Set("b", []byte("2"), 0, 0)
	s.Get("b")
	stats2 := s.Stats()

	for _, key := range []string{"cmd_get", "cmd_set", "get_hits", "get_misses", "delete_hits", "delete_misses", "total_items"} {
		v1, v2 := stats1[key], stats2[key]
		if v2 < v1 {
			t.Fatalf("%s decreased: %s -> %s", key, v1, v2)
		}
	}
}

func TestPeekDoesNotPerturbCounters(t *testing.T) {
	s, _ := newTestStore()
	s.Set("k", []byte("v"), 7, 0)

	before := s.Stats()
	body, flags, ok := s.Peek("k")
	if !ok || !bytes.Equal(body, []byte("v")) || flags != 7 {
		t.Fatalf("got body=%q flags=%d ok=%v", body, flags, ok)
	}
	after := s.Stats()

	for _, key := range []string{"cmd_get", "get_hits", "get_misses", "bytes_read"} {
		if before[key] != after[key] {
			t.Fatalf("Peek changed %s: %s -> %s", key, before[key], after[key])
		}
	}
}

func TestPeekMissOnExpired(t *testing.T) {
	s, clock := newTestStore()
	s.Set("k", []byte("v"), 0, 5)
	clock.Advance(10 * time.Second)
	if _, _, ok := s.Peek("k"); ok {
		t.Fatal("expected Peek to treat an expired record as a miss")
	}
}

func TestStatsRequiredKeysPresent(t *testing.T) {
	s, _ := newTestStore()
	stats := s.Stats()
	required := []string{
		"pid", "uptime", "time", "version", "curr_connections",
		"total_connections", "threads", "bytes", "curr_items",
		"total_items", "evictions",
	}
	for _, k := range required {
		if _, ok := stats[k]; !ok {
			t.Errorf("missing required stat key %q", k)
		}
	}
	if stats["version"] != Version {
		t.Errorf("version stat = %q, want %q", stats["version"], Version)
	}
}

func TestExtraStatsAddsHumanBytes(t *testing.T) {
	s, _ := newTestStore()
	s.ExtraStats = true
	s.Set("k", []byte("v"), 0, 0)
	stats := s.Stats()
	if _, ok := stats["bytes_human"]; !ok {
		t.Error("extra_stats must add bytes_human")
	}
}

func TestPurgeExpiredRemovesOnlyDeadKeys(t *testing.T) {
	s, clock := newTestStore()
	s.Set("live", []byte("v"), 0, 0)
	s.Set("dead", []byte("v"), 0, 1)
	clock.Advance(2 * time.Second)
	n := s.PurgeExpired()
	if n != 1 {
		t.Fatalf("expected to purge exactly 1 key, purged %d", n)
	}
	if _, _, ok := s.Get("live"); !ok {
		t.Fatal("live key must survive a purge")
	}
}
