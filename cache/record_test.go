package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestRecordExpiredNever(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	r := NewRecord(clock, []byte("v"), 0, 0)
	clock.Advance(10 * 365 * 24 * time.Hour)
	if r.Expired(clock) {
		t.Fatal("exptime=0 must never expire")
	}
}

func TestRecordExpiredRelative(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	r := NewRecord(clock, []byte("v"), 0, 5)
	if r.Expired(clock) {
		t.Fatal("freshly created record with exptime=5 must be live")
	}
	clock.Advance(5 * time.Second)
	if r.Expired(clock) {
		t.Fatal("at exactly created+exptime the record must still be live (>=)")
	}
	clock.Advance(1 * time.Second)
	if !r.Expired(clock) {
		t.Fatal("past created+exptime the record must be expired")
	}
}

func TestRecordExpiredAbsolute(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	abs := uint32(relativeExptimeLimit + 2000) // definitely in the absolute-timestamp branch
	r := NewRecord(clock, []byte("v"), 0, abs)
	if r.Expired(clock) {
		t.Fatal("absolute exptime in the future must be live")
	}
	clock.Advance(time.Duration(abs) * time.Second)
	if !r.Expired(clock) {
		t.Fatal("past the absolute exptime the record must be expired")
	}
}

func TestRecordAppendPrepend(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	r := NewRecord(clock, []byte("ab"), 7, 0)
	r.Append(clock, []byte("cd"), nil, nil)
	if !bytes.Equal(r.Body(), []byte("abcd")) {
		t.Fatalf("append: got %q", r.Body())
	}
	if r.Flags() != 7 {
		t.Fatalf("append must not change flags when override is nil, got %d", r.Flags())
	}
	r.Prepend(clock, []byte("__"), nil, nil)
	if !bytes.Equal(r.Body(), []byte("__abcd")) {
		t.Fatalf("prepend: got %q", r.Body())
	}
}

func TestRecordAppendOverridesFlagsAndExptime(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	r := NewRecord(clock, []byte("ab"), 7, 0)
	newFlags := uint32(99)
	newExp := uint32(42)
	r.Append(clock, []byte("cd"), &newFlags, &newExp)
	if r.Flags() != 99 || r.Exptime() != 42 {
		t.Fatalf("append must honor explicit overrides, got flags=%d exptime=%d", r.Flags(), r.Exptime())
	}
}

func TestRecordTouchResetsCreatedOnly(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	r := NewRecord(clock, []byte("v"), 3, 10)
	clock.Advance(5 * time.Second)
	r.Touch(clock, nil)
	if r.Created() != 1005 {
		t.Fatalf("touch must reset created to now, got %d", r.Created())
	}
	if r.Exptime() != 10 {
		t.Fatal("touch without an explicit exptime must not change it")
	}
	newExp := uint32(20)
	r.Touch(clock, &newExp)
	if r.Exptime() != 20 {
		t.Fatal("touch with an explicit exptime must update it")
	}
}

func TestRecordLargeBodyRoundTripsThroughCompression(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	big := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	r := NewRecord(clock, big, 1, 0)
	if !r.compressed {
		t.Fatal("a long, highly repetitive body should compress")
	}
	if !bytes.Equal(r.Body(), big) {
		t.Fatal("compressed body must round-trip to the exact original bytes")
	}
	if r.Len() != len(big) {
		t.Fatalf("Len() must report the uncompressed length, got %d want %d", r.Len(), len(big))
	}
}

func TestRecordIncompressibleBodyStoresRaw(t *testing.T) {
	clock := NewManualClock(time.Unix(1000, 0))
	// pseudo-random bytes, not actually random (deterministic test), but
	// dense enough that lz4 can't make it any shorter than the input.
	raw := make([]byte, 1024)
	x := uint32(12345)
	for i := range raw {
		x = x*1664525 + 1013904223
		raw[i] = byte(x >> 24)
	}
	r := NewRecord(clock, raw, 0, 0)
	if r.compressed {
		t.Fatal("a body lz4 can't shrink must be stored raw")
	}
	if !bytes.Equal(r.Body(), raw) {
		t.Fatal("incompressible body must still round-trip exactly")
	}
}
