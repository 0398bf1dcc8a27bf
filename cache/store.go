/*
Copyright (C) 2026  the go-memcached authors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package cache implements the process-wide key/value store: a keyed
// mapping from byte-string keys to Records, with memcached semantics for
// expiration, in-place mutation and cumulative statistics.
package cache

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	units "github.com/docker/go-units"
)

// Version is the memcached protocol version this server is byte-compatible
// with, returned verbatim by the "version" command and binary opcode 0x0B.
const Version = "1.4.17"

// Store is the sole shared mutable resource in the server: every method is
// guarded by a single RWMutex, matching the "single lock around the
// mapping" concurrency model spec.md sanctions. See SPEC_FULL.md §3 for
// why this is a plain mutex-guarded map rather than a lock-free structure.
type Store struct {
	mu    sync.RWMutex
	clock Clock
	items map[string]*Record
	exp   *expiryIndex

	startedMono time.Duration
	counters    counters

	// ExtraStats controls whether Stats() includes the extended, non-core
	// counters and the human-readable bytes rendering (--extra_stats).
	ExtraStats bool

	// ConnStats is consulted by Stats() for curr_connections/
	// total_connections; the Store has no notion of connections itself,
	// the acceptor owns that count and registers this callback.
	ConnStats func() (curr, total int64)
}

type counters struct {
	cmdGet      uint64
	cmdSet      uint64
	cmdTouch    uint64
	getHits     uint64
	getMisses   uint64
	deleteHits  uint64
	deleteMisses uint64
	touchHits   uint64
	touchMisses uint64
	bytesRead   uint64
	bytesWritten uint64
	totalItems  uint64
}

// NewStore creates an empty Store. clock is injected so tests can control
// expiration deterministically.
func NewStore(clock Clock) *Store {
	return &Store{
		clock:       clock,
		items:       make(map[string]*Record),
		exp:         newExpiryIndex(),
		startedMono: clock.Monotonic(),
	}
}

// indexLocked (re)indexes key's current deadline, removing any prior
// indexed deadline for it first. Caller must hold the write lock.
func (s *Store) indexLocked(key string, old *Record, r *Record) {
	var oldDeadline int64
	var hadOld bool
	if old != nil {
		oldDeadline, hadOld = old.Deadline()
	}
	s.exp.set(key, oldDeadline, hadOld, r)
}

// existsLocked reports whether key is present and live. Caller must hold
// at least a read lock; it does NOT purge an observed-expired entry: such
// an entry stays in the map until Set/Add overwrite it, Delete drops it,
// or PurgeExpired sweeps it.
func (s *Store) existsLocked(key string) (*Record, bool) {
	r, ok := s.items[key]
	if !ok || r.Expired(s.clock) {
		return nil, false
	}
	return r, true
}

// Set always succeeds: it replaces whatever was there, live or not.
func (s *Store) Set(key string, body []byte, flags, exptime uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.items[key]
	r := NewRecord(s.clock, body, flags, exptime)
	s.items[key] = r
	s.indexLocked(key, old, r)
	s.counters.cmdSet++
	s.counters.bytesWritten += uint64(len(body))
	s.counters.totalItems++
	return true
}

// Add succeeds iff the key is not currently live (an expired-but-indexed
// key counts as absent, per spec.md §4.3 edge cases).
func (s *Store) Add(key string, body []byte, flags, exptime uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.existsLocked(key); ok {
		return false
	}
	old := s.items[key] // possibly a stale expired entry, still needs de-indexing
	r := NewRecord(s.clock, body, flags, exptime)
	s.items[key] = r
	s.indexLocked(key, old, r)
	s.counters.bytesWritten += uint64(len(body))
	s.counters.totalItems++
	return true
}

// Replace succeeds iff the key is currently live.
func (s *Store) Replace(key string, body []byte, flags, exptime uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.existsLocked(key)
	if !ok {
		return false
	}
	r := NewRecord(s.clock, body, flags, exptime)
	s.items[key] = r
	s.indexLocked(key, old, r)
	s.counters.bytesWritten += uint64(len(body))
	return true
}

// Append concatenates body to the tail of an existing live record. flags
// and exptime are left untouched unless overridden explicitly by the
// caller (nil means "don't override").
func (s *Store) Append(key string, body []byte, flags, exptime *uint32) bool {
	return s.mutate(key, body, flags, exptime, (*Record).Append)
}

// Prepend is the symmetric mirror of Append, at the head.
func (s *Store) Prepend(key string, body []byte, flags, exptime *uint32) bool {
	return s.mutate(key, body, flags, exptime, (*Record).Prepend)
}

func (s *Store) mutate(key string, body []byte, flags, exptime *uint32, op func(*Record, Clock, []byte, *uint32, *uint32)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.existsLocked(key)
	if !ok {
		return false
	}
	oldDeadline, hadOld := r.Deadline()
	op(r, s.clock, body, flags, exptime)
	s.exp.set(key, oldDeadline, hadOld, r)
	s.counters.bytesWritten += uint64(len(body))
	return true
}

// Get returns the live value and flags for key, or (nil, 0, false) on a
// miss — a miss includes a key that is present but expired. Hit/miss is
// independent of the record's flags value (spec.md §9 corrects the
// original's `if body and flags` bug, which hid flags==0 entries).
func (s *Store) Get(key string) ([]byte, uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.cmdGet++
	r, ok := s.existsLocked(key)
	if !ok {
		s.counters.getMisses++
		return nil, 0, false
	}
	s.counters.getHits++
	body := r.Body()
	s.counters.bytesRead += uint64(len(body))
	return body, r.Flags(), true
}

// Peek is Get without the side effect: it reads a live key's value and
// flags but touches no counter. Meant for out-of-band observers (the
// admin console) that shouldn't perturb the cmd_get/get_hits/get_misses
// stats they themselves report.
func (s *Store) Peek(key string) ([]byte, uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[key]
	if !ok || r.Expired(s.clock) {
		return nil, 0, false
	}
	return r.Body(), r.Flags(), true
}

// Delete removes key and reports whether it was live beforehand.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.existsLocked(key)
	if r, present := s.items[key]; present {
		if d, hasDeadline := r.Deadline(); hasDeadline {
			s.exp.remove(key, d)
		}
	}
	delete(s.items, key) // also drops a stale expired entry; harmless no-op if key was never present
	if ok {
		s.counters.deleteHits++
	} else {
		s.counters.deleteMisses++
	}
	return ok
}

// Touch refreshes created (and optionally exptime) for a live key.
func (s *Store) Touch(key string, exptime *uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.cmdTouch++
	r, ok := s.existsLocked(key)
	if !ok {
		s.counters.touchMisses++
		return false
	}
	oldDeadline, hadOld := r.Deadline()
	r.Touch(s.clock, exptime)
	s.exp.set(key, oldDeadline, hadOld, r)
	s.counters.touchHits++
	return true
}

// Version returns the protocol version this server is compatible with.
func (s *Store) Version() string {
	return Version
}

// PurgeExpired removes every currently-expired key. It is an optional
// eager sweep (see server.Reaper): lookups already treat an expired record
// as absent, and Stats() already leaves it out of curr_items/bytes, so this
// only frees the memory of expired records nobody looks up again. It consults
// the btree expiry index to visit only keys due by now instead of
// scanning the whole map, but always re-checks Record.Expired before
// deleting — the index can lag a concurrent Set/Touch by nothing (both
// hold the same write lock), so this is a belt-and-suspenders check, not
// a correctness dependency.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.exp.dueBy(s.clock.Now().Unix()) {
		r, ok := s.items[k]
		if !ok || !r.Expired(s.clock) {
			continue
		}
		if d, hasDeadline := r.Deadline(); hasDeadline {
			s.exp.remove(k, d)
		}
		delete(s.items, k)
		n++
	}
	return n
}

// Stats returns a snapshot of every statistic spec.md §4.3 requires, as
// strings ready for the text "STAT <key> <value>\r\n" rendering.
func (s *Store) Stats() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var liveBytes, liveItems uint64
	for _, r := range s.items {
		if !r.Expired(s.clock) {
			liveBytes += uint64(r.Len())
			liveItems++
		}
	}

	var currConn, totalConn int64
	if s.ConnStats != nil {
		currConn, totalConn = s.ConnStats()
	}

	out := map[string]string{
		"pid":               strconv.Itoa(os.Getpid()),
		"uptime":            strconv.FormatInt(int64((s.clock.Monotonic()-s.startedMono)/time.Second), 10),
		"time":              strconv.FormatInt(s.clock.Now().Unix(), 10),
		"version":           Version,
		"curr_connections":  strconv.FormatInt(currConn, 10),
		"total_connections": strconv.FormatInt(totalConn, 10),
		"threads":           strconv.Itoa(runtime.GOMAXPROCS(0)),
		"bytes":             strconv.FormatUint(liveBytes, 10),
		"curr_items":        strconv.FormatUint(liveItems, 10),
		"total_items":       strconv.FormatUint(s.counters.totalItems, 10),
		"evictions":         "0",
		"cmd_get":           strconv.FormatUint(s.counters.cmdGet, 10),
		"cmd_set":           strconv.FormatUint(s.counters.cmdSet, 10),
		"cmd_touch":         strconv.FormatUint(s.counters.cmdTouch, 10),
		"get_hits":          strconv.FormatUint(s.counters.getHits, 10),
		"get_misses":        strconv.FormatUint(s.counters.getMisses, 10),
		"delete_hits":       strconv.FormatUint(s.counters.deleteHits, 10),
		"delete_misses":     strconv.FormatUint(s.counters.deleteMisses, 10),
		"touch_hits":        strconv.FormatUint(s.counters.touchHits, 10),
		"touch_misses":      strconv.FormatUint(s.counters.touchMisses, 10),
		"bytes_read":        strconv.FormatUint(s.counters.bytesRead, 10),
		"bytes_written":     strconv.FormatUint(s.counters.bytesWritten, 10),
	}

	if s.ExtraStats {
		out["bytes_human"] = units.BytesSize(float64(liveBytes))
		out["get_hit_ratio"] = fmt.Sprintf("%.4f", hitRatio(s.counters.getHits, s.counters.getMisses))
	}

	return out
}

func hitRatio(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// SortedStatKeys returns the keys of a Stats() snapshot in sorted order,
// matching spec.md §4.4's "sorted key order" requirement for the text
// "stats" reply.
func SortedStatKeys(stats map[string]string) []string {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
