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
package cache

import (
	"github.com/pierrec/lz4/v4"
)

// compressThreshold is the body length at or above which a Record tries LZ4
// compression at rest. Small bodies aren't worth the codec overhead.
const compressThreshold = 256

// relativeExptimeLimit is the memcached boundary between "relative
// seconds from creation" and "absolute unix timestamp" exptime encodings.
const relativeExptimeLimit = 60 * 60 * 24 * 30 // 2,592,000

// Record is one cached value plus its flags, expiration and creation
// time. Body is owned exclusively by the Record; callers must not retain
// slices handed to New/Append/Prepend.
//
// Compression is an internal storage optimization only: Body() always
// returns exactly the bytes a client stored, and Len() always reports the
// uncompressed length a client would see.
type Record struct {
	body       []byte // compressed if compressed==true
	compressed bool
	rawLen     int // uncompressed length, valid only when compressed

	flags   uint32
	exptime uint32
	created int64 // unix seconds
}

// NewRecord builds a Record with body owned exclusively by the Record.
func NewRecord(clock Clock, body []byte, flags, exptime uint32) *Record {
	r := &Record{flags: flags, exptime: exptime}
	r.setBody(body)
	r.created = clock.Now().Unix()
	return r
}

func (r *Record) setBody(body []byte) {
	if len(body) < compressThreshold {
		r.body = append([]byte(nil), body...)
		r.compressed = false
		r.rawLen = 0
		return
	}
	bound := lz4.CompressBlockBound(len(body))
	dst := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(body, dst)
	if err != nil || n == 0 || n >= len(body) {
		// incompressible, or codec declined (n==0 per CompressBlock contract): store raw
		r.body = append([]byte(nil), body...)
		r.compressed = false
		r.rawLen = 0
		return
	}
	r.body = dst[:n]
	r.compressed = true
	r.rawLen = len(body)
}

// Body returns the exact bytes a client stored, decompressing if needed.
func (r *Record) Body() []byte {
	if !r.compressed {
		return r.body
	}
	dst := make([]byte, r.rawLen)
	n, err := lz4.UncompressBlock(r.body, dst)
	if err != nil {
		// corrupt at-rest block: fail safe to empty rather than panic the connection
		return nil
	}
	return dst[:n]
}

// Len reports the uncompressed body length without a full decompress.
func (r *Record) Len() int {
	if r.compressed {
		return r.rawLen
	}
	return len(r.body)
}

func (r *Record) Flags() uint32 {
	return r.flags
}

func (r *Record) Exptime() uint32 {
	return r.exptime
}

func (r *Record) Created() int64 {
	return r.created
}

// Append concatenates body to the tail, overriding flags/exptime only
// when the caller passes non-nil overrides. touch() is not implied.
func (r *Record) Append(clock Clock, body []byte, flags, exptime *uint32) {
	merged := append(append([]byte(nil), r.Body()...), body...)
	r.applyMutation(clock, merged, flags, exptime)
}

// Prepend is the symmetric mirror of Append, at the head.
func (r *Record) Prepend(clock Clock, body []byte, flags, exptime *uint32) {
	merged := append(append([]byte(nil), body...), r.Body()...)
	r.applyMutation(clock, merged, flags, exptime)
}

func (r *Record) applyMutation(clock Clock, merged []byte, flags, exptime *uint32) {
	if flags != nil {
		r.flags = *flags
	}
	if exptime != nil {
		r.exptime = *exptime
	}
	r.setBody(merged)
}

// Touch refreshes created to now and, if exptime is non-nil, updates the
// expiration field. Flags are never touched.
func (r *Record) Touch(clock Clock, exptime *uint32) {
	r.created = clock.Now().Unix()
	if exptime != nil {
		r.exptime = *exptime
	}
}

// Deadline returns the absolute unix-seconds instant this record becomes
// dead, and whether it has one at all (exptime==0 means "never", and is
// reported as no deadline rather than some sentinel value).
func (r *Record) Deadline() (int64, bool) {
	if r.exptime == 0 {
		return 0, false
	}
	if r.exptime < relativeExptimeLimit {
		return r.created + int64(r.exptime), true
	}
	return int64(r.exptime), true
}

// Expired evaluates the three-branch memcached expiry rule against now.
func (r *Record) Expired(clock Clock) bool {
	if r.exptime == 0 {
		return false
	}
	now := clock.Now().Unix()
	if r.exptime < relativeExptimeLimit {
		return r.created+int64(r.exptime) < now
	}
	return int64(r.exptime) < now
}
