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
package server

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/launix-de/NonLockingReadMap"
)

// conn is one tracked client connection: read far more often (stats,
// admin console) than written (connect/disconnect), which is exactly the
// access pattern NonLockingReadMap is built for.
type conn struct {
	id        string
	remote    string
	dialect   string
	connected int64
}

func (c *conn) GetKey() string   { return c.id }
func (c *conn) ComputeSize() uint { return uint(len(c.id) + len(c.remote) + len(c.dialect) + 8) }

// uuidCounter seeds a counter-mixed, non-cryptographic UUID the same way
// storage.newUUID avoids a crypto/rand syscall per accepted connection;
// connection IDs are never security sensitive, only used for admin
// bookkeeping.
var uuidCounter uint64 = uint64(time.Now().UnixNano())

func newConnID() string {
	ctr := atomic.AddUint64(&uuidCounter, 1)
	now := uint64(time.Now().UnixNano())
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(ctr >> (8 * i))
	}
	mixed := ctr ^ now ^ (now << 17)
	for i := 0; i < 8; i++ {
		b[8+i] = byte(mixed >> (8 * i))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b).String()
}

// Registry tracks every currently open and every ever-opened connection,
// feeding cache.Store's curr_connections/total_connections stats.
type Registry struct {
	conns NonLockingReadMap.NonLockingReadMap[conn, string]
	total int64
}

// NewRegistry builds an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{conns: NonLockingReadMap.New[conn, string]()}
}

// Open registers a newly accepted connection and returns its id.
func (r *Registry) Open(remote, dialect string) string {
	id := newConnID()
	r.conns.Set(&conn{id: id, remote: remote, dialect: dialect, connected: time.Now().Unix()})
	atomic.AddInt64(&r.total, 1)
	return id
}

// Close removes a connection from the registry once it disconnects.
func (r *Registry) Close(id string) {
	r.conns.Remove(id)
}

// Stats reports (current, total) connection counts for cache.Store.ConnStats.
func (r *Registry) Stats() (curr, total int64) {
	return int64(len(r.conns.GetAll())), atomic.LoadInt64(&r.total)
}
