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
	"time"

	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
)

// Reaper periodically sweeps the store for dead entries. Lazy expiry
// (checked on access) is all cache.Store needs for correctness; this is
// strictly a memory-reclamation optimization for keys nobody ever
// touches again, so its interval can be coarse.
type Reaper struct {
	store    *cache.Store
	log      *xlog.Log
	interval time.Duration
	stop     chan struct{}
}

// NewReaper builds a Reaper that sweeps store every interval.
func NewReaper(store *cache.Store, log *xlog.Log, interval time.Duration) *Reaper {
	return &Reaper{store: store, log: log, interval: interval, stop: make(chan struct{})}
}

// Run blocks, sweeping on each tick, until Stop is called.
func (r *Reaper) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			n := r.store.PurgeExpired()
			if n > 0 && r.log != nil {
				r.log.Info("reaper purged expired keys")
			}
		}
	}
}

// Stop ends the sweep loop. Safe to call once.
func (r *Reaper) Stop() {
	close(r.stop)
}
