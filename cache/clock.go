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

import "time"

// Clock supplies the wall-clock time the Store and Record use for
// expiration math, plus a monotonic companion (spec.md §4.1) Stats()
// uses for uptime so a wall-clock adjustment (NTP step, manual date
// change) can never make uptime run backward. Tests inject a manual
// clock so expiry can be exercised deterministically without sleeping.
type Clock interface {
	Now() time.Time
	Monotonic() time.Duration
}

// processStart anchors SystemClock's monotonic companion. Reading it via
// time.Now() once at package init and taking time.Since of it thereafter
// keeps the reading on Go's monotonic clock, never the adjustable wall
// clock backing Now().Unix().
var processStart = time.Now()

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Monotonic returns elapsed process time since package init.
func (SystemClock) Monotonic() time.Duration {
	return time.Since(processStart)
}

// ManualClock is a Clock a test can advance explicitly. Its monotonic
// companion advances in lockstep with Advance, never with real time.
type ManualClock struct {
	t    time.Time
	mono time.Duration
}

// NewManualClock returns a ManualClock starting at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{t: t}
}

func (c *ManualClock) Now() time.Time {
	return c.t
}

func (c *ManualClock) Monotonic() time.Duration {
	return c.mono
}

// Advance moves the clock, and its monotonic companion, forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
	c.mono += d
}
