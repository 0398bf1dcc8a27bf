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
	"github.com/google/btree"
)

// expiryEntry orders live records by when they die, so PurgeExpired can
// ask "everything due by now" instead of scanning the whole map. A record
// with exptime==0 (never expires) is never inserted.
type expiryEntry struct {
	deadline int64
	key      string
}

func expiryLess(a, b expiryEntry) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.key < b.key
}

// expiryIndex wraps a btree.BTreeG keyed by (deadline, key). It is purely
// an optimization for the background reaper: cache.Store's Get/Add/
// Replace/etc. always re-check Record.Expired directly and never consult
// this index, so a stale or missing index entry can never cause an
// incorrect hit/miss — only a slower or later sweep.
type expiryIndex struct {
	tree *btree.BTreeG[expiryEntry]
}

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{tree: btree.NewG[expiryEntry](32, expiryLess)}
}

func (idx *expiryIndex) set(key string, oldDeadline int64, hadOld bool, r *Record) {
	if hadOld {
		idx.tree.Delete(expiryEntry{deadline: oldDeadline, key: key})
	}
	if d, ok := r.Deadline(); ok {
		idx.tree.ReplaceOrInsert(expiryEntry{deadline: d, key: key})
	}
}

func (idx *expiryIndex) remove(key string, deadline int64) {
	idx.tree.Delete(expiryEntry{deadline: deadline, key: key})
}

// dueBy returns every key indexed with a deadline <= now, in deadline order.
func (idx *expiryIndex) dueBy(now int64) []string {
	var keys []string
	idx.tree.Ascend(func(e expiryEntry) bool {
		if e.deadline > now {
			return false
		}
		keys = append(keys, e.key)
		return true
	})
	return keys
}
