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

// Package protocol holds the pieces shared by both dialect engines: the
// parsed Command representation and the opcode→handler table shape
// spec.md §9 calls for in place of dynamic method-name dispatch.
package protocol

// Op is the enumerated command the client requested, dialect-independent.
type Op int

const (
	OpUnknown Op = iota
	OpSet
	OpAdd
	OpReplace
	OpAppend
	OpPrepend
	OpGet
	OpDelete
	OpTouch
	OpQuit
	OpStats
	OpVersion
)

// Command is an immutable, fully-parsed request: the body (when the
// dialect has one) is only ever attached once it has been read in full,
// never mutated afterward (spec.md §9: "parse into an immutable command
// record once the body has been read").
type Command struct {
	Op      Op
	Keys    []string // len>1 only for a multi-key text "get"
	Flags   uint32
	Exptime uint32
	NoReply bool // text dialect only
	Body    []byte

	Opaque uint32 // binary dialect only
	Cas    uint64 // binary dialect only, always echoed as 0 on reply
}

// Key returns the single key of a single-key command, or "" if there is
// none (e.g. "stats"/"version"/"quit").
func (c Command) Key() string {
	if len(c.Keys) == 0 {
		return ""
	}
	return c.Keys[0]
}
