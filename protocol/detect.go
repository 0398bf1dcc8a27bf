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
package protocol

import (
	"bufio"
)

// BinaryMagic is the first byte of every binary-protocol request.
const BinaryMagic = 0x80

// Dialect identifies which engine should own a freshly accepted
// connection, decided from its very first byte.
type Dialect int

const (
	DialectText Dialect = iota
	DialectBinary
)

// Detect peeks exactly one byte from r without consuming it and reports
// which dialect the connection speaks. It never blocks past the first
// byte becoming available, and the peeked byte remains in r's buffer for
// whichever engine is chosen to read normally afterward — this is why
// detection requires a buffered reader rather than a raw net.Conn: a
// single byte "peek, then un-read" only composes safely through
// bufio.Reader.Peek, not through an io.Reader that would consume it.
func Detect(r *bufio.Reader) (Dialect, error) {
	b, err := r.Peek(1)
	if err != nil {
		return DialectText, err
	}
	if b[0] == BinaryMagic {
		return DialectBinary, nil
	}
	return DialectText, nil
}
