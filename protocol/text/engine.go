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

// Package text implements the memcached ASCII dialect: framing commands
// out of a byte stream whose frame boundary is either a bare line (for
// retrieval commands) or a line followed by a declared-length body (for
// storage commands), dispatching each to the cache.Store, and writing
// CRLF-terminated replies.
package text

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
	"github.com/launix-de/go-memcached/protocol"
)

// storageHeader matches a storage-class command line:
// <command> <key> <flags> <exptime> <bytes> [noreply]
var storageHeader = regexp.MustCompile(`^([a-z]+) +(\S+) +(\d+) +(\d+) +(\d+)( +noreply)?$`)

// retrievalHeader matches everything else: a bare command, optionally
// followed by arguments (multiple space-separated keys for "get").
var retrievalHeader = regexp.MustCompile(`^([a-z]+)(?: +(.*))?$`)

var crlf = []byte("\r\n")

// maxBodySize bounds a storage command's declared byte count, matching
// memcached's own default item-size ceiling. Without this, a header
// claiming an absurd byte count would drive an equally absurd allocation
// before a single body byte is read.
const maxBodySize = 1 << 20

// Engine drives one connection's worth of the text dialect: read header,
// optionally read a storage body, dispatch, write reply, repeat.
type Engine struct {
	store    *cache.Store
	log      *xlog.Log
	addr     string
	slowdown time.Duration
}

// NewEngine builds a text Engine bound to store. addr is used only for
// logging. slowdown, if non-zero, is a delay inserted before reading the
// next command's header — a test fixture for simulating a slow server;
// it never affects protocol correctness.
func NewEngine(store *cache.Store, log *xlog.Log, addr string, slowdown time.Duration) *Engine {
	return &Engine{store: store, log: log, addr: addr, slowdown: slowdown}
}

// Serve runs the read/dispatch loop until the client disconnects, sends
// "quit", or a transport error occurs. It never panics on a protocol
// error — those are recovered within the connection per spec.md §7.
func (e *Engine) Serve(r *bufio.Reader, w io.Writer) {
	for {
		if e.slowdown > 0 {
			time.Sleep(e.slowdown)
		}
		line, err := readLine(r)
		if err != nil {
			return // transport error or EOF: close silently
		}
		if e.log != nil {
			e.log.Info(fmt.Sprintf("<%s %s", e.addr, line))
		}
		if quit := e.handleLine(r, w, line); quit {
			return
		}
	}
}

// readLine reads up to the next line terminator, accepting both "\r\n"
// and a bare "\n" (spec.md §4.4), and returns the line with any trailing
// terminator stripped.
func readLine(r *bufio.Reader) (string, error) {
	raw, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")
	return raw, nil
}

// handleLine parses and dispatches one header line (and its body, for
// storage commands), writing the reply. It reports whether the
// connection should now close (a "quit" command).
func (e *Engine) handleLine(r *bufio.Reader, w io.Writer, line string) (quit bool) {
	if m := storageHeader.FindStringSubmatch(line); m != nil {
		return e.handleStorage(r, w, m)
	}
	if m := retrievalHeader.FindStringSubmatch(line); m != nil {
		return e.handleRetrieval(r, w, m[1], m[2])
	}
	e.writeLine(w, "ERROR")
	return false
}

// storageOps maps a text storage command word to its dialect-independent
// Op, re-expressing spec.md §9's "explicit opcode → handler table"
// redesign flag for the text dialect.
var storageOps = map[string]protocol.Op{
	"set":     protocol.OpSet,
	"add":     protocol.OpAdd,
	"replace": protocol.OpReplace,
	"append":  protocol.OpAppend,
	"prepend": protocol.OpPrepend,
}

func (e *Engine) handleStorage(r *bufio.Reader, w io.Writer, m []string) (quit bool) {
	flags64, flagsErr := strconv.ParseUint(m[3], 10, 32)
	exptime64, exptimeErr := strconv.ParseUint(m[4], 10, 32)
	length, lengthErr := strconv.Atoi(m[5])

	if flagsErr != nil || exptimeErr != nil || lengthErr != nil || length <= 0 || length > maxBodySize {
		e.writeLine(w, "ERROR")
		return false
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return true // transport broke mid-body: nothing left to do but stop
	}
	// exactly one trailing terminator, \r\n or bare \n, must be consumed
	// before the next header read or the stream desynchronizes.
	if _, err := consumeTerminator(r); err != nil {
		return true
	}

	// the command record is only assembled now, once the body has been
	// read in full, never mutated afterward.
	cmd := protocol.Command{
		Op:      storageOps[m[1]],
		Keys:    []string{m[2]},
		Flags:   uint32(flags64),
		Exptime: uint32(exptime64),
		NoReply: m[6] != "",
		Body:    body,
	}

	var stored bool
	switch cmd.Op {
	case protocol.OpSet:
		stored = e.store.Set(cmd.Key(), cmd.Body, cmd.Flags, cmd.Exptime)
	case protocol.OpAdd:
		stored = e.store.Add(cmd.Key(), cmd.Body, cmd.Flags, cmd.Exptime)
	case protocol.OpReplace:
		stored = e.store.Replace(cmd.Key(), cmd.Body, cmd.Flags, cmd.Exptime)
	case protocol.OpAppend:
		stored = e.store.Append(cmd.Key(), cmd.Body, &cmd.Flags, &cmd.Exptime)
	case protocol.OpPrepend:
		stored = e.store.Prepend(cmd.Key(), cmd.Body, &cmd.Flags, &cmd.Exptime)
	default:
		if !cmd.NoReply {
			e.writeLine(w, "ERROR")
		}
		return false
	}

	if !cmd.NoReply {
		if stored {
			e.writeLine(w, "STORED")
		} else {
			e.writeLine(w, "NOT_STORED")
		}
	}
	return false
}

// consumeTerminator reads exactly one line terminator: "\r\n" or a bare
// "\n". It must be called right after a storage body so the next header
// read starts on a clean boundary.
func consumeTerminator(r *bufio.Reader) (int, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b == '\r' {
		b2, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b2 != '\n' {
			return 0, fmt.Errorf("text: expected LF after CR, got %q", b2)
		}
		return 2, nil
	}
	if b != '\n' {
		return 0, fmt.Errorf("text: expected line terminator, got %q", b)
	}
	return 1, nil
}

// retrievalOps maps a text retrieval command word to its Op; "gets" is
// folded into OpGet since no CAS token is tracked (GLOSSARY: CAS always
// renders as 0).
var retrievalOps = map[string]protocol.Op{
	"get":     protocol.OpGet,
	"gets":    protocol.OpGet,
	"delete":  protocol.OpDelete,
	"touch":   protocol.OpTouch,
	"quit":    protocol.OpQuit,
	"stats":   protocol.OpStats,
	"version": protocol.OpVersion,
}

func (e *Engine) handleRetrieval(r *bufio.Reader, w io.Writer, command, args string) (quit bool) {
	switch retrievalOps[command] {
	case protocol.OpGet:
		e.handleGet(w, args)
	case protocol.OpDelete:
		e.handleDelete(w, args)
	case protocol.OpTouch:
		e.handleTouch(w, args)
	case protocol.OpQuit:
		return true
	case protocol.OpStats:
		e.handleStats(w)
	case protocol.OpVersion:
		e.writeLine(w, "VERSION "+e.store.Version())
	default:
		e.writeLine(w, "ERROR")
	}
	return false
}

func (e *Engine) handleGet(w io.Writer, args string) {
	for _, key := range splitKeys(args) {
		body, flags, ok := e.store.Get(key)
		if !ok {
			continue // miss or expired: silently skipped, per spec.md §4.4
		}
		fmt.Fprintf(w, "VALUE %s %d %d\r\n", key, flags, len(body))
		w.Write(body)
		w.Write(crlf)
	}
	e.writeLine(w, "END")
}

func splitKeys(args string) []string {
	fields := strings.Fields(args)
	return fields
}

func (e *Engine) handleDelete(w io.Writer, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		e.writeLine(w, "ERROR")
		return
	}
	key := fields[0]
	noreply := len(fields) > 1 && fields[1] == "noreply"
	ok := e.store.Delete(key)
	if noreply {
		return
	}
	if ok {
		e.writeLine(w, "DELETED")
	} else {
		e.writeLine(w, "NOT_FOUND")
	}
}

// handleTouch parses "touch <key> <exptime> [noreply]" itself: spec.md §9
// flags that the original source never re-parsed exptime out of the
// retrieval regex and so never applied it; this implementation does.
func (e *Engine) handleTouch(w io.Writer, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		e.writeLine(w, "ERROR")
		return
	}
	key := fields[0]
	exptime64, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		e.writeLine(w, "ERROR")
		return
	}
	noreply := len(fields) > 2 && fields[2] == "noreply"
	exptime := uint32(exptime64)
	ok := e.store.Touch(key, &exptime)
	if noreply {
		return
	}
	if ok {
		e.writeLine(w, "TOUCHED")
	} else {
		e.writeLine(w, "NOT_FOUND")
	}
}

func (e *Engine) handleStats(w io.Writer) {
	stats := e.store.Stats()
	for _, k := range cache.SortedStatKeys(stats) {
		fmt.Fprintf(w, "STAT %s %s\r\n", k, stats[k])
	}
	e.writeLine(w, "END")
}

func (e *Engine) writeLine(w io.Writer, s string) {
	if e.log != nil {
		e.log.Info(fmt.Sprintf(">%s %s", e.addr, s))
	}
	io.WriteString(w, s)
	w.Write(crlf)
}
