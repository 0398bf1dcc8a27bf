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

// Package binary implements the memcached binary dialect: a fixed
// 24-byte header followed by extras/key/value, read with
// encoding/binary the way storage.StorageInt (de)serializes its own
// on-disk chunks in the teacher package.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
	"github.com/launix-de/go-memcached/protocol"
)

// maxBodySize bounds a single request's declared total body length,
// matching memcached's own default item-size ceiling. Without this, a
// crafted TotalBody could drive an enormous allocation before the framing
// is even validated.
const maxBodySize = 1 << 20

// errBadFraming marks a header whose declared total body length exceeds
// maxBodySize, or whose declared extras/key lengths don't fit inside its
// declared total body length — never producible by a well-behaved client,
// only by a crafted packet.
var errBadFraming = errors.New("binary: total body too large, or extras/key length exceeds total body length")

const (
	magicRequest  = 0x80
	magicResponse = 0x81
)

// opcode identifies the requested operation.
type opcode uint8

const (
	opGet       opcode = 0x00
	opSet       opcode = 0x01
	opAdd       opcode = 0x02
	opReplace   opcode = 0x03
	opDelete    opcode = 0x04
	opIncrement opcode = 0x05
	opDecrement opcode = 0x06
	opQuit      opcode = 0x07
	opFlush     opcode = 0x08
	opVersion   opcode = 0x0B
	opAppend    opcode = 0x0E
	opPrepend   opcode = 0x0F
	opStat      opcode = 0x10
)

// status is the 16-bit response status field.
type status uint16

const (
	statusNoError       status = 0x0000
	statusKeyNotFound   status = 0x0001
	statusKeyExists     status = 0x0002
	statusValueTooLarge status = 0x0003
	statusInvalidArgs   status = 0x0004
	statusNotStored     status = 0x0005
	statusNonNumeric    status = 0x0006
	statusUnknownCmd    status = 0x0081
	statusOutOfMemory   status = 0x0082
)

// header is the wire layout shared by every binary request and response.
type header struct {
	Magic        uint8
	Opcode       opcode
	KeyLength    uint16
	ExtrasLength uint8
	DataType     uint8
	Status       uint16 // request: vbucket id, always 0 here; response: status code
	TotalBody    uint32
	Opaque       uint32
	Cas          uint64
}

// Engine drives one connection's worth of the binary dialect.
type Engine struct {
	store *cache.Store
	log   *xlog.Log
	addr  string
}

// NewEngine builds a binary Engine bound to store. addr is used only for
// logging.
func NewEngine(store *cache.Store, log *xlog.Log, addr string) *Engine {
	return &Engine{store: store, log: log, addr: addr}
}

// Serve runs the read/dispatch loop until the client disconnects, sends
// quit, or a transport error occurs.
func (e *Engine) Serve(r io.Reader, w io.Writer) {
	for {
		req, extras, key, value, err := readRequest(r)
		if err != nil {
			if errors.Is(err, errBadFraming) && e.log != nil {
				e.log.Info(fmt.Sprintf("<%s malformed binary request: %v", e.addr, err))
			}
			return // transport error, oversized/malformed framing: close this connection only
		}
		if e.log != nil {
			e.log.Info(fmt.Sprintf("<%s binary opcode=0x%02x key=%q", e.addr, req.Opcode, key))
		}
		if quit := e.dispatch(w, req, extras, key, value); quit {
			return
		}
	}
}

// readRequest reads one 24-byte header plus its declared body, splitting
// the body into extras/key/value per the offsets the header names.
func readRequest(r io.Reader) (header, []byte, []byte, []byte, error) {
	var raw [24]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return header{}, nil, nil, nil, err
	}
	h := header{
		Magic:        raw[0],
		Opcode:       opcode(raw[1]),
		KeyLength:    binary.BigEndian.Uint16(raw[2:4]),
		ExtrasLength: raw[4],
		DataType:     raw[5],
		Status:       binary.BigEndian.Uint16(raw[6:8]),
		TotalBody:    binary.BigEndian.Uint32(raw[8:12]),
		Opaque:       binary.BigEndian.Uint32(raw[12:16]),
		Cas:          binary.BigEndian.Uint64(raw[16:24]),
	}
	if h.TotalBody > maxBodySize {
		return header{}, nil, nil, nil, errBadFraming
	}
	if int(h.ExtrasLength)+int(h.KeyLength) > int(h.TotalBody) {
		return header{}, nil, nil, nil, errBadFraming
	}
	body := make([]byte, h.TotalBody)
	if h.TotalBody > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return header{}, nil, nil, nil, err
		}
	}
	extras := body[:h.ExtrasLength]
	key := body[h.ExtrasLength : int(h.ExtrasLength)+int(h.KeyLength)]
	value := body[int(h.ExtrasLength)+int(h.KeyLength):]
	return h, extras, key, value, nil
}

// writeResponse frames and writes one reply, echoing opaque unchanged and
// always reporting cas 0 (the Store tracks no CAS tokens).
func writeResponse(w io.Writer, op opcode, st status, opaque uint32, extras, key, value []byte) error {
	total := len(extras) + len(key) + len(value)
	var raw [24]byte
	raw[0] = magicResponse
	raw[1] = uint8(op)
	binary.BigEndian.PutUint16(raw[2:4], uint16(len(key)))
	raw[4] = uint8(len(extras))
	raw[5] = 0
	binary.BigEndian.PutUint16(raw[6:8], uint16(st))
	binary.BigEndian.PutUint32(raw[8:12], uint32(total))
	binary.BigEndian.PutUint32(raw[12:16], opaque)
	binary.BigEndian.PutUint64(raw[16:24], 0)
	if _, err := w.Write(raw[:]); err != nil {
		return err
	}
	if len(extras) > 0 {
		if _, err := w.Write(extras); err != nil {
			return err
		}
	}
	if len(key) > 0 {
		if _, err := w.Write(key); err != nil {
			return err
		}
	}
	if len(value) > 0 {
		if _, err := w.Write(value); err != nil {
			return err
		}
	}
	return nil
}

// opToCommandOp maps the wire opcode to the dialect-independent Op,
// re-expressing spec.md §9's "explicit opcode → handler table" redesign
// flag: the switch below dispatches on protocol.Op, never on the raw
// wire byte, so text and binary share one notion of "what was asked".
func opToCommandOp(op opcode) protocol.Op {
	switch op {
	case opGet:
		return protocol.OpGet
	case opSet:
		return protocol.OpSet
	case opQuit:
		return protocol.OpQuit
	default:
		return protocol.OpUnknown
	}
}

// toCommand parses one wire request into an immutable protocol.Command,
// built only after the full body has been read — spec.md §9's other
// redesign flag: no caller-owned request object is mutated in place as
// parsing proceeds.
func toCommand(h header, extras, key, value []byte) protocol.Command {
	cmd := protocol.Command{
		Op:     opToCommandOp(h.Opcode),
		Keys:   []string{string(key)},
		Body:   value,
		Opaque: h.Opaque,
	}
	if cmd.Op == protocol.OpSet && len(extras) >= 8 {
		cmd.Flags = binary.BigEndian.Uint32(extras[0:4])
		cmd.Exptime = binary.BigEndian.Uint32(extras[4:8])
	}
	return cmd
}

// dispatch handles one parsed request and writes its reply. It reports
// whether the connection should now close.
func (e *Engine) dispatch(w io.Writer, h header, extras, key, value []byte) (quit bool) {
	cmd := toCommand(h, extras, key, value)
	switch cmd.Op {
	case protocol.OpGet:
		e.handleGet(w, h, cmd)
	case protocol.OpSet:
		e.handleSet(w, h, extras, cmd)
	case protocol.OpQuit:
		writeResponse(w, h.Opcode, statusNoError, h.Opaque, nil, nil, nil)
		return true
	default:
		// add/replace/delete/increment/decrement/flush/version/append/prepend/stat:
		// recognized in the opcode table but not implemented at parity
		// with the source; spec.md §4.5 sanctions UNKNOWN_COMMAND here.
		writeResponse(w, h.Opcode, statusUnknownCmd, h.Opaque, nil, nil, nil)
	}
	return false
}

func (e *Engine) handleGet(w io.Writer, h header, cmd protocol.Command) {
	body, flags, ok := e.store.Get(cmd.Key())
	if !ok {
		writeResponse(w, h.Opcode, statusKeyNotFound, h.Opaque, nil, nil, nil)
		return
	}
	var extras [4]byte
	binary.BigEndian.PutUint32(extras[:], flags)
	writeResponse(w, h.Opcode, statusNoError, h.Opaque, extras[:], nil, body)
}

func (e *Engine) handleSet(w io.Writer, h header, extras []byte, cmd protocol.Command) {
	if len(extras) < 8 {
		writeResponse(w, h.Opcode, statusInvalidArgs, h.Opaque, nil, nil, nil)
		return
	}
	e.store.Set(cmd.Key(), cmd.Body, cmd.Flags, cmd.Exptime)
	writeResponse(w, h.Opcode, statusNoError, h.Opaque, nil, nil, nil)
}
