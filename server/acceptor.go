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

// Package server wires the cache.Store to the network: an Acceptor that
// runs the goroutine-per-connection TCP loop, a connection Registry for
// admin-facing stats, an optional background Reaper, and optional admin
// surfaces (console, websocket) that never sit on the hot path.
package server

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
	"github.com/launix-de/go-memcached/protocol"
	"github.com/launix-de/go-memcached/protocol/binary"
	"github.com/launix-de/go-memcached/protocol/text"
)

// Acceptor owns the listening socket and spawns one goroutine per client.
type Acceptor struct {
	Store    *cache.Store
	Log      *xlog.Log
	Registry *Registry
	Slowdown time.Duration

	listener net.Listener
}

// Listen binds addr (e.g. ":11211") without yet accepting connections.
func (a *Acceptor) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.listener = l
	if a.Registry != nil {
		a.Store.ConnStats = a.Registry.Stats
	}
	return nil
}

// Addr returns the bound address, valid only after a successful Listen.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine. It returns once Close is called elsewhere.
func (a *Acceptor) Serve() error {
	for {
		c, err := a.listener.Accept()
		if err != nil {
			return err
		}
		go a.handle(c)
	}
}

// Close stops accepting new connections; in-flight connections run to
// completion on their own.
func (a *Acceptor) Close() error {
	return a.listener.Close()
}

func (a *Acceptor) handle(c net.Conn) {
	defer c.Close()
	// a panic anywhere in parsing/dispatch must kill only this connection,
	// never the acceptor (spec.md §4.7, §5) — mirrors the teacher's
	// per-connection recover in scm/mysql.go and scm/network.go.
	defer func() {
		if r := recover(); r != nil {
			if a.Log != nil {
				a.Log.Error(fmt.Sprintf("recovered panic on connection %s: %v", c.RemoteAddr(), r))
			}
		}
	}()
	r := bufio.NewReader(c)
	dialect, err := protocol.Detect(r)
	if err != nil {
		return // client disconnected before sending anything
	}

	remote := c.RemoteAddr().String()
	dialectName := "text"
	if dialect == protocol.DialectBinary {
		dialectName = "binary"
	}

	var connID string
	if a.Registry != nil {
		connID = a.Registry.Open(remote, dialectName)
		defer a.Registry.Close(connID)
	}

	if a.Log != nil {
		a.Log.Info(fmt.Sprintf("accepted %s connection from %s", dialectName, remote))
	}

	switch dialect {
	case protocol.DialectBinary:
		binary.NewEngine(a.Store, a.Log, remote).Serve(r, c)
	default:
		text.NewEngine(a.Store, a.Log, remote, a.Slowdown).Serve(r, c)
	}
}
