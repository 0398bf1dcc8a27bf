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
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/go-memcached/cache"
)

const consolePrompt = "\033[32mmemcached>\033[0m "

// Console is a local admin REPL: "stats", "get <key>", "delete <key>",
// "version", "quit". It talks directly to the Store, bypassing the wire
// protocol entirely — a convenience for an operator attached to the same
// machine, not a protocol client.
type Console struct {
	Store *cache.Store
}

// Run drives the console until the operator exits (Ctrl-D or "quit").
func (c *Console) Run() error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            consolePrompt,
		HistoryFile:       ".go-memcached-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		fmt.Println(c.eval(fields))
	}
}

func (c *Console) eval(fields []string) string {
	switch fields[0] {
	case "version":
		return c.Store.Version()
	case "stats":
		var b strings.Builder
		stats := c.Store.Stats()
		for _, k := range cache.SortedStatKeys(stats) {
			fmt.Fprintf(&b, "%s: %s\n", k, stats[k])
		}
		return strings.TrimRight(b.String(), "\n")
	case "get":
		if len(fields) != 2 {
			return "usage: get <key>"
		}
		body, flags, ok := c.Store.Peek(fields[1])
		if !ok {
			return "(miss)"
		}
		return fmt.Sprintf("flags=%d %q", flags, body)
	case "delete":
		if len(fields) != 2 {
			return "usage: delete <key>"
		}
		if c.Store.Delete(fields[1]) {
			return "DELETED"
		}
		return "NOT_FOUND"
	default:
		return "unknown command: " + fields[0]
	}
}
