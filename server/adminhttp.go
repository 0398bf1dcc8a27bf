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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
)

// ServeAdminHTTP starts the admin stats HTTP server on port and blocks
// until it fails; callers run it in its own goroutine.
func ServeAdminHTTP(port int, admin *AdminHTTP, log *xlog.Log) {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        admin,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}
	if err := srv.ListenAndServe(); err != nil && log != nil {
		log.Info(fmt.Sprintf("admin http server stopped: %v", err))
	}
}

// AdminHTTP exposes a read-only stats stream: a plain GET returns one
// JSON stats snapshot, and /ws upgrades to a websocket that pushes a
// fresh snapshot once a second until the client disconnects.
type AdminHTTP struct {
	Store *cache.Store
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *AdminHTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		h.serveWS(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Store.Stats())
}

func (h *AdminHTTP) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := ws.WriteJSON(h.Store.Stats()); err != nil {
			return
		}
	}
}
