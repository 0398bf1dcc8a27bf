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
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dc0d/onexit"
	"github.com/launix-de/go-mysqlstack/xlog"

	"github.com/launix-de/go-memcached/cache"
	"github.com/launix-de/go-memcached/server"
)

func main() {
	fmt.Print(`go-memcached Copyright (C) 2026
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	port := flag.Int("port", 11211, "listen port")
	autoreload := flag.Bool("autoreload", true, "enable source-change reloading")
	slowdown := flag.Float64("slowdown", 0.0, "delay in seconds before reading the next command")
	extraStats := flag.Bool("extra_stats", true, "include extended counters in stats output")
	adminPort := flag.Int("admin_port", 0, "listen port for the read-only admin stats HTTP/websocket endpoint (0 disables it)")
	console := flag.Bool("console", false, "run an interactive admin console on stdin alongside the listener")
	flag.Parse()

	log := xlog.NewStdLog(xlog.Level(xlog.INFO))

	store := cache.NewStore(cache.SystemClock{})
	store.ExtraStats = *extraStats

	registry := server.NewRegistry()

	acceptor := &server.Acceptor{
		Store:    store,
		Log:      log,
		Registry: registry,
		Slowdown: time.Duration(*slowdown * float64(time.Second)),
	}
	addr := fmt.Sprintf(":%d", *port)
	if err := acceptor.Listen(addr); err != nil {
		log.Error(fmt.Sprintf("bind failed on %s: %v", addr, err))
		os.Exit(1)
	}
	onexit.Register(func() { acceptor.Close() })

	reaper := server.NewReaper(store, log, 30*time.Second)
	go reaper.Run()
	onexit.Register(func() { reaper.Stop() })

	if *autoreload {
		exe, err := os.Executable()
		if err == nil {
			watcher, werr := server.WatchBinary(exe, log, func() {
				log.Info("autoreload: exiting so a supervisor can restart with the new binary")
				acceptor.Close()
				os.Exit(0)
			})
			if werr == nil {
				onexit.Register(func() { watcher.Close() })
			}
		}
		log.Info("autoreload enabled")
	}

	if *adminPort > 0 {
		admin := &server.AdminHTTP{Store: store}
		go server.ServeAdminHTTP(*adminPort, admin, log)
	}

	if *console {
		go func() {
			c := &server.Console{Store: store}
			if err := c.Run(); err != nil {
				log.Info(fmt.Sprintf("admin console stopped: %v", err))
			}
		}()
	}

	log.Info(fmt.Sprintf("listening on %s", addr))

	if err := acceptor.Serve(); err != nil {
		log.Info(fmt.Sprintf("acceptor stopped: %v", err))
	}
}
