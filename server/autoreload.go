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

	"github.com/fsnotify/fsnotify"
	"github.com/launix-de/go-mysqlstack/xlog"
)

// WatchBinary watches the running executable's own path and invokes
// onChange whenever it is written, created or removed on disk — the
// --autoreload flag's mechanism for noticing a freshly deployed binary;
// restarting the process is left to an external supervisor. A write to
// the binary implies a new deploy, not a config change, so the callback's
// usual job is to re-exec or exit so a supervisor restarts the process.
func WatchBinary(path string, log *xlog.Log, onChange func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
					if log != nil {
						log.Info(fmt.Sprintf("autoreload: %s changed, restarting", event.Name))
					}
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.Info(fmt.Sprintf("autoreload watcher error: %v", err))
				}
			}
		}
	}()
	return watcher, nil
}
