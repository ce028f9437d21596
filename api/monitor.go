/*
Copyright (C) 2018 Daniel Morandini

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/status"
	"github.com/danielmorandini/medusa/transport"
)

// Monitor event names.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventStatus       = "status"
)

const (
	pongWait   = 20 * time.Second
	pingPeriod = 4 * time.Second
	writeWait  = 2 * time.Second
)

// Message is the JSON message streamed to monitors.
type Message struct {
	Event  string                 `json:"event"`
	Peer   string                 `json:"peer"`
	Addr   string                 `json:"addr,omitempty"`
	Status map[string]interface{} `json:"status,omitempty"`
	At     time.Time              `json:"at"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// monitor streams transport and status events. The connected players, and
// their last status, are sent first.
func (s *Server) monitor(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error.Printf("api: monitor: %v", err)
		return
	}
	defer conn.Close()

	msgs := make(chan Message, 64)
	push := func(m Message) {
		select {
		case msgs <- m:
		default:
			log.Warn.Printf("api: monitor %v too slow, dropping %v event", r.RemoteAddr, m.Event)
		}
	}

	ti, err := s.tr.Notify(func(e transport.Event) {
		push(Message{Event: e.Kind.String(), Peer: e.Peer, Addr: e.Addr, At: e.At})
	})
	if err != nil {
		log.Error.Printf("api: monitor: %v", err)
		return
	}
	defer s.tr.StopNotifying(ti)

	si, err := s.store.Notify(func(u status.Update) {
		push(Message{Event: EventStatus, Peer: u.Peer, Status: u.Status, At: time.Now()})
	})
	if err != nil {
		log.Error.Printf("api: monitor: %v", err)
		return
	}
	defer s.store.StopNotifying(si)

	now := time.Now()
	for _, name := range s.tr.Peers() {
		push(Message{Event: EventConnected, Peer: name, At: now})
		if m, ok := s.store.Get(name); ok {
			push(Message{Event: EventStatus, Peer: name, Status: m, At: now})
		}
	}

	// keep on reading pong messages
	done := make(chan struct{})
	go func() {
		defer close(done)

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	log.Info.Printf("api: monitor %v attached", r.RemoteAddr)
	defer log.Info.Printf("api: monitor %v detached", r.RemoteAddr)

	for {
		select {
		case <-done:
			return
		case m := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				log.Error.Printf("api: monitor: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error.Printf("api: monitor: %v", err)
				return
			}
		}
	}
}
