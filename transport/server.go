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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/network"
	"github.com/danielmorandini/medusa/protocol"
)

// event is posted by the connection readers to the reactor.
type event struct {
	conn   *network.Conn
	v      interface{}
	closed bool
}

// server accepts clients and keeps their connections in the registry.
// Identities, registrations and dispatching are handled by a single
// reactor goroutine, fed by one reader goroutine per connection.
type server struct {
	t      *Transport
	ln     *network.Listener
	events chan event
}

func newServer(t *Transport) *server {
	return &server{
		t:      t,
		events: make(chan event),
	}
}

func (s *server) addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *server) start(ctx context.Context, g *errgroup.Group) error {
	addr := s.t.cfg.Addr()
	ln, err := network.Listen(ctx, "tcp", addr, s.t.options())
	if err != nil {
		return fmt.Errorf("transport: unable to listen on %v: %w", addr, err)
	}
	s.ln = ln
	log.Info.Printf("transport: listening on %v", ln.Addr())

	g.Go(func() error {
		<-ctx.Done()
		ln.Close()
		return nil
	})
	g.Go(func() error {
		return s.accept(ctx, g)
	})
	g.Go(func() error {
		s.react(ctx)
		return nil
	})
	return nil
}

func (s *server) accept(ctx context.Context, g *errgroup.Group) error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error.Printf("transport: accept: %v", err)
			time.Sleep(s.t.cfg.PollInterval)
			continue
		}

		log.Debug.Printf("transport: accepted connection from %v", conn.RemoteAddr())
		g.Go(func() error {
			s.read(ctx, conn)
			return nil
		})
	}
}

// read forwards every value read from conn to the reactor, followed by a
// closing event.
func (s *server) read(ctx context.Context, conn *network.Conn) {
	ch, err := conn.Consume(ctx)
	if err != nil {
		log.Error.Printf("transport: %v: %v", conn, err)
		conn.Close()
		return
	}

	for v := range ch {
		select {
		case s.events <- event{conn: conn, v: v}:
		case <-ctx.Done():
			conn.Close()
			return
		}
	}

	select {
	case s.events <- event{conn: conn, closed: true}:
	case <-ctx.Done():
	}
}

func (s *server) react(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, name := range s.t.registry.Names() {
				if conn, ok := s.t.registry.Get(name); ok {
					conn.Close()
					s.t.registry.Remove(name, conn)
				}
			}
			return
		case e := <-s.events:
			s.handle(e)
		}
	}
}

func (s *server) handle(e event) {
	conn := e.conn

	if e.closed {
		name := conn.Name()
		if name != "" && s.t.registry.Remove(name, conn) {
			log.Info.Printf("transport: %v disconnected: %v", name, conn.Err())
			s.t.publish(EventDisconnected, name, conn.RemoteAddr())
		}
		return
	}

	name := conn.Name()
	if name != "" {
		s.t.dispatcher.Dispatch(name, e.v)
		return
	}
	if conn.State() == network.Closed {
		return
	}

	// The first value received is the identity of the peer.
	name, err := protocol.ParseIdentity(e.v)
	if err != nil {
		log.Error.Printf("transport: closing %v: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	conn.Establish(name)
	if old := s.t.registry.Add(name, conn); old != nil {
		log.Warn.Printf("transport: %v reconnected, replacing %v", name, old.RemoteAddr())
		old.Close()
	}
	log.Info.Printf("transport: %v connected from %v", name, conn.RemoteAddr())
	s.t.publish(EventConnected, name, conn.RemoteAddr())
}

// send writes v to each named peer, in order, stopping at the first
// failure.
func (s *server) send(names []string, v interface{}) bool {
	frame, err := s.t.codec.Marshal(v)
	if err != nil {
		log.Error.Printf("transport: send failed: %v", err)
		return false
	}

	for _, name := range names {
		conn, ok := s.t.registry.Get(name)
		if !ok {
			log.Error.Printf("transport: send failed: %v is not connected", name)
			return false
		}
		if err := conn.Write(frame); err != nil {
			log.Error.Printf("transport: send to %v failed: %v", name, err)
			return false
		}
	}
	return true
}
