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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/network"
)

// client keeps a single connection with the server, dialing it again
// each time it goes down.
type client struct {
	t      *Transport
	dialer *network.Dialer
	out    *outbox

	mu   sync.Mutex
	conn *network.Conn
}

func newClient(t *Transport) *client {
	return &client{
		t: t,
		dialer: &network.Dialer{
			Timeout: t.cfg.DialTimeout,
			SOCKS5:  t.cfg.SOCKS5,
			Options: t.options(),
		},
		out: newOutbox(),
	}
}

func (c *client) start(ctx context.Context, g *errgroup.Group) error {
	conn, err := c.connect(ctx)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return fmt.Errorf("transport: unable to resolve %v: %w", c.t.cfg.Addr(), err)
		}
		log.Warn.Printf("transport: %v, retrying in %v", err, c.t.cfg.ReconnectDelay)
	}

	g.Go(func() error {
		c.run(ctx, conn)
		return nil
	})
	return nil
}

// connect dials the server and presents the client's identity.
func (c *client) connect(ctx context.Context) (*network.Conn, error) {
	addr := c.t.cfg.Addr()
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %v: %w", addr, err)
	}

	if err := conn.Handshake(c.t.cfg.Name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to introduce to %v: %w", addr, err)
	}
	return conn, nil
}

// run serves conn, if any, then reconnects forever after each
// disconnection, until ctx is done.
func (c *client) run(ctx context.Context, conn *network.Conn) {
	for {
		if conn != nil {
			c.serve(ctx, conn)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.t.cfg.ReconnectDelay):
		}

		var err error
		if conn, err = c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn.Printf("transport: %v, retrying in %v", err, c.t.cfg.ReconnectDelay)
		}
	}
}

// serve dispatches the values read from conn and flushes the outbox into
// it, returning when conn closes.
func (c *client) serve(ctx context.Context, conn *network.Conn) {
	ch, err := conn.Consume(ctx)
	if err != nil {
		log.Error.Printf("transport: %v: %v", conn, err)
		conn.Close()
		return
	}

	c.out.reset()
	c.setConn(conn)
	log.Info.Printf("transport: connected to %v as %v", conn.RemoteAddr(), c.t.cfg.Name)
	c.t.publish(EventConnected, c.t.cfg.Name, conn.RemoteAddr())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.flush(conn)
	}()

	peer := conn.RemoteAddr().String()
	for v := range ch {
		c.t.dispatcher.Dispatch(peer, v)
	}

	conn.Close()
	wg.Wait()
	c.setConn(nil)

	log.Warn.Printf("transport: lost connection with %v: %v", conn.RemoteAddr(), conn.Err())
	c.t.publish(EventDisconnected, c.t.cfg.Name, conn.RemoteAddr())
}

// flush writes each frame put into the outbox, until conn closes.
func (c *client) flush(conn *network.Conn) {
	for {
		select {
		case <-conn.Done():
			return
		case <-c.out.ready():
		}

		frame := c.out.take()
		if frame == nil {
			continue
		}
		if err := conn.Write(frame); err != nil {
			log.Error.Printf("transport: %v", err)
			return
		}
	}
}

func (c *client) setConn(conn *network.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

func (c *client) current() *network.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *client) state() network.State {
	conn := c.current()
	if conn == nil {
		return network.Connecting
	}
	return conn.State()
}

// send ignores names: a client only talks to its server.
func (c *client) send(names []string, v interface{}) bool {
	conn := c.current()
	if conn == nil || conn.State() != network.Established {
		log.Error.Print("transport: send failed: not connected")
		return false
	}

	frame, err := c.t.codec.Marshal(v)
	if err != nil {
		log.Error.Printf("transport: send failed: %v", err)
		return false
	}

	if c.out.put(frame) {
		log.Debug.Print("transport: pending value overwritten")
	}
	return true
}
