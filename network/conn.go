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

// Package network wraps TCP sockets into medusa connections: a connection
// decodes the values coming from its peer and encodes the ones sent to it.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/protocol"
)

// ErrClosed is returned when operating on a closed connection.
var ErrClosed = errors.New("network: connection closed")

// State is the lifecycle stage of a connection.
type State int32

// Possible connection states.
const (
	Connecting State = iota
	Handshaking
	Established
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Handshaking:
		return "handshaking"
	case Established:
		return "established"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configure how a connection reads and writes.
type Options struct {
	// Codec encodes and decodes values. Defaults to codec.Msgpack.
	Codec codec.Codec

	// ReadSize is the number of bytes requested to the socket
	// on each read. Defaults to protocol.ServerReadSize.
	ReadSize int

	// PollInterval bounds each read, so that a consumer notices
	// cancellation within one interval even on an idle socket.
	PollInterval time.Duration

	// WriteTimeout bounds each write. Zero means no limit.
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = codec.Msgpack
	}
	if o.ReadSize <= 0 {
		o.ReadSize = protocol.ServerReadSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = protocol.DefaultPollInterval
	}
	return o
}

// Conn is a connection with a medusa peer. Send is safe to be called from
// multiple goroutines, while only one consumer per time is allowed.
type Conn struct {
	conn net.Conn
	opts Options
	dec  *codec.Decoder

	state   int32
	running int32

	mu   sync.Mutex
	name string
	err  error

	wmu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Open wraps conn into a Conn in handshaking state.
func Open(conn net.Conn, opts Options) *Conn {
	opts = opts.withDefaults()
	return &Conn{
		conn:  conn,
		opts:  opts,
		dec:   codec.NewDecoder(opts.Codec),
		state: int32(Handshaking),
		done:  make(chan struct{}),
	}
}

// State returns the current state of the connection.
func (c *Conn) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *Conn) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Name returns the identity of the peer, empty until known.
func (c *Conn) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Err returns the reason why the connection was closed, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RemoteAddr returns the address of the peer.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done is closed when the connection gets closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Handshake sends name as first value to the peer, moving the connection
// to the established state once the write returned. Used by the dialing
// side.
func (c *Conn) Handshake(name string) error {
	if c.State() != Handshaking {
		return fmt.Errorf("network: handshake in state %v", c.State())
	}
	if err := c.Send(name); err != nil {
		return fmt.Errorf("network: handshake: %w", err)
	}

	c.Establish(name)
	return nil
}

// Establish records the identity of the peer and marks the connection as
// established. Used by the accepting side once the identity has been
// received.
func (c *Conn) Establish(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()

	if c.State() != Closed {
		c.setState(Established)
	}
}

// Send encodes v and writes it to the peer.
func (c *Conn) Send(v interface{}) error {
	b, err := c.opts.Codec.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(b)
}

// Write writes an already encoded frame to the peer. A failed write closes
// the connection.
func (c *Conn) Write(frame []byte) error {
	if c.State() == Closed {
		return ErrClosed
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.opts.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	}
	if _, err := c.conn.Write(frame); err != nil {
		c.fail(err)
		return fmt.Errorf("network: write: %w", err)
	}
	return nil
}

// Consume keeps on reading on the connection, decoding the data received
// and sending every value into the returned channel. The channel is closed
// together with the connection: when the peer goes away, when a read
// fails, when malformed data is received or when ctx is done. Check Err
// to know why.
func (c *Conn) Consume(ctx context.Context) (<-chan interface{}, error) {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return nil, errors.New("network: conn: already running")
	}
	if c.State() == Closed {
		return nil, ErrClosed
	}

	ch := make(chan interface{})
	go func() {
		defer close(ch)

		buf := make([]byte, c.opts.ReadSize)
		for {
			c.conn.SetReadDeadline(time.Now().Add(c.opts.PollInterval))
			n, err := c.conn.Read(buf)
			if n > 0 {
				vs, derr := c.dec.Decode(buf[:n])
				for _, v := range vs {
					select {
					case ch <- v:
					case <-ctx.Done():
						c.fail(ctx.Err())
						return
					case <-c.done:
						return
					}
				}
				if derr != nil {
					c.fail(fmt.Errorf("network: decode: %w", derr))
					return
				}
			}

			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					select {
					case <-ctx.Done():
						c.fail(ctx.Err())
						return
					default:
						continue
					}
				}
				c.fail(err)
				return
			}
		}
	}()

	return ch, nil
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.Close()
}

// Close closes the connection. Safe to be called multiple times.
func (c *Conn) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		c.setState(Closed)
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *Conn) String() string {
	name := c.Name()
	if name == "" {
		name = "?"
	}
	return fmt.Sprintf("%v@%v (%v)", name, c.RemoteAddr(), c.State())
}
