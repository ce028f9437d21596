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

package network

import (
	"context"
	"net"
)

// Listener wraps a net.Listener.
type Listener struct {
	l    net.Listener
	opts Options
}

// Listen announces on the local network address. On unix systems the
// address is marked as reusable, so that a restarted head can bind again
// while old sockets linger in TIME_WAIT.
func Listen(ctx context.Context, network, addr string, opts Options) (*Listener, error) {
	lc := net.ListenConfig{Control: control}
	l, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return &Listener{
		l:    l,
		opts: opts,
	}, nil
}

// Accept accepts incoming network connections, wrapping each one into a
// medusa connection in handshaking state.
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.l.Accept()
	if err != nil {
		return nil, err
	}

	return Open(conn, l.opts), nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.l.Addr()
}

// Close closes the underlying listener, making Accept quit
// and refuse any other network connection.
func (l *Listener) Close() error {
	return l.l.Close()
}
