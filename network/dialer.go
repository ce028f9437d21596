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
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// Dialer dials medusa connections. The zero value is ready to use.
type Dialer struct {
	// Timeout bounds the whole dial, proxy negotiation included.
	Timeout time.Duration

	// KeepAlive is the TCP keep-alive period. Zero uses the system
	// default.
	KeepAlive time.Duration

	// SOCKS5, when not empty, is the address of a SOCKS5 proxy used to
	// reach the remote end.
	SOCKS5 string

	// Options are passed to every connection dialed.
	Options Options
}

// DialContext dials a new connection, in handshaking state.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (*Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	conn, err := d.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return Open(conn, d.Options), nil
}

func (d *Dialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	forward := &net.Dialer{
		Timeout:   d.Timeout,
		KeepAlive: d.KeepAlive,
	}

	if d.SOCKS5 == "" {
		return forward.DialContext(ctx, network, addr)
	}

	dialer, err := proxy.SOCKS5("tcp", d.SOCKS5, nil, forward)
	if err != nil {
		return nil, fmt.Errorf("network: socks5 dialer: %v", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}

	errc := make(chan error, 1)
	connc := make(chan net.Conn, 1)
	go func() {
		conn, err := dialer.Dial(network, addr)
		if err != nil {
			errc <- err
			return
		}
		connc <- conn
	}()

	select {
	case <-ctx.Done():
		go func() {
			if conn := <-connc; conn != nil {
				conn.Close()
			}
		}()
		return nil, ctx.Err()
	case err := <-errc:
		return nil, err
	case conn := <-connc:
		return conn, nil
	}
}
