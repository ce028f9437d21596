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

package proxy

import (
	"fmt"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/protocol"
)

// Dispatcher invokes remote calls on a Proxy. Failures are logged and
// returned, never propagated as panics: a bad call does not affect the
// calls that follow it.
type Dispatcher struct {
	Proxy *Proxy
}

// NewDispatcher returns a dispatcher for p.
func NewDispatcher(p *Proxy) *Dispatcher {
	return &Dispatcher{Proxy: p}
}

// Dispatch parses v as a remote call received from peer and invokes it.
func (d *Dispatcher) Dispatch(peer string, v interface{}) error {
	call, err := protocol.ParseCall(v)
	if err != nil {
		log.Error.Printf("dispatcher: discarding value from %v: %v", peer, err)
		return err
	}

	if d.Proxy == nil {
		err := fmt.Errorf("%w: %v (no proxy installed)", ErrUnknownMethod, call.Method)
		log.Error.Printf("dispatcher: failed to call method %v: %v", call.Method, err)
		return err
	}

	log.Debug.Printf("dispatcher: %v called %v", peer, call)

	if err := d.Proxy.Call(call); err != nil {
		log.Error.Printf("dispatcher: failed to call method %v: %v", call.Method, err)
		return err
	}

	return nil
}
