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

// Package proxy exposes local capabilities to remote peers. A Proxy maps
// method names to handlers and is built once, at startup; the Dispatcher
// routes decoded remote calls to it.
package proxy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danielmorandini/medusa/protocol"
)

// ErrUnknownMethod is returned when a call names a method the proxy does
// not expose.
var ErrUnknownMethod = errors.New("proxy: unknown method")

// HandlerFunc handles a remote call, receiving its positional arguments.
type HandlerFunc func(args Args) error

// Methods maps method names to their handlers.
type Methods map[string]HandlerFunc

// Proxy is the set of methods exposed to remote peers. It is immutable
// once built, hence safe to be shared by every connection of a process.
type Proxy struct {
	methods Methods
}

// New validates m and returns a proxy exposing its methods.
func New(m Methods) (*Proxy, error) {
	methods := make(Methods, len(m))
	for name, h := range m {
		if name == "" {
			return nil, errors.New("proxy: empty method name")
		}
		if h == nil {
			return nil, fmt.Errorf("proxy: nil handler for method %v", name)
		}
		methods[name] = h
	}

	return &Proxy{methods: methods}, nil
}

// Methods returns the sorted list of exposed method names.
func (p *Proxy) Methods() []string {
	names := make([]string, 0, len(p.methods))
	for name := range p.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether method is exposed.
func (p *Proxy) Has(method string) bool {
	_, ok := p.methods[method]
	return ok
}

// Call invokes the handler of c.Method. Handler panics are turned into
// errors.
func (p *Proxy) Call(c protocol.Call) (err error) {
	h, ok := p.methods[c.Method]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownMethod, c.Method)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("proxy: %v panicked: %v", c.Method, r)
		}
	}()

	return h(Args(c.Args))
}
