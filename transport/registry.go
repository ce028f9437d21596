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
	"sort"
	"sync"

	"github.com/danielmorandini/medusa/network"
)

// Registry maps peer identities to their live connection. It holds at most
// one connection per identity.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*network.Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*network.Conn),
	}
}

// Add associates c with name. If another connection was registered with
// the same name it is returned, and it is up to the caller to close it.
func (r *Registry) Add(name string, c *network.Conn) *network.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.conns[name]
	r.conns[name] = c
	if old == c {
		return nil
	}
	return old
}

// Get returns the connection registered with name.
func (r *Registry) Get(name string) (*network.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[name]
	return c, ok
}

// Remove deletes the entry of name, only if it still refers to c. A
// connection replaced by a newer one does not remove its successor when
// it closes.
func (r *Registry) Remove(name string, c *network.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[name]; !ok || cur != c {
		return false
	}
	delete(r.conns, name)
	return true
}

// Names returns the sorted list of registered identities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
