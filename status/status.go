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

// Package status keeps the last status pushed by each player.
package status

import (
	"errors"
	"sort"
	"sync"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/pubsub"
)

// TopicStatus is the topic where every Update received is published.
const TopicStatus = "topic_status"

// Update is the status pushed by a player.
type Update struct {
	Peer   string
	Status map[string]interface{}
}

// Store records the status of each player. Its update method is meant to
// be installed in the head's proxy.
type Store struct {
	*pubsub.PubSub

	mu     sync.RWMutex
	status map[string]map[string]interface{}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		PubSub: pubsub.New(),
		status: make(map[string]map[string]interface{}),
	}
}

// Methods returns the remote methods served by the store.
func (s *Store) Methods() proxy.Methods {
	return proxy.Methods{
		protocol.MethodUpdate: s.update,
	}
}

func (s *Store) update(args proxy.Args) error {
	name, err := args.String(0)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.New("status: empty identity")
	}
	m, err := args.Map(1)
	if err != nil {
		return err
	}

	s.Set(name, m)
	return nil
}

// Set replaces the status of name, notifying the subscribers of
// TopicStatus.
func (s *Store) Set(name string, status map[string]interface{}) {
	if status == nil {
		status = map[string]interface{}{}
	}

	s.mu.Lock()
	s.status[name] = status
	s.mu.Unlock()

	log.Debug.Printf("status: %v is now %v", name, status["state"])
	s.Pub(Update{Peer: name, Status: copyMap(status)}, TopicStatus)
}

// Get returns a copy of the last status received from name.
func (s *Store) Get(name string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.status[name]
	if !ok {
		return nil, false
	}
	return copyMap(m), true
}

// Names returns the sorted identities that pushed at least one status.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.status))
	for name := range s.status {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Active reports whether name is playing, or has something queued, as far
// as its last status tells.
func (s *Store) Active(name string) bool {
	m, ok := s.Get(name)
	if !ok {
		return false
	}
	media, _ := m["media"].(string)
	return media != ""
}

// Notify calls f with each Update received.
func (s *Store) Notify(f func(Update)) (int, error) {
	return s.Sub(TopicStatus, func(i interface{}) {
		if u, ok := i.(Update); ok {
			f(u)
		}
	})
}

// StopNotifying removes the subscription index returned by Notify.
func (s *Store) StopNotifying(index int) {
	s.Unsub(index, TopicStatus)
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
