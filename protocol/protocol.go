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

// Package protocol defines the values exchanged by medusa peers: the peer
// identity sent as handshake and the remote calls that follow it.
package protocol

import (
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Version is the protocol version implemented by this package.
const Version = "1.0.0"

// supported lists the protocol versions a peer can talk to.
const supported = "^1.0.0"

// Default transport settings.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 9000
	DefaultReconnectDelay = 5 * time.Second
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultDialTimeout    = 3 * time.Second
	DefaultWriteTimeout   = 5 * time.Second

	// Clients read one byte per cycle, which bounds the time spent
	// reading before a complete call is dispatched.
	ClientReadSize = 1
	ServerReadSize = 4096
)

// Application level methods.
const (
	// MethodAction is sent by the head to a player. Arguments:
	// [action string, args list].
	MethodAction = "action"

	// MethodUpdate is pushed by a player to the head. Arguments:
	// [identity string, status map].
	MethodUpdate = "update"
)

// Call is a remote method invocation: a method name and its positional
// arguments. On the wire it is a map with exactly one key.
type Call struct {
	Method string
	Args   []interface{}
}

// NewCall returns a call to method with args.
func NewCall(method string, args ...interface{}) Call {
	if args == nil {
		args = []interface{}{}
	}
	return Call{Method: method, Args: args}
}

// Value returns the wire representation of c.
func (c Call) Value() map[string]interface{} {
	args := c.Args
	if args == nil {
		args = []interface{}{}
	}
	return map[string]interface{}{c.Method: args}
}

func (c Call) String() string {
	return fmt.Sprintf("%v%v", c.Method, c.Args)
}

// ParseCall extracts a Call from a decoded value.
func ParseCall(v interface{}) (Call, error) {
	var method string
	var raw interface{}

	switch m := v.(type) {
	case map[string]interface{}:
		if len(m) != 1 {
			return Call{}, fmt.Errorf("protocol: call must have exactly one method, found %v", keys(m))
		}
		for k, a := range m {
			method, raw = k, a
		}
	case map[interface{}]interface{}:
		if len(m) != 1 {
			return Call{}, fmt.Errorf("protocol: call must have exactly one method, found %d", len(m))
		}
		for k, a := range m {
			s, ok := k.(string)
			if !ok {
				return Call{}, fmt.Errorf("protocol: method name must be a string, found %T", k)
			}
			method, raw = s, a
		}
	default:
		return Call{}, fmt.Errorf("protocol: call must be a map, found %T", v)
	}

	if method == "" {
		return Call{}, fmt.Errorf("protocol: empty method name")
	}

	switch args := raw.(type) {
	case nil:
		return NewCall(method), nil
	case []interface{}:
		return NewCall(method, args...), nil
	default:
		return Call{}, fmt.Errorf("protocol: arguments of %v must be a list, found %T", method, raw)
	}
}

// ParseIdentity extracts a peer identity from the first value received on
// a new connection.
func ParseIdentity(v interface{}) (string, error) {
	var id string
	switch t := v.(type) {
	case string:
		id = t
	case []byte:
		id = string(t)
	default:
		return "", fmt.Errorf("protocol: identity must be a string, found %T", v)
	}

	if id == "" {
		return "", fmt.Errorf("protocol: empty identity")
	}
	return id, nil
}

// IsVersionSupported tells whether a peer speaking version v can talk to
// this implementation.
func IsVersionSupported(v string) bool {
	c, err := semver.NewConstraint(supported)
	if err != nil {
		return false
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return c.Check(sv)
}

func keys(m map[string]interface{}) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}
