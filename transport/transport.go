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

// Package transport lets a head process drive player processes, and the
// players push their status back, over long lived TCP connections.
//
// A Transport runs either as a client, when it has an identity to present,
// or as a server. Clients keep exactly one connection to the server,
// introducing themselves with their identity and reconnecting forever when
// the link goes down. Servers accept any number of clients and index their
// connections by identity. Both ends dispatch the remote calls they receive
// to their local proxy.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/network"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/pubsub"
)

// TopicPeers is the topic where connection events are published.
const TopicPeers = "topic_peers"

// Config configures a Transport.
type Config struct {
	// Name is the identity presented to the server. A Transport with
	// a name is a client, one without is a server.
	Name string

	// Host and Port are the address to bind (server) or to connect
	// to (client).
	Host string
	Port int

	// Codec is the name of the wire codec. See the codec package.
	Codec string

	ReconnectDelay time.Duration // client only
	PollInterval   time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration

	// ReadSize is the number of bytes read from a socket per cycle.
	// Zero selects protocol.ClientReadSize or protocol.ServerReadSize.
	ReadSize int

	// SOCKS5 is an optional proxy used by clients to reach the server.
	SOCKS5 string

	// DisableRestart prevents a client from relaunching itself when
	// a Send fails.
	DisableRestart bool
}

// IsClient reports whether c describes a client.
func (c Config) IsClient() bool {
	return c.Name != ""
}

// Addr returns the host:port address of c.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		if c.IsClient() {
			c.Host = "localhost"
		} else {
			c.Host = protocol.DefaultHost
		}
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = protocol.DefaultReconnectDelay
	}
	if c.PollInterval <= 0 {
		c.PollInterval = protocol.DefaultPollInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = protocol.DefaultDialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = protocol.DefaultWriteTimeout
	}
	if c.ReadSize <= 0 {
		c.ReadSize = protocol.ServerReadSize
		if c.IsClient() {
			c.ReadSize = protocol.ClientReadSize
		}
	}
	return c
}

// EventKind tells what happened to a peer.
type EventKind int

// Possible peer events.
const (
	EventConnected EventKind = iota
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is published on TopicPeers each time a connection is established
// or lost.
type Event struct {
	Kind EventKind
	Peer string
	Addr string
	At   time.Time
}

// role is the client or server half of a Transport.
type role interface {
	// start performs the setup steps that can fail, then launches
	// the role's goroutines into g. They must return once ctx is done.
	start(ctx context.Context, g *errgroup.Group) error

	send(names []string, v interface{}) bool
}

type running struct {
	role   role
	cancel context.CancelFunc
	group  *errgroup.Group
}

func (r *running) stop() {
	if r == nil {
		return
	}
	r.cancel()
	if err := r.group.Wait(); err != nil {
		log.Error.Printf("transport: %v", err)
	}
}

// Transport is the entry point used by applications to exchange remote
// calls with their peers. Build one per process and share it.
type Transport struct {
	*pubsub.PubSub

	cfg        Config
	codec      codec.Codec
	dispatcher *proxy.Dispatcher
	registry   *Registry // servers only

	startMu    sync.Mutex
	closed     bool
	restarting int32

	mu  sync.Mutex
	cur *running
}

// New validates cfg and returns a Transport that will dispatch the calls
// it receives to p. Call Start to bring it up.
func New(cfg Config, p *proxy.Proxy) (*Transport, error) {
	cfg = cfg.withDefaults()

	c, err := codec.Lookup(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("transport: %v", err)
	}
	if cfg.Port < 0 || cfg.Port > 0xffff {
		return nil, fmt.Errorf("transport: invalid port %d", cfg.Port)
	}
	if cfg.IsClient() && cfg.Port == 0 {
		return nil, errors.New("transport: clients need a server port")
	}

	t := &Transport{
		PubSub:     pubsub.New(),
		cfg:        cfg,
		codec:      c,
		dispatcher: proxy.NewDispatcher(p),
	}
	if !cfg.IsClient() {
		t.registry = NewRegistry()
	}

	return t, nil
}

// Config returns the configuration in use, defaults included.
func (t *Transport) Config() Config {
	return t.cfg
}

// IsClient reports whether t runs as a client.
func (t *Transport) IsClient() bool {
	return t.cfg.IsClient()
}

func (t *Transport) options() network.Options {
	return network.Options{
		Codec:        t.codec,
		ReadSize:     t.cfg.ReadSize,
		PollInterval: t.cfg.PollInterval,
		WriteTimeout: t.cfg.WriteTimeout,
	}
}

func (t *Transport) newRole() role {
	if t.cfg.IsClient() {
		return newClient(t)
	}
	return newServer(t)
}

// Start brings the transport up. If it is already running, it is torn
// down and relaunched. Returns setup errors: the server failing to bind,
// or the client failing to resolve the server's host.
func (t *Transport) Start() error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	t.closed = false
	return t.start()
}

func (t *Transport) start() error {
	t.mu.Lock()
	old := t.cur
	t.cur = nil
	t.mu.Unlock()

	old.stop()

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	r := t.newRole()
	if err := r.start(gctx, g); err != nil {
		cancel()
		g.Wait()
		return err
	}

	t.mu.Lock()
	t.cur = &running{role: r, cancel: cancel, group: g}
	t.mu.Unlock()

	return nil
}

// restart relaunches the transport in the background, unless it was closed
// or a restart is already in progress.
func (t *Transport) restart() {
	if !atomic.CompareAndSwapInt32(&t.restarting, 0, 1) {
		return
	}

	go func() {
		defer atomic.StoreInt32(&t.restarting, 0)

		t.startMu.Lock()
		defer t.startMu.Unlock()
		if t.closed {
			return
		}

		log.Warn.Print("transport: relaunching communication")
		if err := t.start(); err != nil {
			log.Error.Printf("transport: relaunch failed: %v", err)
		}
	}()
}

// Close shuts the transport down, closing every connection it owns.
func (t *Transport) Close() error {
	t.startMu.Lock()
	defer t.startMu.Unlock()

	t.closed = true

	t.mu.Lock()
	old := t.cur
	t.cur = nil
	t.mu.Unlock()

	if old == nil {
		return errors.New("transport: not running")
	}
	old.stop()
	return nil
}

func (t *Transport) current() role {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur == nil {
		return nil
	}
	return t.cur.role
}

// Send delivers v. Clients hand v to the write path and ignore names:
// a true result does not guarantee delivery, and a value not yet written
// is replaced by the next one. When a client is not connected Send
// returns false and, unless disabled, relaunches the transport.
//
// Servers write v, in order, to each connection registered with names,
// stopping at the first name that is unknown or whose write fails. The
// names before it have received v.
func (t *Transport) Send(names []string, v interface{}) bool {
	r := t.current()
	if r == nil {
		log.Error.Print("transport: send failed: transport not running")
		if t.IsClient() && !t.cfg.DisableRestart {
			t.restart()
		}
		return false
	}

	ok := r.send(names, v)
	if !ok && t.IsClient() && !t.cfg.DisableRestart {
		t.restart()
	}
	return ok
}

// Call sends a remote call to method with args.
func (t *Transport) Call(names []string, method string, args ...interface{}) bool {
	return t.Send(names, protocol.NewCall(method, args...).Value())
}

// Peers returns the identities of the connected clients. Always empty for
// clients.
func (t *Transport) Peers() []string {
	if t.registry == nil {
		return []string{}
	}
	return t.registry.Names()
}

// Addr returns the address the server is listening on, or the address of
// the server the client connects to.
func (t *Transport) Addr() net.Addr {
	if s, ok := t.current().(*server); ok {
		return s.addr()
	}
	addr, err := net.ResolveTCPAddr("tcp", t.cfg.Addr())
	if err != nil {
		return nil
	}
	return addr
}

// State returns the state of the client's connection. Servers report
// Established while listening.
func (t *Transport) State() network.State {
	switch r := t.current().(type) {
	case *client:
		return r.state()
	case *server:
		return network.Established
	default:
		return network.Closed
	}
}

// Notify calls f with each Event published by the transport.
func (t *Transport) Notify(f func(Event)) (int, error) {
	return t.Sub(TopicPeers, func(i interface{}) {
		if e, ok := i.(Event); ok {
			f(e)
		}
	})
}

// StopNotifying removes the subscription index returned by Notify.
func (t *Transport) StopNotifying(index int) {
	t.Unsub(index, TopicPeers)
}

func (t *Transport) publish(kind EventKind, peer string, addr net.Addr) {
	e := Event{Kind: kind, Peer: peer, At: time.Now()}
	if addr != nil {
		e.Addr = addr.String()
	}
	t.Pub(e, TopicPeers)
}
