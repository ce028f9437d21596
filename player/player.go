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

// Package player implements the control side of a medusa player: the
// actions the head can invoke on it and the status it pushes back.
//
// Media playback itself is left to the application embedding the player;
// Player only tracks what is being played.
package player

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/proxy"
)

// Playback states.
const (
	StateStopped = "stopped"
	StatePlaying = "playing"
	StatePaused  = "paused"
)

// Action names.
const (
	ActionPlay       = "play"
	ActionPause      = "pause"
	ActionStop       = "stop"
	ActionQueue      = "queue"
	ActionEmptyQueue = "empty_queue"
	ActionState      = "state"
	ActionVolume     = "volume"
	ActionMute       = "mute"
	ActionJumpTo     = "jump_to"
)

// Volume bounds.
const (
	VolumeMin     = 0
	VolumeMax     = 200
	DefaultVolume = 100
)

// Caller sends remote calls to the head.
type Caller interface {
	Call(names []string, method string, args ...interface{}) bool
}

type action func(args proxy.Args) error

// Player tracks the playback state of a single player process.
type Player struct {
	// Caller is used to push status updates. Updates are discarded
	// while it is nil.
	Caller Caller

	name    string
	actions map[string]action

	mu      sync.Mutex
	media   string
	state   string
	queue   []string
	volume  int64
	mute    bool
	elapsed int64
	started time.Time
}

// New returns a stopped player identified by name.
func New(name string) *Player {
	p := &Player{
		name:   name,
		state:  StateStopped,
		volume: DefaultVolume,
		queue:  []string{},
	}
	p.actions = map[string]action{
		ActionPlay:       p.play,
		ActionPause:      p.pause,
		ActionStop:       p.stop,
		ActionQueue:      p.enqueue,
		ActionEmptyQueue: p.emptyQueue,
		ActionState:      func(proxy.Args) error { return nil },
		ActionVolume:     p.setVolume,
		ActionMute:       p.toggleMute,
		ActionJumpTo:     p.jumpTo,
	}
	return p
}

// Name returns the identity of the player.
func (p *Player) Name() string {
	return p.name
}

// Actions returns the sorted list of supported actions.
func (p *Player) Actions() []string {
	names := make([]string, 0, len(p.actions))
	for name := range p.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Methods returns the remote methods served by the player.
func (p *Player) Methods() proxy.Methods {
	return proxy.Methods{
		protocol.MethodAction: p.Action,
	}
}

// Action performs the action named by the first argument, with the
// arguments listed in the second one. The status is pushed to the head
// after each successful action.
func (p *Player) Action(args proxy.Args) error {
	name, err := args.String(0)
	if err != nil {
		return err
	}
	var list []interface{}
	if args.Len() > 1 {
		if list, err = args.List(1); err != nil {
			return err
		}
	}

	a, ok := p.actions[name]
	if !ok {
		return fmt.Errorf("player: unknown action %q", name)
	}
	if err := a(proxy.Args(list)); err != nil {
		return fmt.Errorf("player: %v: %w", name, err)
	}

	log.Info.Printf("player: performed action %v%v", name, list)
	p.PushStatus()
	return nil
}

// play queues the optional item and plays the first queued one.
func (p *Player) play(args proxy.Args) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if args.Len() > 0 {
		item, err := args.String(0)
		if err != nil {
			return err
		}
		p.queue = append(p.queue, item)
	}

	p.next()
	return nil
}

// next plays the head of the queue, if any. Must be called with mu held.
func (p *Player) next() {
	if len(p.queue) == 0 {
		return
	}

	p.media = p.queue[0]
	p.queue = p.queue[1:]
	p.state = StatePlaying
	p.elapsed = 0
	p.started = time.Now()
}

func (p *Player) pause(proxy.Args) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StatePlaying:
		p.elapsed = p.position()
		p.state = StatePaused
	case StatePaused:
		p.started = time.Now()
		p.state = StatePlaying
	default:
		return fmt.Errorf("nothing to pause")
	}
	return nil
}

// stop stops the current media, moving on to the next queued one.
func (p *Player) stop(proxy.Args) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.media = ""
	p.state = StateStopped
	p.elapsed = 0
	p.next()
	return nil
}

func (p *Player) enqueue(args proxy.Args) error {
	item, err := args.String(0)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, item)
	return nil
}

func (p *Player) emptyQueue(proxy.Args) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = []string{}
	return nil
}

func (p *Player) setVolume(args proxy.Args) error {
	v, err := args.Int(0)
	if err != nil {
		return err
	}
	if v < VolumeMin {
		v = VolumeMin
	}
	if v > VolumeMax {
		v = VolumeMax
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	return nil
}

func (p *Player) toggleMute(proxy.Args) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mute = !p.mute
	return nil
}

func (p *Player) jumpTo(args proxy.Args) error {
	s, err := args.Int(0)
	if err != nil {
		return err
	}
	if s < 0 {
		return fmt.Errorf("negative position %d", s)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == "" {
		return fmt.Errorf("nothing is playing")
	}
	p.elapsed = s
	p.started = time.Now()
	return nil
}

// position returns the seconds elapsed. Must be called with mu held.
func (p *Player) position() int64 {
	if p.state != StatePlaying {
		return p.elapsed
	}
	return p.elapsed + int64(time.Since(p.started)/time.Second)
}

// Status returns the status map pushed to the head.
func (p *Player) Status() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := make([]interface{}, len(p.queue))
	for i, item := range p.queue {
		queue[i] = item
	}

	return map[string]interface{}{
		"media":   p.media,
		"state":   p.state,
		"elapsed": p.position(),
		"volume":  p.volume,
		"mute":    p.mute,
		"queue":   queue,
	}
}

// PushStatus sends the current status to the head. Returns false if the
// status could not be handed to the transport.
func (p *Player) PushStatus() bool {
	if p.Caller == nil {
		return false
	}

	ok := p.Caller.Call(nil, protocol.MethodUpdate, p.name, p.Status())
	if !ok {
		log.Warn.Print("player: unable to push status")
	}
	return ok
}
