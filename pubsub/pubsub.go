// Package pubsub provides the core functionalities to handle
// publication/subscription pipelines.
package pubsub

import (
	"errors"
	"fmt"
	"sync"
)

// Default limits.
const (
	DefaultMaxSubs = 20
	DefaultBuffer  = 64
)

// PubSub wraps the core pubsub functionalities. Publishers never block on
// slow subscribers: messages that do not fit in a subscriber's buffer are
// dropped for that subscriber.
type PubSub struct {
	MaxSubs int // maximum number of subscribers per topic
	Buffer  int // messages queued per subscriber

	sync.Mutex
	registry map[string]*topic
}

// New returns a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		MaxSubs:  DefaultMaxSubs,
		Buffer:   DefaultBuffer,
		registry: make(map[string]*topic),
	}
}

// Sub makes a subscription to topic, creating it if needed. f is called,
// in its own goroutine, with each message published on topic, in
// publication order. Returns the index that identifies the subscription.
func (ps *PubSub) Sub(tname string, f func(interface{})) (int, error) {
	ps.Lock()
	t, ok := ps.registry[tname]
	if !ok {
		t = &topic{
			name: tname,
			chs:  make([]*channel, ps.MaxSubs),
		}
		ps.registry[tname] = t
	}
	ps.Unlock()

	ch := newChannel(ps.Buffer)

	// find free place
	t.Lock()
	ok = false
	index := 0
	for i, v := range t.chs {
		if v == nil {
			ok = true
			index = i
			t.chs[i] = ch
			break
		}
	}
	t.Unlock()

	if !ok {
		return 0, errors.New("pubsub: too many subscribers")
	}

	go ch.run(f)

	return index, nil
}

// Unsub removes the subscription index from topic.
// Returns an error if no such topic is present, or if the subscription
// is no longer active.
func (ps *PubSub) Unsub(index int, tname string) error {
	t, err := ps.topic(tname)
	if err != nil {
		return err
	}

	t.Lock()
	defer t.Unlock()
	if index < 0 || index >= len(t.chs) {
		return fmt.Errorf("pubsub: index out of range: %v, max: %v, topic: %v", index, len(t.chs), tname)
	}

	ch := t.chs[index]
	if ch == nil {
		return fmt.Errorf("pubsub: subscription %v of topic %v is not active", index, tname)
	}
	ch.stop()
	t.chs[index] = nil

	return nil
}

// Close removes a topic and stops its subscriptions.
func (ps *PubSub) Close(tname string) error {
	t, err := ps.topic(tname)
	if err != nil {
		return err
	}

	t.Lock()
	for i, c := range t.chs {
		if c != nil {
			c.stop()
			t.chs[i] = nil
		}
	}
	t.Unlock()

	ps.Lock()
	delete(ps.registry, tname)
	ps.Unlock()

	return nil
}

// Pub broadcasts the message to the subscribers of topic. Publishing on a
// topic nobody subscribed to is a no-op.
func (ps *PubSub) Pub(message interface{}, tname string) {
	t, err := ps.topic(tname)
	if err != nil {
		return
	}

	t.Lock()
	defer t.Unlock()

	for _, c := range t.chs {
		if c == nil {
			continue
		}

		c.send(message)
	}
}

func (ps *PubSub) topic(name string) (*topic, error) {
	ps.Lock()
	defer ps.Unlock()

	m, ok := ps.registry[name]
	if !ok {
		return nil, errors.New("pubsub: topic " + name + " not found")
	}

	return m, nil
}

type topic struct {
	name string

	sync.Mutex
	chs []*channel
}

func (m *topic) String() string {
	return "topic: " + m.name
}
