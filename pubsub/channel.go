package pubsub

import (
	"sync"

	"github.com/danielmorandini/medusa/log"
)

type channel struct {
	sendc chan interface{}
	stopc chan struct{}

	once sync.Once
}

func newChannel(buffer int) *channel {
	if buffer < 1 {
		buffer = 1
	}
	return &channel{
		sendc: make(chan interface{}, buffer),
		stopc: make(chan struct{}),
	}
}

func (c *channel) run(f func(interface{})) {
	for {
		select {
		case m := <-c.sendc:
			if f != nil {
				f(m)
			}
		case <-c.stopc:
			return
		}
	}
}

// send never blocks: when the subscriber is too slow the message is
// dropped.
func (c *channel) send(m interface{}) {
	select {
	case <-c.stopc:
	case c.sendc <- m:
	default:
		log.Debug.Printf("pubsub: subscriber too slow, dropping message: %v", m)
	}
}

func (c *channel) stop() {
	c.once.Do(func() {
		close(c.stopc)
	})
}
