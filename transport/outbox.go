package transport

import "sync"

// outbox holds at most one encoded value waiting to be written. A put
// overwrites the value still pending, which is then lost: only the most
// recent value is guaranteed to be handed to the writer.
type outbox struct {
	mu     sync.Mutex
	frame  []byte
	readyc chan struct{}
}

func newOutbox() *outbox {
	return &outbox{readyc: make(chan struct{}, 1)}
}

// put stores frame, reporting whether a pending frame was overwritten.
func (o *outbox) put(frame []byte) bool {
	o.mu.Lock()
	overwritten := o.frame != nil
	o.frame = frame
	o.mu.Unlock()

	select {
	case o.readyc <- struct{}{}:
	default:
	}
	return overwritten
}

// take empties the outbox, returning its frame (nil if empty).
func (o *outbox) take() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()

	frame := o.frame
	o.frame = nil
	return frame
}

// ready is signalled after each put.
func (o *outbox) ready() <-chan struct{} {
	return o.readyc
}

func (o *outbox) reset() {
	o.take()
	select {
	case <-o.readyc:
	default:
	}
}
