package progress

import "sync"

// DefaultBuffer is the event buffer used by NewChannel when size is not positive
const DefaultBuffer = 64

// Channel is a Sink that turns every call into an Event on a channel.
// The background worker writes to it; the presentation goroutine reads
// Events() or calls Forward.
type Channel struct {
	mu     sync.RWMutex
	events chan Event
	closed bool
}

// NewChannel creates a channel sink with the given buffer size
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Channel{events: make(chan Event, size)}
}

// Events returns the receive side of the channel
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close stops delivery. Calls made after Close are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

func (c *Channel) send(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	c.events <- e
}

func (c *Channel) SetStatus(text string) {
	c.send(Event{Kind: KindStatus, Status: text})
}

func (c *Channel) SetProgress(fraction float64) {
	c.send(Event{Kind: KindProgress, Value: fraction})
}

func (c *Channel) AddProgress(delta float64) {
	c.send(Event{Kind: KindAdd, Value: delta})
}

// Forward applies every event from events to sink until the channel closes.
// It is meant to run on the goroutine that owns sink.
func Forward(events <-chan Event, sink Sink) {
	for e := range events {
		e.Apply(sink)
	}
}
