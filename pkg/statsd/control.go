package statsd

import (
	"context"
)

// Control is the reactor's internal control channel. Any number of goroutines may Send,
// the reactor is the single consumer.
type Control struct {
	messages chan string
	ready    chan struct{}
}

// NewControl creates a Control buffering up to size messages.
func NewControl(size int) *Control {
	if size < 1 {
		size = 1
	}
	return &Control{
		messages: make(chan string, size),
		ready:    make(chan struct{}, 1),
	}
}

// Send queues msg, blocking while the queue is full.
func (c *Control) Send(ctx context.Context, msg string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case c.messages <- msg:
		c.notify()
		return nil
	}
}

// Ready is signalled after a message is queued.
func (c *Control) Ready() <-chan struct{} {
	return c.ready
}

// QueueLen returns the number of queued messages.
func (c *Control) QueueLen() int {
	return len(c.messages)
}

// QueueCap returns the maximum number of queued messages.
func (c *Control) QueueCap() int {
	return cap(c.messages)
}

// TryRecv returns the next queued message without blocking. Readiness is re-armed while
// messages remain.
func (c *Control) TryRecv() (string, bool) {
	select {
	case msg := <-c.messages:
		if len(c.messages) > 0 {
			c.notify()
		}
		return msg, true
	default:
		return "", false
	}
}

func (c *Control) notify() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}
