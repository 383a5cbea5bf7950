package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

// EventChannel is the unbounded FIFO between a session's listener and its turn processor.
// Push never blocks. After Close, Pop drains what is left and then reports
// ErrListenerStopped forever; Drain does not clear that state.
type EventChannel struct {
	mu     sync.Mutex
	queue  []realtime.ServerEvent
	closed bool
	notify chan struct{}
}

func NewEventChannel() *EventChannel {
	return &EventChannel{notify: make(chan struct{}, 1)}
}

func (c *EventChannel) Push(ev realtime.ServerEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()
	c.signal()
}

// Close records that no more events will arrive.
func (c *EventChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
}

func (c *EventChannel) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Pop waits up to timeout (no limit when timeout <= 0) for the next event.
func (c *EventChannel) Pop(ctx context.Context, timeout time.Duration) (realtime.ServerEvent, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			ev := c.queue[0]
			c.queue[0] = realtime.ServerEvent{}
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return ev, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return realtime.ServerEvent{}, ErrListenerStopped
		}

		select {
		case <-c.notify:
		case <-expired:
			return realtime.ServerEvent{}, ErrEventTimeout
		case <-ctx.Done():
			return realtime.ServerEvent{}, ctx.Err()
		}
	}
}

// Drain discards every queued event and returns how many were dropped.
func (c *EventChannel) Drain() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.queue)
	c.queue = nil
	return n
}

func (c *EventChannel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *EventChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
