package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
)

const localBuffer = 256

// localBus delivers within the process, for single-instance deployments and tests.
type localBus struct {
	log    *logger.Logger
	mu     sync.RWMutex
	subs   []chan realtime.SSEMessage
	closed bool
}

func NewLocalBus(log *logger.Logger) Bus {
	return &localBus{log: log.With("service", "LocalStatusBus")}
}

func (b *localBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("status bus closed")
	}
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			b.log.Warn("Dropping status message; forwarder backlog full", "channel", msg.Channel)
		}
	}
	return nil
}

func (b *localBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	ch := make(chan realtime.SSEMessage, localBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("status bus closed")
	}
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	go func() {
		defer b.unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				onMsg(msg)
			}
		}
	}()
	return nil
}

func (b *localBus) unsubscribe(ch chan realtime.SSEMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.subs {
		if c == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *localBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	return nil
}
