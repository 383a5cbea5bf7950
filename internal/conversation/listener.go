package conversation

import (
	"context"
	"errors"
	"io"

	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

// Transport is the duplex connection a session drives. *realtime.Conn satisfies it.
type Transport interface {
	Send(ctx context.Context, ev realtime.ClientEvent) error
	Recv(ctx context.Context) (realtime.ServerEvent, error)
	Close() error
}

// Dialer opens a new Transport.
type Dialer func(ctx context.Context) (Transport, error)

// RealtimeDialer dials the speech engine with cfg.
func RealtimeDialer(cfg realtime.Config) Dialer {
	return func(ctx context.Context) (Transport, error) {
		return realtime.Dial(ctx, cfg)
	}
}

// listen copies every inbound event into ch until the transport fails or ctx ends, then
// closes ch. It never reconnects.
func listen(ctx context.Context, tr Transport, ch *EventChannel, log *logger.Logger) {
	defer ch.Close()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Realtime listener panic", "panic", r)
		}
	}()
	for {
		ev, err := tr.Recv(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				log.Debug("Realtime listener cancelled")
			case errors.Is(err, io.EOF):
				log.Info("Realtime connection closed by peer")
			default:
				log.Error("Realtime listener error", "error", err)
			}
			return
		}
		ch.Push(ev)
	}
}
