package bus

import (
	"context"
	"strings"

	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
)

const DefaultChannel = "talkco-status"

// Bus carries session status changes between API instances.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}

// New returns a Redis-backed bus when addr is set, otherwise an in-process one.
func New(log *logger.Logger, addr, channel string) (Bus, error) {
	if strings.TrimSpace(addr) == "" {
		log.Info("REDIS_ADDR not set; using in-process status bus")
		return NewLocalBus(log), nil
	}
	return NewRedisBus(log, addr, channel)
}
