package app

import (
	"fmt"

	"github.com/yungbote/talkco-backend/internal/conversation"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/openai"
	"github.com/yungbote/talkco-backend/internal/realtime/bus"
)

type Clients struct {
	AI   openai.Client
	Bus  bus.Bus
	Dial conversation.Dialer
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	statusBus, err := bus.New(log, cfg.RedisAddr, cfg.RedisChannel)
	if err != nil {
		return Clients{}, fmt.Errorf("init status bus: %w", err)
	}

	aiCfg := cfg.OpenAI
	aiCfg.Observe = metrics.ObserveLLMRequest
	ai, err := openai.NewClient(log, aiCfg)
	if err != nil {
		_ = statusBus.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	return Clients{
		AI:   ai,
		Bus:  statusBus,
		Dial: conversation.RealtimeDialer(cfg.Realtime),
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
}
