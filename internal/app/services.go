package app

import (
	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/conversation"
	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/lifecycle"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/profile"
	"github.com/yungbote/talkco-backend/internal/review"
	"github.com/yungbote/talkco-backend/internal/services"
)

type Services struct {
	Conversation *services.ConversationService
	Profiles     *profile.Service
	Reviews      *review.Generator
	Orchestrator *lifecycle.Orchestrator
	Registry     *conversation.Registry
}

func wireServices(log *logger.Logger, cfg Config, set repos.Set, catalog *content.Catalog, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	registry := conversation.NewRegistry()
	reviews := review.NewGenerator(log, clients.AI, set, catalog)
	profiles := profile.NewService(log, clients.AI, set, cfg.Limits)
	tracker := lifecycle.NewStatusTracker(log, set.Sessions, clients.Bus, metrics)
	orch := lifecycle.NewOrchestrator(log, set, reviews, profiles, tracker, metrics)

	conv := services.NewConversationService(cfg.Conversation, services.ConversationDeps{
		Log:          log,
		Repos:        set,
		Registry:     registry,
		Dial:         clients.Dial,
		Tools:        conversation.DefaultTools(),
		Catalog:      catalog,
		Profiles:     profiles,
		Corrector:    reviews,
		Orchestrator: orch,
		Metrics:      metrics,
	})

	return Services{
		Conversation: conv,
		Profiles:     profiles,
		Reviews:      reviews,
		Orchestrator: orch,
		Registry:     registry,
	}
}
