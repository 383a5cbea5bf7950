package app

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/http"
	httpH "github.com/yungbote/talkco-backend/internal/http/handlers"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Topic    *httpH.TopicHandler
	Session  *httpH.SessionHandler
	Realtime *httpH.RealtimeHandler
	Profile  *httpH.ProfileHandler
}

func wireHandlers(log *logger.Logger, svcs Services, catalog *content.Catalog, hub *realtime.SSEHub, ready func(context.Context) error) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(ready),
		Topic:    httpH.NewTopicHandler(catalog),
		Session:  httpH.NewSessionHandler(log, svcs.Conversation),
		Realtime: httpH.NewRealtimeHandler(log, hub, svcs.Conversation),
		Profile:  httpH.NewProfileHandler(svcs.Profiles),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         metrics,
		HealthHandler:   handlers.Health,
		TopicHandler:    handlers.Topic,
		SessionHandler:  handlers.Session,
		RealtimeHandler: handlers.Realtime,
		ProfileHandler:  handlers.Profile,
	})
}
