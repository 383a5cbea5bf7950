package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/talkco-backend/internal/http/handlers"
	httpMW "github.com/yungbote/talkco-backend/internal/http/middleware"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	HealthHandler   *httpH.HealthHandler
	TopicHandler    *httpH.TopicHandler
	SessionHandler  *httpH.SessionHandler
	RealtimeHandler *httpH.RealtimeHandler
	ProfileHandler  *httpH.ProfileHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	// Topics
	if cfg.TopicHandler != nil {
		r.GET("/topics", cfg.TopicHandler.List)
	}

	// Sessions
	if cfg.SessionHandler != nil {
		sessions := r.Group("/sessions")
		sessions.POST("", cfg.SessionHandler.Create)
		sessions.POST("/:id/start", cfg.SessionHandler.Start)
		sessions.POST("/:id/chat", cfg.SessionHandler.ChatAudio)
		sessions.POST("/:id/chat/text", cfg.SessionHandler.ChatText)
		sessions.DELETE("/:id", cfg.SessionHandler.End)
		sessions.POST("/:id/end", cfg.SessionHandler.Finalize)
		sessions.GET("/:id/review", cfg.SessionHandler.Review)
		sessions.POST("/:id/corrections", cfg.SessionHandler.CreateCorrection)
		sessions.GET("/:id/status", cfg.SessionHandler.Status)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		r.GET("/sessions/:id/events", cfg.RealtimeHandler.SessionEvents)
	}

	// Profiles
	if cfg.ProfileHandler != nil {
		r.GET("/users/:id/profile", cfg.ProfileHandler.Get)
		r.POST("/users/:id/evaluate", cfg.ProfileHandler.Evaluate)
	}

	return r
}
