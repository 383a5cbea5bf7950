package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/data/db"
	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/http"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    repos.Set
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	dbService    *db.Service
	clients      Clients
	server       *http.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, cfg.Otel)
	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	catalog, err := content.Load(cfg.TopicsFile)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load content: %w", err)
	}

	dbService, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	clients, err := wireClients(log, cfg, metrics)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)
	reposet := repos.NewSet(theDB, log)
	serviceset := wireServices(log, cfg, reposet, catalog, clients, metrics)
	handlerset := wireHandlers(log, serviceset, catalog, ssehub, dbService.Ping)
	router := wireRouter(log, cfg, handlerset, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		SSEHub:       ssehub,
		Metrics:      metrics,
		dbService:    dbService,
		clients:      clients,
		otelShutdown: otelShutdown,
	}, nil
}

// Start connects the status bus to the SSE hub.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := a.clients.Bus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
		cancel()
		a.cancel = nil
		return fmt.Errorf("start status forwarder: %w", err)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down within the configured timeout:
// the listener first, then live sessions, then post-session work.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.server = http.NewServer(a.Router, ":"+a.Cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Listening", "port", a.Cfg.Port)
		errCh <- a.server.Run()
	}()

	select {
	case <-ctx.Done():
		a.Log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.server != nil {
		keep(a.server.Shutdown(ctx))
	}
	keep(a.Services.Conversation.Shutdown(ctx))
	return firstErr
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.clients.Close()
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("Tracer shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
