package app

import (
	"strings"
	"time"

	"github.com/yungbote/talkco-backend/internal/conversation"
	"github.com/yungbote/talkco-backend/internal/data/db"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/platform/envutil"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/openai"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
	"github.com/yungbote/talkco-backend/internal/profile"
	"github.com/yungbote/talkco-backend/internal/realtime/bus"
	"github.com/yungbote/talkco-backend/internal/services"
)

type Config struct {
	Port            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration
	TopicsFile      string
	MetricsEnabled  bool

	DB           db.Config
	OpenAI       openai.Config
	Realtime     realtime.Config
	Conversation services.ConversationConfig
	Limits       profile.Limits
	Otel         observability.OtelConfig

	RedisAddr    string
	RedisChannel string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:            envutil.String("PORT", "8000", log),
		CORSOrigins:     splitList(envutil.String("CORS_ORIGINS", "", log)),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 30*time.Second, log),
		TopicsFile:      envutil.String("TOPICS_FILE", "", log),
		MetricsEnabled:  envutil.Bool("METRICS_ENABLED", true, log),

		DB:     db.ConfigFromEnv(log),
		OpenAI: openai.ConfigFromEnv(log),
		Realtime: realtime.Config{
			URL:              envutil.String("OPENAI_REALTIME_URL", "wss://api.openai.com/v1/realtime", log),
			APIKey:           envutil.String("OPENAI_API_KEY", "", nil),
			Model:            envutil.String("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview", log),
			HandshakeTimeout: envutil.Duration("CONNECT_TIMEOUT", conversation.DefaultConnectTimeout, log),
		},
		Conversation: services.ConversationConfig{
			Voice:              envutil.String("S2S_VOICE", "alloy", log),
			TranscriptionModel: envutil.String("S2S_TRANSCRIBE_MODEL", "whisper-1", log),
			ConnectTimeout:     envutil.Duration("CONNECT_TIMEOUT", conversation.DefaultConnectTimeout, log),
			EventTimeout:       envutil.Duration("EVENT_TIMEOUT", conversation.DefaultEventTimeout, log),
			StartTimeout:       envutil.Duration("START_TIMEOUT", services.DefaultStartTimeout, log),
			ChatHistoryLimit:   envutil.Int("CHAT_HISTORY_LIMIT", 3, log),
			ReviewHistoryLimit: envutil.Int("REVIEW_HISTORY_LIMIT", 3, log),
		},
		Limits: profile.LimitsFromEnv(log),
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "talkco", log),
			Environment: envutil.String("OTEL_ENVIRONMENT", "development", log),
			Version:     envutil.String("OTEL_SERVICE_VERSION", "", log),
			SampleRatio: float64(envutil.Int("OTEL_SAMPLE_PERCENT", 100, log)) / 100,
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", nil),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
		},

		RedisAddr:    envutil.String("REDIS_ADDR", "", log),
		RedisChannel: envutil.String("REDIS_CHANNEL", bus.DefaultChannel, log),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
