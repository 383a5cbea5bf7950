package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/conversation"
	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/lifecycle"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/apierr"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/profile"
	"github.com/yungbote/talkco-backend/internal/review"
)

const DefaultStartTimeout = 15 * time.Second

type ConversationConfig struct {
	Voice              string
	TranscriptionModel string
	ConnectTimeout     time.Duration
	EventTimeout       time.Duration
	StartTimeout       time.Duration
	ChatHistoryLimit   int
	ReviewHistoryLimit int
}

func (c ConversationConfig) withDefaults() ConversationConfig {
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.ChatHistoryLimit <= 0 {
		c.ChatHistoryLimit = 3
	}
	if c.ReviewHistoryLimit <= 0 {
		c.ReviewHistoryLimit = 3
	}
	return c
}

// Corrector answers learner questions about a segment.
type Corrector interface {
	GenerateCorrection(ctx context.Context, sessionID uuid.UUID, segmentID uint, userMessage string) (*practice.Correction, error)
}

type ConversationDeps struct {
	Log          *logger.Logger
	Repos        repos.Set
	Registry     *conversation.Registry
	Dial         conversation.Dialer
	Tools        *conversation.ToolRegistry
	Catalog      *content.Catalog
	Profiles     *profile.Service
	Corrector    Corrector
	Orchestrator *lifecycle.Orchestrator
	Metrics      *observability.Metrics
}

// ConversationService is the entry point for everything a client does with a session.
type ConversationService struct {
	log      *logger.Logger
	cfg      ConversationConfig
	repos    repos.Set
	registry *conversation.Registry
	dial     conversation.Dialer
	tools    *conversation.ToolRegistry
	catalog  *content.Catalog
	profiles *profile.Service
	corr     Corrector
	orch     *lifecycle.Orchestrator
	metrics  *observability.Metrics

	connects sync.WaitGroup
}

func NewConversationService(cfg ConversationConfig, deps ConversationDeps) *ConversationService {
	tools := deps.Tools
	if tools == nil {
		tools = conversation.DefaultTools()
	}
	return &ConversationService{
		log:      deps.Log.With("service", "ConversationService"),
		cfg:      cfg.withDefaults(),
		repos:    deps.Repos,
		registry: deps.Registry,
		dial:     deps.Dial,
		tools:    tools,
		catalog:  deps.Catalog,
		profiles: deps.Profiles,
		corr:     deps.Corrector,
		orch:     deps.Orchestrator,
		metrics:  deps.Metrics,
	}
}

type CreateSessionRequest struct {
	UserID  string        `json:"user_id"`
	Mode    practice.Mode `json:"mode"`
	TopicID string        `json:"topic_id"`
}

type CreatedSession struct {
	SessionID uuid.UUID `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Create stores the session, registers it and starts connecting in the background. The
// caller gets the id right away; Start waits for the connection.
func (s *ConversationService) Create(ctx context.Context, req CreateSessionRequest) (*CreatedSession, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_user_id", fmt.Errorf("user_id is required"))
	}
	mode := req.Mode
	if mode == "" {
		mode = practice.ModeConversation
	}
	if !mode.Valid() {
		return nil, apierr.New(http.StatusBadRequest, "invalid_mode", fmt.Errorf("unknown mode %q", req.Mode))
	}

	instructions, topicID, err := s.instructions(ctx, userID, mode, strings.TrimSpace(req.TopicID))
	if err != nil {
		return nil, err
	}

	row := &practice.Session{ID: uuid.New(), UserID: userID, Mode: mode, TopicID: topicID}
	if err := s.repos.Sessions.Create(dbctx.New(ctx), row); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "create_session_failed", err)
	}

	sess := conversation.NewSession(conversation.Config{
		ID:                 row.ID,
		UserID:             userID,
		Mode:               mode,
		Instructions:       instructions,
		Voice:              s.cfg.Voice,
		TranscriptionModel: s.cfg.TranscriptionModel,
		ConnectTimeout:     s.cfg.ConnectTimeout,
		EventTimeout:       s.cfg.EventTimeout,
	}, conversation.Deps{
		Dial:     s.dial,
		Tools:    s.tools,
		Segments: s.repos.Segments,
		Log:      s.log,
	})
	if err := s.registry.Add(sess); err != nil {
		_ = sess.Close()
		return nil, apierr.New(http.StatusConflict, "session_exists", err)
	}
	s.metrics.SetLiveSessions(s.registry.Len())

	s.connects.Add(1)
	go s.connect(sess)

	s.log.Info("Session created", "session_id", row.ID, "user_id", userID, "mode", mode)
	return &CreatedSession{SessionID: row.ID, CreatedAt: row.StartedAt}, nil
}

func (s *ConversationService) connect(sess *conversation.Session) {
	defer s.connects.Done()
	err := sess.Connect(context.Background())
	s.metrics.ObserveConnect(err)
	if err == nil {
		return
	}
	s.log.Error("Realtime connect failed", "session_id", sess.ID(), "error", err)
	if s.registry.RemoveIf(sess.ID(), sess) {
		s.metrics.SetLiveSessions(s.registry.Len())
	}
	_ = sess.Close()
}

func (s *ConversationService) instructions(ctx context.Context, userID string, mode practice.Mode, topicID string) (string, *string, error) {
	view, err := s.profiles.View(ctx, userID)
	if err != nil {
		return "", nil, apierr.New(http.StatusInternalServerError, "load_profile_failed", err)
	}
	level := ""
	if view.Level != nil {
		level = *view.Level
	}
	dbc := dbctx.New(ctx)

	if mode == practice.ModeReview {
		rows, err := s.repos.ReviewSummaries.ListRecentByUser(dbc, userID, s.cfg.ReviewHistoryLimit)
		if err != nil {
			return "", nil, apierr.New(http.StatusInternalServerError, "load_history_failed", err)
		}
		notes := make([]string, 0, len(rows))
		for _, r := range rows {
			if n := strings.TrimSpace(r.Notes); n != "" {
				notes = append(notes, n)
			}
		}
		p := conversation.ReviewPrompt{Level: level, Profile: view.ProfileData, Notes: notes, Catalog: s.catalog}
		return p.Instructions(), nil, nil
	}

	if topicID == "" {
		return "", nil, apierr.New(http.StatusBadRequest, "missing_topic_id", fmt.Errorf("topic_id is required for conversation sessions"))
	}
	topic, ok := s.catalog.Topic(topicID)
	if !ok {
		return "", nil, apierr.New(http.StatusBadRequest, "unknown_topic", fmt.Errorf("unknown topic %q", topicID))
	}
	history, err := s.repos.ChatSummaries.ListRecentSummaries(dbc, userID, topicID, s.cfg.ChatHistoryLimit)
	if err != nil {
		return "", nil, apierr.New(http.StatusInternalServerError, "load_history_failed", err)
	}
	p := conversation.ConversationPrompt{Topic: topic, Level: level, Profile: view.ProfileData, History: history}
	return p.Instructions(), &topic.ID, nil
}

func (s *ConversationService) live(id uuid.UUID) (*conversation.Session, error) {
	sess, ok := s.registry.Get(id)
	if !ok {
		return nil, apierr.New(http.StatusNotFound, "session_not_found", fmt.Errorf("no live session %s", id))
	}
	return sess, nil
}

// Start waits for the connection and streams the greeting.
func (s *ConversationService) Start(ctx context.Context, id uuid.UUID) (<-chan conversation.OutputItem, error) {
	sess, err := s.live(id)
	if err != nil {
		return nil, err
	}
	if err := sess.WaitConnected(ctx, s.cfg.StartTimeout); err != nil {
		switch {
		case errors.Is(err, conversation.ErrConnectionTimeout):
			return nil, apierr.New(http.StatusGatewayTimeout, "connect_timeout", err)
		case errors.Is(err, conversation.ErrSessionClosed):
			return nil, apierr.New(http.StatusGone, "session_closed", err)
		default:
			return nil, apierr.New(http.StatusBadGateway, "connect_failed", err)
		}
	}
	out, err := sess.StreamGreeting(ctx)
	if err != nil {
		return nil, turnError(err)
	}
	return s.observeTurn(ctx, "greeting", out), nil
}

func (s *ConversationService) ChatAudio(ctx context.Context, id uuid.UUID, audio []byte) (<-chan conversation.OutputItem, error) {
	sess, err := s.live(id)
	if err != nil {
		return nil, err
	}
	out, err := sess.SendAudio(ctx, audio)
	if err != nil {
		return nil, turnError(err)
	}
	return s.observeTurn(ctx, "audio", out), nil
}

func (s *ConversationService) ChatText(ctx context.Context, id uuid.UUID, text string) (<-chan conversation.OutputItem, error) {
	sess, err := s.live(id)
	if err != nil {
		return nil, err
	}
	out, err := sess.SendText(ctx, text)
	if err != nil {
		return nil, turnError(err)
	}
	return s.observeTurn(ctx, "text", out), nil
}

func turnError(err error) error {
	switch {
	case errors.Is(err, conversation.ErrNotConnected):
		return apierr.New(http.StatusServiceUnavailable, "not_connected", err)
	case errors.Is(err, conversation.ErrTurnInProgress):
		return apierr.New(http.StatusConflict, "turn_in_progress", err)
	case errors.Is(err, conversation.ErrEmptyInput):
		return apierr.New(http.StatusBadRequest, "empty_input", err)
	default:
		return apierr.New(http.StatusInternalServerError, "turn_failed", err)
	}
}

// observeTurn forwards a turn stream while recording its timings. It always reads in to
// the end so the turn is never held up by a slow or departed client.
func (s *ConversationService) observeTurn(ctx context.Context, kind string, in <-chan conversation.OutputItem) <-chan conversation.OutputItem {
	out := make(chan conversation.OutputItem, cap(in))
	go func() {
		defer close(out)
		var firstAudio, total time.Duration
		result := "empty"
		for item := range in {
			switch item.Kind {
			case conversation.KindTiming:
				d := time.Duration(item.DurationS * float64(time.Second))
				if item.Step == conversation.StepFirstAudio {
					firstAudio = d
				} else if item.Step == conversation.StepTotal {
					total = d
				}
			case conversation.KindResponse:
				result = "ok"
			}
			select {
			case out <- item:
			case <-ctx.Done():
			}
		}
		s.metrics.ObserveTurn(kind, result, firstAudio, total)
	}()
	return out
}

type EndResult struct {
	SessionID uuid.UUID       `json:"session_id"`
	Status    practice.Status `json:"status"`
}

// End disconnects a live session and hands it to post-session processing: marks for a
// conversation, review summary and profile update for a review.
func (s *ConversationService) End(ctx context.Context, id uuid.UUID) (*EndResult, error) {
	row, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess, ok := s.registry.Remove(id); ok {
		s.metrics.SetLiveSessions(s.registry.Len())
		if err := sess.Close(); err != nil {
			s.log.Warn("Realtime close failed", "session_id", id, "error", err)
		}
	}

	switch row.Mode {
	case practice.ModeReview:
		err = s.orch.EndReview(ctx, row)
	default:
		err = s.orch.EndConversation(ctx, row)
	}
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "end_session_failed", err)
	}
	return s.endResult(ctx, id)
}

// Finalize runs the full post-session pipeline. The session is not disconnected.
func (s *ConversationService) Finalize(ctx context.Context, id uuid.UUID) (*EndResult, error) {
	status, err := s.orch.Finalize(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrSessionNotFound):
			return nil, apierr.New(http.StatusNotFound, "session_not_found", err)
		case errors.Is(err, lifecycle.ErrAlreadyCompleted):
			return nil, apierr.New(http.StatusBadRequest, "already_completed", err)
		default:
			return nil, apierr.New(http.StatusInternalServerError, "finalize_failed", err)
		}
	}
	return &EndResult{SessionID: id, Status: status}, nil
}

func (s *ConversationService) endResult(ctx context.Context, id uuid.UUID) (*EndResult, error) {
	row, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EndResult{SessionID: id, Status: row.Status}, nil
}

func (s *ConversationService) session(ctx context.Context, id uuid.UUID) (*practice.Session, error) {
	row, err := s.repos.Sessions.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_session_failed", err)
	}
	if row == nil {
		return nil, apierr.New(http.StatusNotFound, "session_not_found", fmt.Errorf("session %s not found", id))
	}
	return row, nil
}

// CreateCorrection answers a learner question about one segment of an ended conversation.
func (s *ConversationService) CreateCorrection(ctx context.Context, id uuid.UUID, segmentID uint, message string) (*practice.Correction, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.New(http.StatusBadRequest, "empty_message", fmt.Errorf("user_message is required"))
	}
	row, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Status != practice.StatusReviewing && row.Status != practice.StatusCompleted {
		return nil, apierr.New(http.StatusBadRequest, "invalid_session_status",
			fmt.Errorf("corrections need a reviewing or completed session, got %s", row.Status))
	}
	c, err := s.corr.GenerateCorrection(ctx, id, segmentID, message)
	if err != nil {
		if errors.Is(err, review.ErrSegmentNotFound) {
			return nil, apierr.New(http.StatusNotFound, "segment_not_found", err)
		}
		return nil, apierr.New(http.StatusBadGateway, "generate_correction_failed", err)
	}
	return c, nil
}

type StatusView struct {
	SessionID uuid.UUID       `json:"session_id"`
	UserID    string          `json:"user_id"`
	Mode      practice.Mode   `json:"mode"`
	Status    practice.Status `json:"status"`
	Live      bool            `json:"live"`
	Connected bool            `json:"connected"`
	Turns     int             `json:"turns"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

func (s *ConversationService) Status(ctx context.Context, id uuid.UUID) (*StatusView, error) {
	row, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	v := &StatusView{
		SessionID: row.ID,
		UserID:    row.UserID,
		Mode:      row.Mode,
		Status:    row.Status,
		StartedAt: row.StartedAt,
		EndedAt:   row.EndedAt,
	}
	if sess, ok := s.registry.Get(id); ok {
		v.Live = true
		v.Connected = sess.Connected()
		v.Turns = sess.TurnCount()
	} else {
		n, err := s.repos.Segments.CountBySession(dbctx.New(ctx), id)
		if err != nil {
			return nil, apierr.New(http.StatusInternalServerError, "count_segments_failed", err)
		}
		v.Turns = int(n)
	}
	return v, nil
}

// Shutdown closes every live session and waits for pending connects and background
// post-session work, up to ctx.
func (s *ConversationService) Shutdown(ctx context.Context) error {
	s.registry.CloseAll()
	s.metrics.SetLiveSessions(0)
	done := make(chan struct{})
	go func() {
		s.connects.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.orch.Wait(ctx)
}
