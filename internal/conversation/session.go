package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultEventTimeout   = 30 * time.Second
	persistTimeout        = 10 * time.Second
	toolSendTimeout       = 10 * time.Second
)

// SegmentWriter persists completed exchanges.
type SegmentWriter interface {
	Create(dbc dbctx.Context, row *practice.Segment) error
}

type Config struct {
	ID                 uuid.UUID
	UserID             string
	Mode               practice.Mode
	Instructions       string
	Voice              string
	TranscriptionModel string
	ConnectTimeout     time.Duration
	EventTimeout       time.Duration
}

type Deps struct {
	Dial     Dialer
	Tools    *ToolRegistry
	Segments SegmentWriter
	Log      *logger.Logger
}

// Session owns one realtime connection and everything read from it. Turns are serialized;
// Close is safe to call any number of times from any goroutine.
type Session struct {
	cfg      Config
	dial     Dialer
	tools    *ToolRegistry
	segments SegmentWriter
	log      *logger.Logger
	events   *EventChannel

	// ctx lives until Close; the listener and in-flight turns hang off it.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	transport    Transport
	listenerDone chan struct{}
	closed       bool

	connected  atomic.Bool
	settled    chan struct{}
	settleOnce sync.Once
	connectErr error

	turnMu    sync.Mutex
	turnIndex atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func NewSession(cfg Config, deps Deps) *Session {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = DefaultEventTimeout
	}
	if deps.Tools == nil {
		deps.Tools = DefaultTools()
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:      cfg,
		dial:     deps.Dial,
		tools:    deps.Tools,
		segments: deps.Segments,
		log:      log.With("component", "RealtimeSession", "session_id", cfg.ID.String()),
		events:   NewEventChannel(),
		ctx:      ctx,
		cancel:   cancel,
		settled:  make(chan struct{}),
	}
}

func (s *Session) ID() uuid.UUID       { return s.cfg.ID }
func (s *Session) UserID() string      { return s.cfg.UserID }
func (s *Session) Mode() practice.Mode { return s.cfg.Mode }
func (s *Session) Connected() bool     { return s.connected.Load() }

// TurnCount is the number of segments persisted so far.
func (s *Session) TurnCount() int {
	return int(s.turnIndex.Load())
}

func (s *Session) sessionConfig() realtime.SessionConfig {
	cfg := realtime.SessionConfig{
		Modalities:        []string{"text", "audio"},
		Instructions:      s.cfg.Instructions,
		Voice:             s.cfg.Voice,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection:     nil,
		Tools:             s.tools.Schemas(),
	}
	if s.cfg.TranscriptionModel != "" {
		cfg.InputAudioTranscription = &realtime.TranscriptionConfig{Model: s.cfg.TranscriptionModel}
	}
	if len(cfg.Tools) > 0 {
		cfg.ToolChoice = "auto"
	}
	return cfg
}

// Connect dials, configures the remote session and waits for its acknowledgement, starts
// the listener and asks for the greeting. It runs once; the result is what WaitConnected
// reports.
func (s *Session) Connect(ctx context.Context) error {
	err := s.connect(ctx)
	s.settleOnce.Do(func() {
		s.connectErr = err
		close(s.settled)
	})
	return err
}

func (s *Session) connect(ctx context.Context) error {
	if s.dial == nil {
		return fmt.Errorf("no dialer configured")
	}
	connectCtx, cancel := context.WithTimeout(s.ctx, s.cfg.ConnectTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	timedOut := func(err error) error {
		if errors.Is(connectCtx.Err(), context.DeadlineExceeded) {
			return ErrConnectionTimeout
		}
		if s.ctx.Err() != nil {
			return ErrSessionClosed
		}
		return err
	}

	tr, err := s.dial(connectCtx)
	if err != nil {
		return timedOut(fmt.Errorf("dial realtime: %w", err))
	}
	if err := tr.Send(connectCtx, realtime.SessionUpdate(s.sessionConfig())); err != nil {
		_ = tr.Close()
		return timedOut(fmt.Errorf("configure realtime session: %w", err))
	}
	if err := awaitSessionUpdated(connectCtx, tr); err != nil {
		_ = tr.Close()
		return timedOut(err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = tr.Close()
		return ErrSessionClosed
	}
	s.transport = tr
	s.listenerDone = make(chan struct{})
	done := s.listenerDone
	s.connected.Store(true)
	s.mu.Unlock()

	go func() {
		defer close(done)
		listen(s.ctx, tr, s.events, s.log)
	}()
	s.log.Info("Realtime session connected")

	// The greeting's events queue up until StreamGreeting (or the next turn's drain).
	if err := tr.Send(s.ctx, realtime.CreateResponse()); err != nil {
		s.log.Warn("Greeting request failed", "error", err)
	}
	return nil
}

func awaitSessionUpdated(ctx context.Context, tr Transport) error {
	for {
		ev, err := tr.Recv(ctx)
		if err != nil {
			return fmt.Errorf("await session.updated: %w", err)
		}
		switch ev.Type {
		case realtime.EventSessionUpdated:
			return nil
		case realtime.EventError:
			return upstreamError(ev)
		}
	}
}

func upstreamError(ev realtime.ServerEvent) *UpstreamError {
	if ev.Error == nil {
		return &UpstreamError{Type: "unknown"}
	}
	return &UpstreamError{Type: ev.Error.Type, Code: ev.Error.Code, Message: ev.Error.Message}
}

// WaitConnected blocks until Connect has finished or timeout passes. It returns nil once
// connected, the connect error if it failed, or ErrConnectionTimeout.
func (s *Session) WaitConnected(ctx context.Context, timeout time.Duration) error {
	if s.connected.Load() {
		return nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.settled:
		if s.connectErr != nil {
			return s.connectErr
		}
		if !s.connected.Load() {
			return ErrSessionClosed
		}
		return nil
	case <-t.C:
		return ErrConnectionTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) send(ctx context.Context, ev realtime.ClientEvent) error {
	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr == nil {
		return ErrNotConnected
	}
	return tr.Send(ctx, ev)
}

// Close stops the listener, waits for it, then closes the connection. Turns blocked on
// the event channel return promptly.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.connected.Store(false)
		tr := s.transport
		done := s.listenerDone
		s.mu.Unlock()

		s.cancel()
		if done != nil {
			<-done
		}
		if tr != nil {
			s.closeErr = tr.Close()
		}
		s.events.Close()
		s.settleOnce.Do(func() {
			s.connectErr = ErrSessionClosed
			close(s.settled)
		})
		s.log.Info("Realtime session closed")
	})
	return s.closeErr
}
