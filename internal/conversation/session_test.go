package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

func TestSession_ConnectConfiguresEngine(t *testing.T) {
	tr := newFakeTransport(nil)
	s := newTestSession(t, tr, nil)
	s.cfg.TranscriptionModel = "gpt-4o-mini-transcribe"
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Fatalf("expected connected")
	}

	sent := tr.sentEvents()
	if len(sent) != 2 || sent[0].Type != realtime.EventSessionUpdate || sent[1].Type != realtime.EventResponseCreate {
		t.Fatalf("sent = %v, want session.update then greeting response.create", tr.sentTypes())
	}
	cfg := sent[0].Session
	if cfg.TurnDetection != nil {
		t.Fatalf("turn detection must be disabled")
	}
	if cfg.InputAudioFormat != "pcm16" || cfg.OutputAudioFormat != "pcm16" || cfg.Voice != "alloy" {
		t.Fatalf("unexpected audio config %+v", cfg)
	}
	if cfg.InputAudioTranscription == nil || cfg.InputAudioTranscription.Model != "gpt-4o-mini-transcribe" {
		t.Fatalf("transcription config = %+v", cfg.InputAudioTranscription)
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "search_news" || cfg.ToolChoice != "auto" {
		t.Fatalf("tools = %+v choice=%q", cfg.Tools, cfg.ToolChoice)
	}
	if err := s.WaitConnected(context.Background(), time.Second); err != nil {
		t.Fatalf("WaitConnected: %v", err)
	}
}

func TestSession_ConnectTimeout(t *testing.T) {
	tr := newFakeTransport()
	tr.silentUpdate = true
	s := newTestSession(t, tr, nil)
	s.cfg.ConnectTimeout = 30 * time.Millisecond

	if err := s.Connect(context.Background()); !errors.Is(err, ErrConnectionTimeout) {
		t.Fatalf("Connect = %v, want ErrConnectionTimeout", err)
	}
	if s.Connected() {
		t.Fatalf("must not be connected")
	}
	if err := s.WaitConnected(context.Background(), time.Second); !errors.Is(err, ErrConnectionTimeout) {
		t.Fatalf("WaitConnected = %v", err)
	}
	if tr.closeCount() != 1 {
		t.Fatalf("transport should be closed after failed connect")
	}
}

func TestSession_ConnectUpstreamError(t *testing.T) {
	tr := newFakeTransport()
	tr.silentUpdate = true
	tr.inbox <- realtime.ServerEvent{Type: realtime.EventError, Error: &realtime.ErrorDetail{Type: "invalid_request_error", Message: "bad voice"}}
	s := newTestSession(t, tr, nil)

	err := s.Connect(context.Background())
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.Message != "bad voice" {
		t.Fatalf("Connect = %v, want *UpstreamError", err)
	}
}

func TestSession_WaitConnectedTimesOutWhilePending(t *testing.T) {
	s := newTestSession(t, newFakeTransport(), nil)
	if err := s.WaitConnected(context.Background(), 20*time.Millisecond); !errors.Is(err, ErrConnectionTimeout) {
		t.Fatalf("WaitConnected = %v, want ErrConnectionTimeout", err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	tr := newFakeTransport(nil)
	s := connectTestSession(t, tr, nil)

	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
	if tr.closeCount() != 1 {
		t.Fatalf("transport closed %d times, want 1", tr.closeCount())
	}
	if s.Connected() {
		t.Fatalf("closed session reports connected")
	}
	if _, err := s.SendText(context.Background(), "hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("SendText after Close = %v", err)
	}
}

func TestSession_CloseBeforeConnect(t *testing.T) {
	tr := newFakeTransport(nil)
	s := newTestSession(t, tr, nil)
	_ = s.Close()
	if err := s.Connect(context.Background()); err == nil {
		t.Fatalf("Connect after Close should fail")
	}
	if err := s.WaitConnected(context.Background(), time.Second); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("WaitConnected = %v, want ErrSessionClosed", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := NewSession(Config{Mode: practice.ModeConversation}, Deps{})
	if err := r.Add(a); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(a); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("second Add = %v", err)
	}
	if got, ok := r.Get(a.ID()); !ok || got != a {
		t.Fatalf("Get mismatch")
	}
	if _, ok := r.Get(uuid.New()); ok {
		t.Fatalf("Get unknown id should miss")
	}
	if _, ok := r.Remove(a.ID()); !ok {
		t.Fatalf("Remove should hit")
	}
	if _, ok := r.Remove(a.ID()); ok {
		t.Fatalf("second Remove should miss")
	}

	b := NewSession(Config{}, Deps{})
	c := NewSession(Config{}, Deps{})
	_ = r.Add(b)
	_ = r.Add(c)
	if r.RemoveIf(b.ID(), c) {
		t.Fatalf("RemoveIf with wrong session should miss")
	}
	r.CloseAll()
	if r.Len() != 0 {
		t.Fatalf("Len after CloseAll = %d", r.Len())
	}
}
