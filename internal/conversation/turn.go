package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

type turnKind int

const (
	turnAudio turnKind = iota
	turnText
	turnGreeting
)

func (k turnKind) String() string {
	switch k {
	case turnAudio:
		return "audio"
	case turnText:
		return "text"
	default:
		return "greeting"
	}
}

type turnInput struct {
	kind  turnKind
	audio []byte
	text  string
}

// SendAudio submits one pcm16 utterance and streams the reply. The returned channel is
// closed after the final KindDone item. Callers must read it to the end or cancel ctx;
// once ctx is done remaining items are dropped but the turn still completes.
func (s *Session) SendAudio(ctx context.Context, audio []byte) (<-chan OutputItem, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("audio: %w", ErrEmptyInput)
	}
	return s.startTurn(ctx, turnInput{kind: turnAudio, audio: audio})
}

// SendText submits typed input and streams the reply like SendAudio.
func (s *Session) SendText(ctx context.Context, text string) (<-chan OutputItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("text: %w", ErrEmptyInput)
	}
	return s.startTurn(ctx, turnInput{kind: turnText, text: text})
}

// StreamGreeting streams the response requested during Connect. Nothing is persisted.
func (s *Session) StreamGreeting(ctx context.Context) (<-chan OutputItem, error) {
	return s.startTurn(ctx, turnInput{kind: turnGreeting})
}

func (s *Session) startTurn(ctx context.Context, in turnInput) (<-chan OutputItem, error) {
	if !s.connected.Load() {
		return nil, ErrNotConnected
	}
	if !s.turnMu.TryLock() {
		return nil, ErrTurnInProgress
	}
	started := time.Now()
	if in.kind != turnGreeting {
		if n := s.events.Drain(); n > 0 {
			s.log.Debug("Dropped stale realtime events", "count", n)
		}
		if err := s.submit(ctx, in); err != nil {
			s.turnMu.Unlock()
			return nil, err
		}
	}

	out := make(chan OutputItem, 32)
	go func() {
		defer s.turnMu.Unlock()
		defer close(out)
		s.runTurn(ctx, in, started, out)
	}()
	return out, nil
}

func (s *Session) submit(ctx context.Context, in turnInput) error {
	switch in.kind {
	case turnAudio:
		if err := s.send(ctx, realtime.AppendAudio(base64.StdEncoding.EncodeToString(in.audio))); err != nil {
			return err
		}
		if err := s.send(ctx, realtime.CommitAudio()); err != nil {
			return err
		}
	case turnText:
		if err := s.send(ctx, realtime.UserText(in.text)); err != nil {
			return err
		}
	}
	return s.send(ctx, realtime.CreateResponse())
}

func (s *Session) runTurn(ctx context.Context, in turnInput, started time.Time, out chan<- OutputItem) {
	emit := func(item OutputItem) {
		select {
		case out <- item:
		case <-ctx.Done():
		}
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Turn panic", "kind", in.kind.String(), "panic", r)
			emit(OutputItem{Kind: KindDone})
		}
	}()

	userText := ""
	if in.kind == turnText {
		userText = in.text
		emit(OutputItem{Kind: KindTranscript, Text: userText})
	}

	var (
		reply      strings.Builder
		firstAudio time.Time
		// Every response.create sent for this turn must report response.done before the
		// turn is over; each tool call requests one more.
		pending = 1
	)

loop:
	for {
		ev, err := s.events.Pop(s.ctx, s.cfg.EventTimeout)
		if err != nil {
			switch {
			case errors.Is(err, ErrEventTimeout):
				s.log.Warn("Timed out waiting for realtime event", "kind", in.kind.String(), "pending", pending)
			case errors.Is(err, ErrListenerStopped):
				s.log.Warn("Realtime listener stopped mid-turn", "kind", in.kind.String())
			default:
				s.log.Debug("Turn interrupted", "error", err)
			}
			break loop
		}

		switch ev.Type {
		case realtime.EventInputTranscriptionDone:
			if in.kind == turnAudio {
				userText = ev.Transcript
				emit(OutputItem{Kind: KindTranscript, Text: userText})
			}
		case realtime.EventAudioTranscriptDelta, realtime.EventTextDelta:
			reply.WriteString(ev.Delta)
		case realtime.EventAudioDelta:
			if firstAudio.IsZero() {
				firstAudio = time.Now()
			}
			emit(OutputItem{Kind: KindAudio, Audio: ev.Delta})
		case realtime.EventOutputItemDone:
			if ev.IsFunctionCall() {
				if err := s.handleToolCall(ev.Item); err != nil {
					s.log.Error("Tool follow-up failed", "tool", ev.Item.Name, "error", err)
					continue
				}
				pending++
			}
		case realtime.EventResponseDone:
			pending--
			if pending <= 0 {
				break loop
			}
		case realtime.EventError:
			s.log.Error("Realtime engine error", "error", upstreamError(ev).Error())
			break loop
		}
	}

	aiText := reply.String()
	if aiText != "" {
		emit(OutputItem{Kind: KindResponse, Text: aiText})
	}
	if in.kind != turnGreeting {
		s.persistSegment(userText, aiText)
	}
	if !firstAudio.IsZero() {
		emit(timingItem(StepFirstAudio, firstAudio.Sub(started)))
	}
	emit(timingItem(StepTotal, time.Since(started)))
	emit(OutputItem{Kind: KindDone})
}

// handleToolCall runs the tool synchronously and asks for the follow-up response.
func (s *Session) handleToolCall(item *realtime.Item) error {
	s.log.Info("Tool call", "tool", item.Name, "call_id", item.CallID)
	ctx, cancel := context.WithTimeout(s.ctx, toolSendTimeout)
	defer cancel()

	output, err := s.tools.Execute(ctx, item.Name, item.Arguments)
	if err != nil {
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			s.log.Warn("Unknown tool requested", "tool", unknown.Name)
		} else {
			s.log.Warn("Tool execution issue", "tool", item.Name, "error", err)
		}
	}
	if err := s.send(ctx, realtime.FunctionCallOutput(item.CallID, output)); err != nil {
		return err
	}
	return s.send(ctx, realtime.CreateResponse())
}

// persistSegment writes the exchange when both sides said something. The index only
// advances on success so indices stay dense.
func (s *Session) persistSegment(userText, aiText string) {
	if userText == "" || aiText == "" {
		s.log.Warn("Segment not saved (empty side)", "has_user_text", userText != "", "has_ai_text", aiText != "")
		return
	}
	if s.segments == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	idx := int(s.turnIndex.Load())
	row := &practice.Segment{
		SessionID: s.cfg.ID,
		TurnIndex: idx,
		UserText:  userText,
		AIText:    aiText,
	}
	if err := s.segments.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		s.log.Error("Failed to persist segment", "turn_index", idx, "error", err)
		return
	}
	s.turnIndex.Add(1)
	s.log.Info("Segment saved", "turn_index", idx)
}
