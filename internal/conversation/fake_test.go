package conversation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

// fakeTransport answers client events with scripted server events. Each response.create
// pops the next script from responses; session.update is answered with session.updated.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []realtime.ClientEvent
	responses [][]realtime.ServerEvent
	inbox     chan realtime.ServerEvent
	closed    chan struct{}
	closeOnce sync.Once
	closes    int

	// silentUpdate suppresses the session.updated reply.
	silentUpdate bool
}

func newFakeTransport(responses ...[]realtime.ServerEvent) *fakeTransport {
	return &fakeTransport{
		responses: responses,
		inbox:     make(chan realtime.ServerEvent, 256),
		closed:    make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, ev realtime.ClientEvent) error {
	select {
	case <-f.closed:
		return realtime.ErrClosed
	default:
	}
	f.mu.Lock()
	f.sent = append(f.sent, ev)
	var script []realtime.ServerEvent
	switch ev.Type {
	case realtime.EventSessionUpdate:
		if !f.silentUpdate {
			script = []realtime.ServerEvent{{Type: realtime.EventSessionUpdated}}
		}
	case realtime.EventResponseCreate:
		if len(f.responses) > 0 {
			script = f.responses[0]
			f.responses = f.responses[1:]
		}
	}
	f.mu.Unlock()
	for _, e := range script {
		f.inbox <- e
	}
	return nil
}

func (f *fakeTransport) Recv(ctx context.Context) (realtime.ServerEvent, error) {
	select {
	case ev := <-f.inbox:
		return ev, nil
	case <-f.closed:
		return realtime.ServerEvent{}, io.EOF
	case <-ctx.Done():
		return realtime.ServerEvent{}, ctx.Err()
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) sentTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, ev := range f.sent {
		out = append(out, ev.Type)
	}
	return out
}

func (f *fakeTransport) sentEvents() []realtime.ClientEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.ClientEvent(nil), f.sent...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type memSegments struct {
	mu   sync.Mutex
	rows []practice.Segment
	fail bool
}

func (m *memSegments) Create(_ dbctx.Context, row *practice.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.rows = append(m.rows, *row)
	return nil
}

func (m *memSegments) all() []practice.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]practice.Segment(nil), m.rows...)
}

func reply(text string, audio ...string) []realtime.ServerEvent {
	var evs []realtime.ServerEvent
	for _, a := range audio {
		evs = append(evs, realtime.ServerEvent{Type: realtime.EventAudioDelta, Delta: a})
	}
	evs = append(evs,
		realtime.ServerEvent{Type: realtime.EventAudioTranscriptDelta, Delta: text},
		realtime.ServerEvent{Type: realtime.EventResponseDone},
	)
	return evs
}

func newTestSession(t *testing.T, tr *fakeTransport, segs SegmentWriter) *Session {
	t.Helper()
	s := NewSession(Config{
		ID:             uuid.New(),
		UserID:         "user-1",
		Mode:           practice.ModeConversation,
		Instructions:   "be nice",
		Voice:          "alloy",
		ConnectTimeout: time.Second,
		EventTimeout:   time.Second,
	}, Deps{
		Dial:     func(context.Context) (Transport, error) { return tr, nil },
		Segments: segs,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func connectTestSession(t *testing.T, tr *fakeTransport, segs SegmentWriter) *Session {
	t.Helper()
	s := newTestSession(t, tr, segs)
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func collect(t *testing.T, ch <-chan OutputItem) []OutputItem {
	t.Helper()
	var items []OutputItem
	timeout := time.After(5 * time.Second)
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return items
			}
			items = append(items, item)
		case <-timeout:
			t.Fatalf("turn did not finish; got %d items", len(items))
			return nil
		}
	}
}

func kinds(items []OutputItem) []OutputKind {
	out := make([]OutputKind, 0, len(items))
	for _, it := range items {
		out = append(out, it.Kind)
	}
	return out
}

func textOf(items []OutputItem, kind OutputKind) string {
	for _, it := range items {
		if it.Kind == kind {
			return it.Text
		}
	}
	return ""
}
