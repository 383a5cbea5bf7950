package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func statusMessage(id uuid.UUID, status string) SSEMessage {
	return SSEMessage{
		Channel: SessionChannel(id),
		Event:   SSEEventSessionStatus,
		Data:    SessionStatus{SessionID: id, UserID: "u1", Status: status, At: time.Now().UTC()},
	}
}

func TestSSEHub_DeliversInOrderToSubscribersOnly(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	id := uuid.New()

	sub := hub.NewSSEClient()
	hub.AddChannel(sub, SessionChannel(id))
	other := hub.NewSSEClient()
	hub.AddChannel(other, SessionChannel(uuid.New()))

	hub.Broadcast(statusMessage(id, "completing"))
	hub.Broadcast(statusMessage(id, "completed"))

	first := recvMessage(t, sub.Outbound, time.Second)
	second := recvMessage(t, sub.Outbound, time.Second)
	if a, _ := first.Status(); a.Status != "completing" {
		t.Fatalf("first = %+v", first.Data)
	}
	if b, _ := second.Status(); b.Status != "completed" {
		t.Fatalf("out of order: %+v then %+v", first.Data, second.Data)
	}
	select {
	case msg := <-other.Outbound:
		t.Fatalf("unexpected delivery to other channel: %+v", msg)
	default:
	}
}

func TestSSEHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	id := uuid.New()
	client := hub.NewSSEClient()
	hub.AddChannel(client, SessionChannel(id))

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(client.Outbound)+5; i++ {
			hub.Broadcast(statusMessage(id, "active"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Broadcast blocked on a full client")
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("buffered = %d, want %d", len(client.Outbound), cap(client.Outbound))
	}
}

func TestSSEHub_RemoveClientDropsEmptyChannels(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	ch := SessionChannel(uuid.New())
	client := hub.NewSSEClient()
	hub.AddChannel(client, ch)
	hub.AddChannel(client, "  ")
	if hub.Subscribers(ch) != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers(ch))
	}
	hub.CloseClient(client)
	if hub.Subscribers(ch) != 0 {
		t.Fatalf("subscribers after close = %d", hub.Subscribers(ch))
	}
}

func TestSSEHub_ServeHTTPStopsAfterLastMessage(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	id := uuid.New()
	client := hub.NewSSEClient()
	hub.AddChannel(client, SessionChannel(id))
	defer hub.CloseClient(client)

	hub.Broadcast(statusMessage(id, "completing"))
	hub.Broadcast(statusMessage(id, "completed"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, req, client, func(m SSEMessage) bool {
		st, _ := m.Status()
		return st.Status == "completed"
	})
	if ctx.Err() != nil {
		t.Fatalf("stream did not stop on the last message")
	}

	body := rec.Body.String()
	if got := strings.Count(body, "event: SessionStatusChanged\n"); got != 2 {
		t.Fatalf("events = %d, body %q", got, body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Fatalf("body = %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
}
