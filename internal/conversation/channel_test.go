package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/talkco-backend/internal/platform/realtime"
)

func TestEventChannel_FIFO(t *testing.T) {
	ch := NewEventChannel()
	for _, typ := range []string{"a", "b", "c"} {
		ch.Push(realtime.ServerEvent{Type: typ})
	}
	for _, want := range []string{"a", "b", "c"} {
		ev, err := ch.Pop(context.Background(), time.Second)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if ev.Type != want {
			t.Fatalf("Pop = %q, want %q", ev.Type, want)
		}
	}
}

func TestEventChannel_PopTimeout(t *testing.T) {
	ch := NewEventChannel()
	start := time.Now()
	_, err := ch.Pop(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrEventTimeout) {
		t.Fatalf("err = %v, want ErrEventTimeout", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Fatalf("Pop returned before timeout")
	}
}

func TestEventChannel_PopWakesOnPush(t *testing.T) {
	ch := NewEventChannel()
	go func() {
		time.Sleep(10 * time.Millisecond)
		ch.Push(realtime.ServerEvent{Type: "late"})
	}()
	ev, err := ch.Pop(context.Background(), time.Second)
	if err != nil || ev.Type != "late" {
		t.Fatalf("Pop = %+v, %v", ev, err)
	}
}

func TestEventChannel_CloseDeliversQueuedThenSentinel(t *testing.T) {
	ch := NewEventChannel()
	ch.Push(realtime.ServerEvent{Type: "a"})
	ch.Close()
	ch.Push(realtime.ServerEvent{Type: "ignored"})

	ev, err := ch.Pop(context.Background(), time.Second)
	if err != nil || ev.Type != "a" {
		t.Fatalf("first Pop = %+v, %v", ev, err)
	}
	for i := 0; i < 2; i++ {
		if _, err := ch.Pop(context.Background(), time.Second); !errors.Is(err, ErrListenerStopped) {
			t.Fatalf("Pop after close = %v, want ErrListenerStopped", err)
		}
	}
}

func TestEventChannel_DrainKeepsSentinel(t *testing.T) {
	ch := NewEventChannel()
	ch.Push(realtime.ServerEvent{Type: "a"})
	ch.Push(realtime.ServerEvent{Type: "b"})
	ch.Close()
	if n := ch.Drain(); n != 2 {
		t.Fatalf("Drain = %d, want 2", n)
	}
	if ch.Len() != 0 {
		t.Fatalf("Len after Drain = %d", ch.Len())
	}
	if _, err := ch.Pop(context.Background(), time.Second); !errors.Is(err, ErrListenerStopped) {
		t.Fatalf("Pop after Drain = %v, want ErrListenerStopped", err)
	}
}

func TestEventChannel_PopHonoursContext(t *testing.T) {
	ch := NewEventChannel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.Pop(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
