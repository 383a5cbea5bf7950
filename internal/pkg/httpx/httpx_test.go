package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"rate limited", fmt.Errorf("call: %w", statusErr(http.StatusTooManyRequests)), true},
		{"bad gateway", statusErr(http.StatusBadGateway), true},
		{"bad request", statusErr(http.StatusBadRequest), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryableError=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "3")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 3*time.Second {
		t.Fatalf("got %v want 3s", got)
	}
	resp.Header.Set("Retry-After", "60")
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cap: got %v want 10s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("fallback: got %v want 2s", got)
	}
}

func TestBackoffAndJitter(t *testing.T) {
	if got := Backoff(0, time.Second, 8*time.Second); got != time.Second {
		t.Fatalf("attempt 0: got %v", got)
	}
	if got := Backoff(2, time.Second, 8*time.Second); got != 4*time.Second {
		t.Fatalf("attempt 2: got %v", got)
	}
	if got := Backoff(10, time.Second, 8*time.Second); got != 8*time.Second {
		t.Fatalf("attempt 10: got %v", got)
	}
	for i := 0; i < 50; i++ {
		d := JitterSleep(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if JitterSleep(0) != 0 {
		t.Fatalf("expected zero jitter for zero base")
	}
}
