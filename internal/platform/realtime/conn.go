package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Config struct {
	URL              string // e.g. wss://api.openai.com/v1/realtime
	APIKey           string
	Model            string
	HandshakeTimeout time.Duration
}

// Conn is one duplex connection to the speech engine. Send is safe for concurrent use;
// Recv must only be called from a single reader goroutine.
type Conn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("realtime connection closed")

func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse realtime URL: %w", err)
	}
	if cfg.Model != "" {
		q := u.Query()
		q.Set("model", cfg.Model)
		u.RawQuery = q.Encode()
	}

	headers := http.Header{}
	if cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	headers.Set("OpenAI-Beta", "realtime=v1")

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	ws, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("realtime connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("realtime connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime connect: %w", err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Send(ctx context.Context, ev ClientEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// Recv blocks for the next frame. Cancelling ctx unblocks the read; the connection is not
// usable for reading afterwards.
func (c *Conn) Recv(ctx context.Context) (ServerEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ServerEvent{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ServerEvent{}, io.EOF
			}
			return ServerEvent{}, err
		}
		var ev ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil || ev.Type == "" {
			continue
		}
		ev.Raw = data
		return ev, nil
	}
}

// Close sends a close frame and releases the socket. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed = true
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.closeErr = c.ws.Close()
		c.writeMu.Unlock()
	})
	return c.closeErr
}
