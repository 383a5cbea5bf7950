package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventSessionStatus SSEEvent = "SessionStatusChanged"
)

// SSEMessage is what travels over the bus and out to subscribed clients.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// SessionStatus is the payload of SSEEventSessionStatus.
type SessionStatus struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// SessionChannel is the channel status changes for one session are published on.
func SessionChannel(id uuid.UUID) string {
	return "session:" + id.String()
}

// Status decodes the message payload as a SessionStatus. Messages that crossed the bus carry
// their payload as a generic JSON object.
func (m SSEMessage) Status() (SessionStatus, bool) {
	if m.Event != SSEEventSessionStatus {
		return SessionStatus{}, false
	}
	switch v := m.Data.(type) {
	case SessionStatus:
		return v, true
	case *SessionStatus:
		if v == nil {
			return SessionStatus{}, false
		}
		return *v, true
	}
	raw, err := json.Marshal(m.Data)
	if err != nil {
		return SessionStatus{}, false
	}
	var st SessionStatus
	if err := json.Unmarshal(raw, &st); err != nil || st.Status == "" {
		return SessionStatus{}, false
	}
	return st, true
}
