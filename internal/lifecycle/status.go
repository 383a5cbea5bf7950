package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/observability"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/realtime"
)

// Publisher is the subset of bus.Bus the tracker needs.
type Publisher interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
}

// StatusTracker writes forward-only status transitions and announces the ones that happened.
type StatusTracker struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	pub      Publisher
	metrics  *observability.Metrics
}

func NewStatusTracker(log *logger.Logger, sessions repos.SessionRepo, pub Publisher, metrics *observability.Metrics) *StatusTracker {
	return &StatusTracker{
		log:      log.With("component", "StatusTracker"),
		sessions: sessions,
		pub:      pub,
		metrics:  metrics,
	}
}

// Advance moves the session to `to` when that is a forward move. ended stamps ended_at.
// A failed publish is logged; the stored status is authoritative.
func (t *StatusTracker) Advance(ctx context.Context, id uuid.UUID, userID string, to practice.Status, ended bool) (bool, error) {
	now := time.Now().UTC()
	var endedAt *time.Time
	if ended {
		endedAt = &now
	}
	changed, err := t.sessions.AdvanceStatus(dbctx.New(ctx), id, to, endedAt)
	if err != nil {
		return false, err
	}
	if !changed {
		t.log.Debug("Status transition skipped", "session_id", id, "to", to)
		return false, nil
	}
	t.log.Info("Session status changed", "session_id", id, "status", to)
	t.metrics.IncStatusChange(string(to))
	if t.pub != nil {
		msg := realtime.SSEMessage{
			Channel: realtime.SessionChannel(id),
			Event:   realtime.SSEEventSessionStatus,
			Data:    realtime.SessionStatus{SessionID: id, UserID: userID, Status: string(to), At: now},
		}
		if err := t.pub.Publish(ctx, msg); err != nil {
			t.log.Warn("Status publish failed", "session_id", id, "status", to, "error", err)
		}
	}
	return true, nil
}
