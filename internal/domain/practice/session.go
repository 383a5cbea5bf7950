package practice

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Mode string

const (
	ModeConversation Mode = "conversation"
	ModeReview       Mode = "review"
)

func (m Mode) Valid() bool {
	return m == ModeConversation || m == ModeReview
}

type Status string

const (
	StatusActive     Status = "active"
	StatusReviewing  Status = "reviewing"
	StatusEnded      Status = "ended"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
)

// Rank orders statuses so writes can only move forward. reviewing and ended are siblings:
// conversation sessions end in reviewing, review sessions in ended.
func (s Status) Rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusReviewing, StatusEnded:
		return 1
	case StatusCompleting:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// Predecessors lists every status a row may hold for a transition into s to be legal.
func (s Status) Predecessors() []Status {
	all := []Status{StatusActive, StatusReviewing, StatusEnded, StatusCompleting, StatusCompleted}
	out := make([]Status, 0, len(all))
	for _, cand := range all {
		if cand.Rank() >= 0 && cand.Rank() < s.Rank() {
			out = append(out, cand)
		}
	}
	return out
}

// Session is one practice conversation. Rows are never deleted.
type Session struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string     `gorm:"type:text;not null;index" json:"user_id"`
	Mode      Mode       `gorm:"type:text;not null;default:'conversation';index" json:"mode"`
	TopicID   *string    `gorm:"type:text;index" json:"topic_id,omitempty"`
	Status    Status     `gorm:"type:text;not null;default:'active';index" json:"status"`
	StartedAt time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = StatusActive
	}
	return nil
}
