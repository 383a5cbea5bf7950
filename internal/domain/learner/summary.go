package learner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SessionSummary is the finalize-time assessment of a conversation session.
type SessionSummary struct {
	SessionID       uuid.UUID      `gorm:"type:uuid;primaryKey" json:"session_id"`
	UserID          string         `gorm:"type:text;not null;index" json:"user_id"`
	Strengths       datatypes.JSON `gorm:"not null" json:"strengths"`
	Weaknesses      datatypes.JSON `gorm:"not null" json:"weaknesses"`
	LevelAssessment string         `gorm:"type:text;not null" json:"level_assessment"`
	Overall         string         `gorm:"type:text;not null" json:"overall"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (SessionSummary) TableName() string { return "session_summaries" }

// ChatSummary is a short recap of what was talked about, used to give later sessions on the
// same topic some memory.
type ChatSummary struct {
	SessionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"session_id"`
	UserID    string    `gorm:"type:text;not null;index" json:"user_id"`
	TopicID   string    `gorm:"type:text;not null;index" json:"topic_id"`
	Summary   string    `gorm:"type:text;not null" json:"summary"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (ChatSummary) TableName() string { return "chat_summaries" }

// PracticedPattern is one entry of ReviewSummary.Practiced.
type PracticedPattern struct {
	Dimension   string   `json:"dimension"`
	Patterns    []string `json:"patterns"`
	Performance string   `json:"performance"` // improved | still_struggling | not_practiced
}

const PerformanceStillStruggling = "still_struggling"

// ReviewSummary records what a review-mode session drilled and how it went.
type ReviewSummary struct {
	SessionID uuid.UUID      `gorm:"type:uuid;primaryKey" json:"session_id"`
	UserID    string         `gorm:"type:text;not null;index" json:"user_id"`
	Practiced datatypes.JSON `gorm:"not null" json:"practiced"`
	Notes     string         `gorm:"type:text;not null" json:"notes"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (ReviewSummary) TableName() string { return "review_summaries" }
