package practice

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Segment is one completed exchange: what the learner said and what the partner replied.
type Segment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_segment_session_turn" json:"session_id"`
	TurnIndex int       `gorm:"not null;uniqueIndex:idx_segment_session_turn" json:"turn_index"`
	UserText  string    `gorm:"type:text;not null" json:"user_text"`
	AIText    string    `gorm:"column:ai_text;type:text;not null" json:"ai_text"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Segment) TableName() string { return "segments" }

// Mark is a review finding attached to a segment. IssueTypes holds a non-empty JSON array of
// issue dimensions.
type Mark struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	SegmentID   uint           `gorm:"not null;index" json:"segment_id"`
	IssueTypes  datatypes.JSON `gorm:"not null" json:"issue_types"`
	Original    string         `gorm:"type:text;not null" json:"original"`
	Suggestion  string         `gorm:"type:text;not null" json:"suggestion"`
	Explanation string         `gorm:"type:text;not null" json:"explanation"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Mark) TableName() string { return "ai_marks" }

// Correction records a learner question about a segment and the answer they got.
type Correction struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID   uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	SegmentID   uint      `gorm:"not null;index" json:"segment_id"`
	UserMessage string    `gorm:"type:text;not null" json:"user_message"`
	Correction  string    `gorm:"type:text;not null" json:"correction"`
	Explanation string    `gorm:"type:text;not null" json:"explanation"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Correction) TableName() string { return "corrections" }
