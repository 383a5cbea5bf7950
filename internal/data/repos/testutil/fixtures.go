package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
)

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, userID string, mode practice.Mode, status practice.Status) *practice.Session {
	tb.Helper()
	s := &practice.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Mode:      mode,
		Status:    status,
		StartedAt: time.Now().UTC(),
	}
	if mode == practice.ModeConversation {
		topic := "travel"
		s.TopicID = &topic
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedSegment(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, turn int, userText, aiText string) *practice.Segment {
	tb.Helper()
	seg := &practice.Segment{
		SessionID: sessionID,
		TurnIndex: turn,
		UserText:  userText,
		AIText:    aiText,
	}
	if err := tx.WithContext(ctx).Create(seg).Error; err != nil {
		tb.Fatalf("seed segment: %v", err)
	}
	return seg
}

func SeedMark(tb testing.TB, ctx context.Context, tx *gorm.DB, segmentID uint, issueTypes []string) *practice.Mark {
	tb.Helper()
	raw, _ := json.Marshal(issueTypes)
	m := &practice.Mark{
		SegmentID:   segmentID,
		IssueTypes:  datatypes.JSON(raw),
		Original:    "I go yesterday",
		Suggestion:  "I went yesterday",
		Explanation: "past tense",
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mark: %v", err)
	}
	return m
}

func SeedReviewSummary(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, userID string, practiced []learner.PracticedPattern, notes string) *learner.ReviewSummary {
	tb.Helper()
	raw, _ := json.Marshal(practiced)
	rs := &learner.ReviewSummary{
		SessionID: sessionID,
		UserID:    userID,
		Practiced: datatypes.JSON(raw),
		Notes:     notes,
	}
	if err := tx.WithContext(ctx).Create(rs).Error; err != nil {
		tb.Fatalf("seed review summary: %v", err)
	}
	return rs
}
