package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/apierr"
	"github.com/yungbote/talkco-backend/internal/review"
)

type MarkView struct {
	ID          uint     `json:"id"`
	IssueTypes  []string `json:"issue_types"`
	Original    string   `json:"original"`
	Suggestion  string   `json:"suggestion"`
	Explanation string   `json:"explanation"`
}

type SegmentView struct {
	ID          uint                   `json:"id"`
	TurnIndex   int                    `json:"turn_index"`
	UserText    string                 `json:"user_text"`
	AIText      string                 `json:"ai_text"`
	CreatedAt   time.Time              `json:"created_at"`
	Marks       []MarkView             `json:"marks"`
	Corrections []*practice.Correction `json:"corrections"`
}

type ReviewView struct {
	SessionID uuid.UUID               `json:"session_id"`
	Mode      practice.Mode           `json:"mode"`
	TopicID   *string                 `json:"topic_id,omitempty"`
	Status    practice.Status         `json:"status"`
	Segments  []SegmentView           `json:"segments"`
	Summary   *learner.SessionSummary `json:"summary"`
}

// Review assembles everything written about a session: its segments with their marks and
// corrections, and the session summary once finalization produced one.
func (s *ConversationService) Review(ctx context.Context, id uuid.UUID) (*ReviewView, error) {
	row, err := s.session(ctx, id)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.New(ctx)

	segs, err := s.repos.Segments.ListBySession(dbc, id)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_segments_failed", err)
	}
	segIDs := make([]uint, 0, len(segs))
	for _, seg := range segs {
		segIDs = append(segIDs, seg.ID)
	}
	marks, err := s.repos.Marks.ListBySegmentIDs(dbc, segIDs)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_marks_failed", err)
	}
	corrections, err := s.repos.Corrections.ListBySession(dbc, id)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_corrections_failed", err)
	}
	summary, err := s.repos.SessionSummary.GetBySession(dbc, id)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "load_summary_failed", err)
	}

	marksBySeg := map[uint][]MarkView{}
	for _, m := range marks {
		marksBySeg[m.SegmentID] = append(marksBySeg[m.SegmentID], MarkView{
			ID:          m.ID,
			IssueTypes:  review.MarkTypes(m),
			Original:    m.Original,
			Suggestion:  m.Suggestion,
			Explanation: m.Explanation,
		})
	}
	corrBySeg := map[uint][]*practice.Correction{}
	for _, c := range corrections {
		corrBySeg[c.SegmentID] = append(corrBySeg[c.SegmentID], c)
	}

	out := &ReviewView{
		SessionID: row.ID,
		Mode:      row.Mode,
		TopicID:   row.TopicID,
		Status:    row.Status,
		Segments:  make([]SegmentView, 0, len(segs)),
		Summary:   summary,
	}
	for _, seg := range segs {
		v := SegmentView{
			ID:          seg.ID,
			TurnIndex:   seg.TurnIndex,
			UserText:    seg.UserText,
			AIText:      seg.AIText,
			CreatedAt:   seg.CreatedAt,
			Marks:       marksBySeg[seg.ID],
			Corrections: corrBySeg[seg.ID],
		}
		if v.Marks == nil {
			v.Marks = []MarkView{}
		}
		if v.Corrections == nil {
			v.Corrections = []*practice.Correction{}
		}
		out.Segments = append(out.Segments, v)
	}
	return out, nil
}
