package learner

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type ChatSummaryRepo interface {
	Upsert(dbc dbctx.Context, row *types.ChatSummary) error
	// ListRecentSummaries returns summary texts for the user's sessions on topicID, newest
	// session first.
	ListRecentSummaries(dbc dbctx.Context, userID, topicID string, limit int) ([]string, error)
}

type chatSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatSummaryRepo(db *gorm.DB, log *logger.Logger) ChatSummaryRepo {
	return &chatSummaryRepo{db: db, log: log.With("repo", "ChatSummaryRepo")}
}

func (r *chatSummaryRepo) Upsert(dbc dbctx.Context, row *types.ChatSummary) error {
	if row == nil || row.SessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"topic_id", "summary"}),
		}).
		Create(row).Error
}

func (r *chatSummaryRepo) ListRecentSummaries(dbc dbctx.Context, userID, topicID string, limit int) ([]string, error) {
	if userID == "" || topicID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 5
	}
	var out []string
	if err := dbc.DB(r.db).
		Table("chat_summaries AS cs").
		Joins("JOIN sessions s ON cs.session_id = s.id").
		Where("s.user_id = ? AND cs.topic_id = ?", userID, topicID).
		Order("s.started_at DESC").
		Limit(limit).
		Pluck("cs.summary", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
