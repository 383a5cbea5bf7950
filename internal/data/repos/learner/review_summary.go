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

type ReviewSummaryRepo interface {
	Upsert(dbc dbctx.Context, row *types.ReviewSummary) error
	ListRecentByUser(dbc dbctx.Context, userID string, limit int) ([]*types.ReviewSummary, error)
}

type reviewSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewSummaryRepo(db *gorm.DB, log *logger.Logger) ReviewSummaryRepo {
	return &reviewSummaryRepo{db: db, log: log.With("repo", "ReviewSummaryRepo")}
}

func (r *reviewSummaryRepo) Upsert(dbc dbctx.Context, row *types.ReviewSummary) error {
	if row == nil || row.SessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"practiced", "notes"}),
		}).
		Create(row).Error
}

func (r *reviewSummaryRepo) ListRecentByUser(dbc dbctx.Context, userID string, limit int) ([]*types.ReviewSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 {
		limit = 5
	}
	var out []*types.ReviewSummary
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
