package learner

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type SessionSummaryRepo interface {
	Upsert(dbc dbctx.Context, row *types.SessionSummary) error
	GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.SessionSummary, error)
	ListRecentByUser(dbc dbctx.Context, userID string, limit int) ([]*types.SessionSummary, error)
}

type sessionSummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionSummaryRepo(db *gorm.DB, log *logger.Logger) SessionSummaryRepo {
	return &sessionSummaryRepo{db: db, log: log.With("repo", "SessionSummaryRepo")}
}

func (r *sessionSummaryRepo) Upsert(dbc dbctx.Context, row *types.SessionSummary) error {
	if row == nil || row.SessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"strengths", "weaknesses", "level_assessment", "overall"}),
		}).
		Create(row).Error
}

func (r *sessionSummaryRepo) GetBySession(dbc dbctx.Context, sessionID uuid.UUID) (*types.SessionSummary, error) {
	var out types.SessionSummary
	if err := dbc.DB(r.db).Where("session_id = ?", sessionID).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *sessionSummaryRepo) ListRecentByUser(dbc dbctx.Context, userID string, limit int) ([]*types.SessionSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 {
		limit = 5
	}
	var out []*types.SessionSummary
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
