package practice

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type CorrectionRepo interface {
	Create(dbc dbctx.Context, row *types.Correction) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Correction, error)
	ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.Correction, error)
}

type correctionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCorrectionRepo(db *gorm.DB, log *logger.Logger) CorrectionRepo {
	return &correctionRepo{db: db, log: log.With("repo", "CorrectionRepo")}
}

func (r *correctionRepo) Create(dbc dbctx.Context, row *types.Correction) error {
	if row == nil || row.SessionID == uuid.Nil || row.SegmentID == 0 {
		return fmt.Errorf("correction requires session_id and segment_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *correctionRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Correction, error) {
	return r.ListBySessionIDs(dbc, []uuid.UUID{sessionID})
}

func (r *correctionRepo) ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.Correction, error) {
	if len(sessionIDs) == 0 {
		return []*types.Correction{}, nil
	}
	var out []*types.Correction
	if err := dbc.DB(r.db).
		Where("session_id IN ?", sessionIDs).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
