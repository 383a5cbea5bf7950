package practice

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type SegmentRepo interface {
	Create(dbc dbctx.Context, row *types.Segment) error
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Segment, error)
	ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.Segment, error)
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error)
	GetInSession(dbc dbctx.Context, sessionID uuid.UUID, segmentID uint) (*types.Segment, error)
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, log *logger.Logger) SegmentRepo {
	return &segmentRepo{db: db, log: log.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) Create(dbc dbctx.Context, row *types.Segment) error {
	if row == nil || row.SessionID == uuid.Nil {
		return fmt.Errorf("missing session_id")
	}
	if row.UserText == "" || row.AIText == "" {
		return fmt.Errorf("segment requires both user_text and ai_text")
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *segmentRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.Segment, error) {
	if sessionID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	var out []*types.Segment
	if err := dbc.DB(r.db).
		Where("session_id = ?", sessionID).
		Order("turn_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) ListBySessionIDs(dbc dbctx.Context, sessionIDs []uuid.UUID) ([]*types.Segment, error) {
	if len(sessionIDs) == 0 {
		return []*types.Segment{}, nil
	}
	var out []*types.Segment
	if err := dbc.DB(r.db).
		Where("session_id IN ?", sessionIDs).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, error) {
	var n int64
	if err := dbc.DB(r.db).Model(&types.Segment{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *segmentRepo) GetInSession(dbc dbctx.Context, sessionID uuid.UUID, segmentID uint) (*types.Segment, error) {
	var out types.Segment
	if err := dbc.DB(r.db).
		Where("id = ? AND session_id = ?", segmentID, sessionID).
		Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
