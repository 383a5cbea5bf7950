package practice

import (
	"gorm.io/gorm"

	types "github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type MarkRepo interface {
	Create(dbc dbctx.Context, rows []*types.Mark) ([]*types.Mark, error)
	ListBySegmentIDs(dbc dbctx.Context, segmentIDs []uint) ([]*types.Mark, error)
}

type markRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMarkRepo(db *gorm.DB, log *logger.Logger) MarkRepo {
	return &markRepo{db: db, log: log.With("repo", "MarkRepo")}
}

func (r *markRepo) Create(dbc dbctx.Context, rows []*types.Mark) ([]*types.Mark, error) {
	if len(rows) == 0 {
		return []*types.Mark{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *markRepo) ListBySegmentIDs(dbc dbctx.Context, segmentIDs []uint) ([]*types.Mark, error) {
	if len(segmentIDs) == 0 {
		return []*types.Mark{}, nil
	}
	var out []*types.Mark
	if err := dbc.DB(r.db).
		Where("segment_id IN ?", segmentIDs).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
