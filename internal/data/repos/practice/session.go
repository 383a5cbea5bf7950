package practice

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, row *types.Session) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	// AdvanceStatus moves the row to `to` only if its current status ranks below it.
	// It reports whether the row changed.
	AdvanceStatus(dbc dbctx.Context, id uuid.UUID, to types.Status, endedAt *time.Time) (bool, error)
	ListRecentIDs(dbc dbctx.Context, userID string, mode types.Mode, limit int) ([]uuid.UUID, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, log *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: log.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, row *types.Session) error {
	if row == nil {
		return fmt.Errorf("missing session")
	}
	if row.UserID == "" {
		return fmt.Errorf("missing user_id")
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.Session
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *sessionRepo) AdvanceStatus(dbc dbctx.Context, id uuid.UUID, to types.Status, endedAt *time.Time) (bool, error) {
	if id == uuid.Nil {
		return false, fmt.Errorf("missing id")
	}
	preds := to.Predecessors()
	if len(preds) == 0 {
		return false, fmt.Errorf("status %q cannot be advanced into", to)
	}
	from := make([]string, 0, len(preds))
	for _, s := range preds {
		from = append(from, string(s))
	}
	updates := map[string]interface{}{"status": string(to)}
	if endedAt != nil {
		updates["ended_at"] = endedAt.UTC()
	}
	res := dbc.DB(r.db).
		Model(&types.Session{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *sessionRepo) ListRecentIDs(dbc dbctx.Context, userID string, mode types.Mode, limit int) ([]uuid.UUID, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 10
	}
	var out []uuid.UUID
	q := dbc.DB(r.db).Model(&types.Session{}).Where("user_id = ?", userID)
	if mode != "" {
		q = q.Where("mode = ?", mode)
	}
	if err := q.Order("started_at DESC").Limit(limit).Pluck("id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
