package learner

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

// ProfileRepo writes level and profile_data through separate methods so that concurrent
// jobs touching different columns never clobber each other.
type ProfileRepo interface {
	Get(dbc dbctx.Context, userID string) (*types.Profile, error)
	GetOrCreate(dbc dbctx.Context, userID string) (*types.Profile, error)
	UpdateData(dbc dbctx.Context, userID string, data datatypes.JSON) error
	UpdateLevel(dbc dbctx.Context, userID string, level string) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: log.With("repo", "ProfileRepo")}
}

func (r *profileRepo) Get(dbc dbctx.Context, userID string) (*types.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	var out types.Profile
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r *profileRepo) GetOrCreate(dbc dbctx.Context, userID string) (*types.Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	data, err := types.DefaultProfileData().Encode()
	if err != nil {
		return nil, err
	}
	row := &types.Profile{UserID: userID, Data: data, UpdatedAt: time.Now().UTC()}
	if err := dbc.DB(r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(row).Error; err != nil {
		return nil, err
	}
	out, err := r.Get(dbc, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("profile %q missing after create", userID)
	}
	return out, nil
}

func (r *profileRepo) UpdateData(dbc dbctx.Context, userID string, data datatypes.JSON) error {
	if userID == "" {
		return fmt.Errorf("missing user_id")
	}
	return dbc.DB(r.db).
		Model(&types.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"profile_data": data,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *profileRepo) UpdateLevel(dbc dbctx.Context, userID string, level string) error {
	if userID == "" {
		return fmt.Errorf("missing user_id")
	}
	return dbc.DB(r.db).
		Model(&types.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"level":      level,
			"updated_at": time.Now().UTC(),
		}).Error
}
