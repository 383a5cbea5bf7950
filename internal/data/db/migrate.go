package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// =========================
		// Practice sessions
		// =========================
		&practice.Session{},
		&practice.Segment{},
		&practice.Mark{},
		&practice.Correction{},

		// =========================
		// Learner state
		// =========================
		&learner.Profile{},
		&learner.SessionSummary{},
		&learner.ChatSummary{},
		&learner.ReviewSummary{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Running auto-migrations")
	return AutoMigrateAll(s.db)
}
