package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/talkco-backend/internal/data/repos/learner"
	"github.com/yungbote/talkco-backend/internal/data/repos/practice"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
)

type SessionRepo = practice.SessionRepo
type SegmentRepo = practice.SegmentRepo
type MarkRepo = practice.MarkRepo
type CorrectionRepo = practice.CorrectionRepo

type ProfileRepo = learner.ProfileRepo
type SessionSummaryRepo = learner.SessionSummaryRepo
type ChatSummaryRepo = learner.ChatSummaryRepo
type ReviewSummaryRepo = learner.ReviewSummaryRepo

// Set is every repository the backend uses, built over one *gorm.DB.
type Set struct {
	Sessions        SessionRepo
	Segments        SegmentRepo
	Marks           MarkRepo
	Corrections     CorrectionRepo
	Profiles        ProfileRepo
	SessionSummary  SessionSummaryRepo
	ChatSummaries   ChatSummaryRepo
	ReviewSummaries ReviewSummaryRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Sessions:        practice.NewSessionRepo(db, log),
		Segments:        practice.NewSegmentRepo(db, log),
		Marks:           practice.NewMarkRepo(db, log),
		Corrections:     practice.NewCorrectionRepo(db, log),
		Profiles:        learner.NewProfileRepo(db, log),
		SessionSummary:  learner.NewSessionSummaryRepo(db, log),
		ChatSummaries:   learner.NewChatSummaryRepo(db, log),
		ReviewSummaries: learner.NewReviewSummaryRepo(db, log),
	}
}
