package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/pkg/keyedmutex"
	"github.com/yungbote/talkco-backend/internal/platform/envutil"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/openai"
)

var cefrLevels = map[string]bool{"A1": true, "A2": true, "B1": true, "B2": true, "C1": true, "C2": true}

type Limits struct {
	MaxExamplesPerPattern int
	QuickReview           int
	LevelEvalSessions     int
	ProgressNotesSessions int
}

func LimitsFromEnv(log *logger.Logger) Limits {
	return Limits{
		MaxExamplesPerPattern: envutil.Int("MAX_EXAMPLES_PER_PATTERN", 5, log),
		QuickReview:           envutil.Int("QUICK_REVIEW_LIMIT", 10, log),
		LevelEvalSessions:     envutil.Int("LEVEL_EVAL_SESSION_LIMIT", 5, log),
		ProgressNotesSessions: envutil.Int("PROGRESS_NOTES_SESSION_LIMIT", 5, log),
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxExamplesPerPattern <= 0 {
		l.MaxExamplesPerPattern = 5
	}
	if l.QuickReview <= 0 {
		l.QuickReview = 10
	}
	if l.LevelEvalSessions <= 0 {
		l.LevelEvalSessions = 5
	}
	if l.ProgressNotesSessions <= 0 {
		l.ProgressNotesSessions = 5
	}
	return l
}

// View is the profile as served to clients.
type View struct {
	UserID      string              `json:"user_id"`
	Level       *string             `json:"level"`
	ProfileData learner.ProfileData `json:"profile_data"`
	UpdatedAt   time.Time           `json:"updated_at"`
	NeedsReview bool                `json:"needs_review"`
}

func newView(p *learner.Profile) *View {
	data := learner.DecodeData(p.Data)
	return &View{
		UserID:      p.UserID,
		Level:       p.Level,
		ProfileData: data,
		UpdatedAt:   p.UpdatedAt,
		NeedsReview: data.NeedsReview(),
	}
}

// Service owns the learner profile. The level column and profile_data are written
// independently; every profile_data job for a user runs under that user's lock and
// rewrites the row it read inside the lock.
type Service struct {
	log    *logger.Logger
	ai     openai.Client
	repos  repos.Set
	limits Limits
	locks  keyedmutex.Mutex
	tracer trace.Tracer
}

func NewService(log *logger.Logger, ai openai.Client, set repos.Set, limits Limits) *Service {
	return &Service{
		log:    log.With("service", "ProfileService"),
		ai:     ai,
		repos:  set,
		limits: limits.withDefaults(),
		tracer: otel.Tracer("talkco/profile"),
	}
}

func (s *Service) span(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (*learner.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("missing user_id")
	}
	return s.repos.Profiles.GetOrCreate(dbctx.New(ctx), userID)
}

// View returns the profile (created with defaults on first access) and whether the learner
// should do a review session.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newView(p), nil
}

// mutateData runs fn on the freshest profile_data under the user's lock and writes the result.
// fn may call the model; the lock is held until the write lands.
func (s *Service) mutateData(ctx context.Context, userID string, fn func(p *learner.Profile, data *learner.ProfileData) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	dbc := dbctx.New(ctx)
	p, err := s.repos.Profiles.GetOrCreate(dbc, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	data := learner.DecodeData(p.Data)
	if err := fn(p, &data); err != nil {
		return err
	}
	raw, err := data.Encode()
	if err != nil {
		return err
	}
	if err := s.repos.Profiles.UpdateData(dbc, userID, raw); err != nil {
		return fmt.Errorf("save profile data: %w", err)
	}
	return nil
}

type profileUpdate struct {
	ProfileData struct {
		PersonalFacts []string                       `json:"personal_facts"`
		WeakPoints    map[string][]learner.WeakPoint `json:"weak_points"`
		CommonErrors  []string                       `json:"common_errors"`
	} `json:"profile_data"`
}

// UpdateAfterSession folds one session's transcript, marks and corrections into personal
// facts, weak points and common errors. Level, progress notes and quick review are kept.
func (s *Service) UpdateAfterSession(ctx context.Context, userID string, sessionID uuid.UUID) (err error) {
	ctx, span := s.span(ctx, "profile.update_after_session", userID)
	defer func() { endSpan(span, err) }()

	return s.mutateData(ctx, userID, func(_ *learner.Profile, data *learner.ProfileData) error {
		dbc := dbctx.New(ctx)
		segs, err := s.repos.Segments.ListBySession(dbc, sessionID)
		if err != nil {
			return fmt.Errorf("load segments: %w", err)
		}
		ids := make([]uint, 0, len(segs))
		for _, seg := range segs {
			ids = append(ids, seg.ID)
		}
		marks, err := s.repos.Marks.ListBySegmentIDs(dbc, ids)
		if err != nil {
			return fmt.Errorf("load marks: %w", err)
		}
		corrections, err := s.repos.Corrections.ListBySession(dbc, sessionID)
		if err != nil {
			return fmt.Errorf("load corrections: %w", err)
		}

		obj, err := s.ai.GenerateJSON(ctx, profileUpdateSystemPrompt(s.limits.MaxExamplesPerPattern), profileUpdateInput(*data, segs, marks, corrections))
		if err != nil {
			return fmt.Errorf("generate profile update: %w", err)
		}
		var res profileUpdate
		if err := decode(obj, &res); err != nil {
			return err
		}
		if res.ProfileData.PersonalFacts != nil {
			data.PersonalFacts = res.ProfileData.PersonalFacts
		}
		if res.ProfileData.CommonErrors != nil {
			data.CommonErrors = res.ProfileData.CommonErrors
		}
		if res.ProfileData.WeakPoints != nil {
			data.WeakPoints = capWeakPoints(res.ProfileData.WeakPoints, s.limits.MaxExamplesPerPattern)
		}
		s.log.Info("Profile updated after session", "user_id", userID, "session_id", sessionID)
		return nil
	})
}

// capWeakPoints keeps the tracked dimensions and at most max examples per pattern, newest last.
func capWeakPoints(in map[string][]learner.WeakPoint, max int) map[string][]learner.WeakPoint {
	out := make(map[string][]learner.WeakPoint, len(learner.WeakPointDimensions))
	for _, dim := range learner.WeakPointDimensions {
		patterns := make([]learner.WeakPoint, 0, len(in[dim]))
		for _, wp := range in[dim] {
			if strings.TrimSpace(wp.Pattern) == "" {
				continue
			}
			if len(wp.Examples) > max {
				wp.Examples = wp.Examples[len(wp.Examples)-max:]
			}
			if wp.Examples == nil {
				wp.Examples = []learner.Example{}
			}
			patterns = append(patterns, wp)
		}
		out[dim] = patterns
	}
	return out
}

func profileUpdateInput(data learner.ProfileData, segs []*practice.Segment, marks []*practice.Mark, corrections []*practice.Correction) string {
	current, _ := json.Marshal(struct {
		PersonalFacts []string                       `json:"personal_facts"`
		WeakPoints    map[string][]learner.WeakPoint `json:"weak_points"`
		CommonErrors  []string                       `json:"common_errors"`
	}{data.PersonalFacts, data.WeakPoints, data.CommonErrors})

	var b strings.Builder
	fmt.Fprintf(&b, "Current profile: %s\n\nSession transcript:\n", current)
	if len(segs) == 0 {
		b.WriteString("  (No transcript turns)\n")
	}
	for _, seg := range segs {
		fmt.Fprintf(&b, "  Turn %d: User: %s | AI: %s\n", seg.TurnIndex, seg.UserText, seg.AIText)
	}
	b.WriteString("\nAI-identified issues:\n")
	if len(marks) == 0 {
		b.WriteString("  (No AI-identified issues)\n")
	}
	for _, m := range marks {
		fmt.Fprintf(&b, "  [%s] %q → %q\n", strings.Join(markTypes(m), ", "), m.Original, m.Suggestion)
	}
	b.WriteString("\nLearner corrections:\n")
	if len(corrections) == 0 {
		b.WriteString("  (No learner corrections)\n")
	}
	for _, c := range corrections {
		fmt.Fprintf(&b, "  Asked: %s, Correction: %s\n", c.UserMessage, c.Correction)
	}
	return strings.TrimRight(b.String(), "\n")
}

// EvaluateLevel assigns a CEFR level from recent session summaries. It writes only the level
// column, so it may run alongside profile_data jobs.
func (s *Service) EvaluateLevel(ctx context.Context, userID string) (level string, err error) {
	ctx, span := s.span(ctx, "profile.evaluate_level", userID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	p, err := s.repos.Profiles.GetOrCreate(dbc, userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	summaries, err := s.repos.SessionSummary.ListRecentByUser(dbc, userID, s.limits.LevelEvalSessions)
	if err != nil {
		return "", fmt.Errorf("load session summaries: %w", err)
	}

	current := ""
	if p.Level != nil {
		current = *p.Level
	}
	view, _ := json.Marshal(newView(p))
	user := fmt.Sprintf("Current profile: %s\n\n%s", view, sessionSummaryBlock(summaries, "No completed sessions yet."))

	obj, err := s.ai.GenerateJSON(ctx, levelEvalSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("generate level evaluation: %w", err)
	}
	var res struct {
		Analysis string `json:"analysis"`
		Level    string `json:"level"`
	}
	if err := decode(obj, &res); err != nil {
		return "", err
	}
	level = strings.ToUpper(strings.TrimSpace(res.Level))
	if !cefrLevels[level] {
		s.log.Warn("Model returned unknown level, keeping current", "user_id", userID, "level", res.Level)
		return current, nil
	}
	if err := s.repos.Profiles.UpdateLevel(dbc, userID, level); err != nil {
		return "", fmt.Errorf("save level: %w", err)
	}
	s.log.Info("Level evaluated", "user_id", userID, "from", current, "to", level)
	return level, nil
}

func sessionSummaryBlock(rows []*learner.SessionSummary, empty string) string {
	if len(rows) == 0 {
		return empty
	}
	var b strings.Builder
	b.WriteString("Recent session summaries (most recent first):")
	for i, r := range rows {
		fmt.Fprintf(&b, "\n  Session %d:\n    Strengths: %s\n    Weaknesses: %s\n    Overall: %s",
			i+1, r.Strengths, r.Weaknesses, r.Overall)
	}
	return b.String()
}

func reviewSummaryBlock(rows []*learner.ReviewSummary, empty string) string {
	if len(rows) == 0 {
		return empty
	}
	var b strings.Builder
	b.WriteString("Recent review session summaries (most recent first):")
	for i, r := range rows {
		fmt.Fprintf(&b, "\n  Review %d:\n    Practiced: %s\n    Notes: %s", i+1, r.Practiced, r.Notes)
	}
	return b.String()
}

// GenerateProgressNotes rewrites profile_data.progress_notes.
func (s *Service) GenerateProgressNotes(ctx context.Context, userID string) (err error) {
	ctx, span := s.span(ctx, "profile.progress_notes", userID)
	defer func() { endSpan(span, err) }()

	return s.mutateData(ctx, userID, func(p *learner.Profile, data *learner.ProfileData) error {
		dbc := dbctx.New(ctx)
		sessions, err := s.repos.SessionSummary.ListRecentByUser(dbc, userID, s.limits.ProgressNotesSessions)
		if err != nil {
			return fmt.Errorf("load session summaries: %w", err)
		}
		reviews, err := s.repos.ReviewSummaries.ListRecentByUser(dbc, userID, s.limits.ProgressNotesSessions)
		if err != nil {
			return fmt.Errorf("load review summaries: %w", err)
		}
		level := "Not evaluated"
		if p.Level != nil {
			level = *p.Level
		}
		current, _ := json.Marshal(data)
		user := fmt.Sprintf("Current profile: %s\nCurrent level: %s\n\n%s\n\n%s",
			current, level,
			sessionSummaryBlock(sessions, "No conversation sessions yet."),
			reviewSummaryBlock(reviews, "No review sessions yet."))

		obj, err := s.ai.GenerateJSON(ctx, progressNotesSystemPrompt, user)
		if err != nil {
			return fmt.Errorf("generate progress notes: %w", err)
		}
		var res struct {
			ProgressNotes string `json:"progress_notes"`
		}
		if err := decode(obj, &res); err != nil {
			return err
		}
		data.ProgressNotes = res.ProgressNotes
		s.log.Info("Progress notes updated", "user_id", userID)
		return nil
	})
}

type quickReviewCorrection struct {
	UserMessage string `json:"user_message"`
	Correction  string `json:"correction"`
	Explanation string `json:"explanation"`
}

type quickReviewMark struct {
	IssueTypes []string `json:"issue_types"`
	Original   string   `json:"original"`
	Suggestion string   `json:"suggestion"`
	UserText   string   `json:"user_text"`
}

// GenerateQuickReview rewrites profile_data.quick_review from recent corrections, marks and
// still-struggling review patterns.
func (s *Service) GenerateQuickReview(ctx context.Context, userID string) (err error) {
	ctx, span := s.span(ctx, "profile.quick_review", userID)
	defer func() { endSpan(span, err) }()

	return s.mutateData(ctx, userID, func(_ *learner.Profile, data *learner.ProfileData) error {
		user, err := s.quickReviewInput(dbctx.New(ctx), userID)
		if err != nil {
			return err
		}
		obj, err := s.ai.GenerateJSON(ctx, quickReviewSystemPrompt(s.limits.QuickReview), user)
		if err != nil {
			return fmt.Errorf("generate quick review: %w", err)
		}
		var res struct {
			QuickReview []learner.QuickReviewItem `json:"quick_review"`
		}
		if err := decode(obj, &res); err != nil {
			return err
		}
		items := make([]learner.QuickReviewItem, 0, len(res.QuickReview))
		for _, it := range res.QuickReview {
			if strings.TrimSpace(it.English) == "" {
				continue
			}
			items = append(items, it)
			if len(items) == s.limits.QuickReview {
				break
			}
		}
		data.QuickReview = items
		s.log.Info("Quick review updated", "user_id", userID, "items", len(items))
		return nil
	})
}

func (s *Service) quickReviewInput(dbc dbctx.Context, userID string) (string, error) {
	sessionIDs, err := s.repos.Sessions.ListRecentIDs(dbc, userID, practice.ModeConversation, s.limits.ProgressNotesSessions)
	if err != nil {
		return "", fmt.Errorf("load recent sessions: %w", err)
	}

	corrections := []quickReviewCorrection{}
	marks := []quickReviewMark{}
	if len(sessionIDs) > 0 {
		rows, err := s.repos.Corrections.ListBySessionIDs(dbc, sessionIDs)
		if err != nil {
			return "", fmt.Errorf("load corrections: %w", err)
		}
		for _, c := range rows {
			corrections = append(corrections, quickReviewCorrection{c.UserMessage, c.Correction, c.Explanation})
		}

		segs, err := s.repos.Segments.ListBySessionIDs(dbc, sessionIDs)
		if err != nil {
			return "", fmt.Errorf("load segments: %w", err)
		}
		text := make(map[uint]string, len(segs))
		ids := make([]uint, 0, len(segs))
		for _, seg := range segs {
			text[seg.ID] = seg.UserText
			ids = append(ids, seg.ID)
		}
		markRows, err := s.repos.Marks.ListBySegmentIDs(dbc, ids)
		if err != nil {
			return "", fmt.Errorf("load marks: %w", err)
		}
		for _, m := range markRows {
			marks = append(marks, quickReviewMark{markTypes(m), m.Original, m.Suggestion, text[m.SegmentID]})
		}
	}

	reviews, err := s.repos.ReviewSummaries.ListRecentByUser(dbc, userID, s.limits.ProgressNotesSessions)
	if err != nil {
		return "", fmt.Errorf("load review summaries: %w", err)
	}
	struggling := stillStruggling(reviews)

	block := func(v any, n int) string {
		if n == 0 {
			return "  (None)"
		}
		b, _ := json.MarshalIndent(v, "", "  ")
		return string(b)
	}
	return fmt.Sprintf("Corrections (learner explicitly asked, highest priority):\n%s\n\nAI-identified issues:\n%s\n\nStill-struggling patterns from review sessions:\n%s",
		block(corrections, len(corrections)),
		block(marks, len(marks)),
		block(struggling, len(struggling)),
	), nil
}

func stillStruggling(rows []*learner.ReviewSummary) []string {
	out := []string{}
	for _, r := range rows {
		var practiced []learner.PracticedPattern
		if err := json.Unmarshal(r.Practiced, &practiced); err != nil {
			continue
		}
		for _, p := range practiced {
			if p.Performance == learner.PerformanceStillStruggling {
				out = append(out, p.Patterns...)
			}
		}
	}
	return out
}

// Evaluate re-levels the learner while progress notes and then the quick review are
// regenerated, and returns the resulting profile.
func (s *Service) Evaluate(ctx context.Context, userID string) (*View, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	var g errgroup.Group
	g.Go(func() error {
		_, err := s.EvaluateLevel(ctx, userID)
		return err
	})
	g.Go(func() error {
		if err := s.GenerateProgressNotes(ctx, userID); err != nil {
			return err
		}
		return s.GenerateQuickReview(ctx, userID)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.View(ctx, userID)
}

func markTypes(m *practice.Mark) []string {
	var types []string
	_ = json.Unmarshal(m.IssueTypes, &types)
	return types
}

func decode(obj map[string]any, out any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unexpected model output: %w", err)
	}
	return nil
}
