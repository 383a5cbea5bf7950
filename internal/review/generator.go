package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
	"github.com/yungbote/talkco-backend/internal/pkg/dbctx"
	"github.com/yungbote/talkco-backend/internal/platform/logger"
	"github.com/yungbote/talkco-backend/internal/platform/openai"
)

var ErrSegmentNotFound = errors.New("segment not found in session")

// Generator produces everything written about a session after it ends: marks, the session
// summary, chat and review summaries, and on-demand corrections.
type Generator struct {
	log     *logger.Logger
	ai      openai.Client
	repos   repos.Set
	catalog *content.Catalog
	tracer  trace.Tracer
}

func NewGenerator(log *logger.Logger, ai openai.Client, set repos.Set, catalog *content.Catalog) *Generator {
	return &Generator{
		log:     log.With("service", "ReviewGenerator"),
		ai:      ai,
		repos:   set,
		catalog: catalog,
		tracer:  otel.Tracer("talkco/review"),
	}
}

func (g *Generator) span(ctx context.Context, name string, sessionID uuid.UUID) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session.id", sessionID.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type markIssue struct {
	IssueTypes  stringList `json:"issue_types"`
	IssueType   stringList `json:"issue_type"`
	Original    string     `json:"original"`
	Suggestion  string     `json:"suggestion"`
	Explanation string     `json:"explanation"`
}

type marksResult struct {
	Marks []struct {
		TurnIndex *int        `json:"turn_index"`
		Issues    []markIssue `json:"issues"`
	} `json:"marks"`
}

// decode re-reads the model's generic JSON into a typed shape.
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

func transcript(segs []*practice.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Turn %d:\n  User: %s\n  AI: %s", s.TurnIndex, s.UserText, s.AIText)
	}
	return b.String()
}

func (g *Generator) issueTypes(issue markIssue) []string {
	raw := append(append([]string{}, issue.IssueTypes...), issue.IssueType...)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] || (g.catalog != nil && !g.catalog.IsDimension(t)) {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// GenerateMarks reviews every segment of the session and stores the issues found. It returns
// the number of marks written.
func (g *Generator) GenerateMarks(ctx context.Context, sessionID uuid.UUID) (n int, err error) {
	ctx, span := g.span(ctx, "review.generate_marks", sessionID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	segs, err := g.repos.Segments.ListBySession(dbc, sessionID)
	if err != nil {
		return 0, fmt.Errorf("load segments: %w", err)
	}
	if len(segs) == 0 {
		g.log.Warn("No segments found, skipping review", "session_id", sessionID)
		return 0, nil
	}

	obj, err := g.ai.GenerateJSON(ctx, marksSystemPrompt, transcript(segs))
	if err != nil {
		return 0, fmt.Errorf("generate marks: %w", err)
	}
	var res marksResult
	if err := decode(obj, &res); err != nil {
		return 0, err
	}

	byTurn := make(map[int]uint, len(segs))
	for _, s := range segs {
		byTurn[s.TurnIndex] = s.ID
	}
	var rows []*practice.Mark
	for _, m := range res.Marks {
		if m.TurnIndex == nil {
			continue
		}
		segID, ok := byTurn[*m.TurnIndex]
		if !ok {
			continue
		}
		for _, issue := range m.Issues {
			types := g.issueTypes(issue)
			if len(types) == 0 || issue.Original == "" || issue.Suggestion == "" || issue.Explanation == "" {
				g.log.Warn("Skipping malformed issue", "session_id", sessionID, "turn_index", *m.TurnIndex)
				continue
			}
			raw, _ := json.Marshal(types)
			rows = append(rows, &practice.Mark{
				SegmentID:   segID,
				IssueTypes:  datatypes.JSON(raw),
				Original:    issue.Original,
				Suggestion:  issue.Suggestion,
				Explanation: issue.Explanation,
			})
		}
	}
	if len(rows) == 0 {
		g.log.Info("Review found no issues", "session_id", sessionID)
		return 0, nil
	}
	if _, err := g.repos.Marks.Create(dbc, rows); err != nil {
		return 0, fmt.Errorf("save marks: %w", err)
	}
	g.log.Info("Review written", "session_id", sessionID, "marks", len(rows))
	return len(rows), nil
}

// GenerateCorrection answers a learner's question about one segment and stores the answer.
func (g *Generator) GenerateCorrection(ctx context.Context, sessionID uuid.UUID, segmentID uint, userMessage string) (row *practice.Correction, err error) {
	ctx, span := g.span(ctx, "review.generate_correction", sessionID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	seg, err := g.repos.Segments.GetInSession(dbc, sessionID, segmentID)
	if err != nil {
		return nil, fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return nil, ErrSegmentNotFound
	}

	user := fmt.Sprintf("Segment context:\n  User said: %s\n  AI responded: %s\n\nLearner's message: %s",
		seg.UserText, seg.AIText, userMessage)
	obj, err := g.ai.GenerateJSON(ctx, correctionSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("generate correction: %w", err)
	}
	var res struct {
		Correction  string `json:"correction"`
		Explanation string `json:"explanation"`
	}
	if err := decode(obj, &res); err != nil {
		return nil, err
	}

	row = &practice.Correction{
		SessionID:   sessionID,
		SegmentID:   segmentID,
		UserMessage: userMessage,
		Correction:  res.Correction,
		Explanation: res.Explanation,
	}
	if err := g.repos.Corrections.Create(dbc, row); err != nil {
		return nil, fmt.Errorf("save correction: %w", err)
	}
	return row, nil
}

// sessionMaterial loads the transcript with its marks and corrections.
func (g *Generator) sessionMaterial(dbc dbctx.Context, sessionID uuid.UUID) ([]*practice.Segment, []*practice.Mark, []*practice.Correction, error) {
	segs, err := g.repos.Segments.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load segments: %w", err)
	}
	ids := make([]uint, 0, len(segs))
	for _, s := range segs {
		ids = append(ids, s.ID)
	}
	marks, err := g.repos.Marks.ListBySegmentIDs(dbc, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load marks: %w", err)
	}
	corrections, err := g.repos.Corrections.ListBySession(dbc, sessionID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load corrections: %w", err)
	}
	return segs, marks, corrections, nil
}

// MarkTypes decodes a mark's issue types, tolerating bad rows.
func MarkTypes(m *practice.Mark) []string {
	var types []string
	_ = json.Unmarshal(m.IssueTypes, &types)
	return types
}

func sessionReviewInput(segs []*practice.Segment, marks []*practice.Mark, corrections []*practice.Correction) string {
	parts := []string{"Conversation transcript:"}
	for _, s := range segs {
		parts = append(parts, fmt.Sprintf("  Turn %d: User: %s | AI: %s", s.TurnIndex, s.UserText, s.AIText))
	}
	if len(marks) > 0 {
		parts = append(parts, "\nAI-identified issues:")
		for _, m := range marks {
			parts = append(parts, fmt.Sprintf("  [%s] %q → %q (%s)", strings.Join(MarkTypes(m), ", "), m.Original, m.Suggestion, m.Explanation))
		}
	}
	if len(corrections) > 0 {
		parts = append(parts, "\nLearner's self-corrections:")
		for _, c := range corrections {
			parts = append(parts, fmt.Sprintf("  Learner asked: %s → Correction: %s", c.UserMessage, c.Correction))
		}
	}
	return strings.Join(parts, "\n")
}

// GenerateSessionReview writes the strengths/weaknesses assessment for a conversation session.
func (g *Generator) GenerateSessionReview(ctx context.Context, sessionID uuid.UUID, userID string) (row *learner.SessionSummary, err error) {
	ctx, span := g.span(ctx, "review.generate_session_review", sessionID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	segs, marks, corrections, err := g.sessionMaterial(dbc, sessionID)
	if err != nil {
		return nil, err
	}
	obj, err := g.ai.GenerateJSON(ctx, sessionReviewSystemPrompt, sessionReviewInput(segs, marks, corrections))
	if err != nil {
		return nil, fmt.Errorf("generate session review: %w", err)
	}
	var res struct {
		Strengths       []string       `json:"strengths"`
		Weaknesses      map[string]any `json:"weaknesses"`
		LevelAssessment string         `json:"level_assessment"`
		Overall         string         `json:"overall"`
	}
	if err := decode(obj, &res); err != nil {
		return nil, err
	}
	if res.Strengths == nil {
		res.Strengths = []string{}
	}
	if res.Weaknesses == nil {
		res.Weaknesses = map[string]any{}
	}
	strengths, _ := json.Marshal(res.Strengths)
	weaknesses, _ := json.Marshal(res.Weaknesses)

	row = &learner.SessionSummary{
		SessionID:       sessionID,
		UserID:          userID,
		Strengths:       datatypes.JSON(strengths),
		Weaknesses:      datatypes.JSON(weaknesses),
		LevelAssessment: res.LevelAssessment,
		Overall:         res.Overall,
	}
	if err := g.repos.SessionSummary.Upsert(dbc, row); err != nil {
		return nil, fmt.Errorf("save session summary: %w", err)
	}
	g.log.Info("Session review written", "session_id", sessionID)
	return row, nil
}

// GenerateChatSummary stores a short recap used as memory by later sessions on the topic.
func (g *Generator) GenerateChatSummary(ctx context.Context, sessionID uuid.UUID, userID, topicID string) (err error) {
	ctx, span := g.span(ctx, "review.generate_chat_summary", sessionID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	segs, err := g.repos.Segments.ListBySession(dbc, sessionID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	if len(segs) == 0 {
		return nil
	}
	topic := topicID
	if g.catalog != nil {
		if t, ok := g.catalog.Topic(topicID); ok {
			topic = t.LabelEN
		}
	}
	user := fmt.Sprintf("Topic: %s\n\n%s", topic, transcript(segs))
	obj, err := g.ai.GenerateJSON(ctx, chatSummarySystemPrompt, user)
	if err != nil {
		return fmt.Errorf("generate chat summary: %w", err)
	}
	var res struct {
		Summary string `json:"summary"`
	}
	if err := decode(obj, &res); err != nil {
		return err
	}
	if strings.TrimSpace(res.Summary) == "" {
		return fmt.Errorf("empty chat summary")
	}
	return g.repos.ChatSummaries.Upsert(dbc, &learner.ChatSummary{
		SessionID: sessionID,
		UserID:    userID,
		TopicID:   topicID,
		Summary:   strings.TrimSpace(res.Summary),
	})
}

// GenerateReviewSummary records which weak points a review-mode session drilled and how the
// learner did on them.
func (g *Generator) GenerateReviewSummary(ctx context.Context, sessionID uuid.UUID, userID string) (err error) {
	ctx, span := g.span(ctx, "review.generate_review_summary", sessionID)
	defer func() { endSpan(span, err) }()
	dbc := dbctx.New(ctx)

	segs, err := g.repos.Segments.ListBySession(dbc, sessionID)
	if err != nil {
		return fmt.Errorf("load segments: %w", err)
	}
	if len(segs) == 0 {
		g.log.Warn("No segments found, skipping review summary", "session_id", sessionID)
		return nil
	}
	profile, err := g.repos.Profiles.Get(dbc, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	data := learner.DefaultProfileData()
	if profile != nil {
		data = learner.DecodeData(profile.Data)
	}
	weak, _ := json.Marshal(data.WeakPoints)

	user := fmt.Sprintf("Weak points targeted:\n%s\n\nSession transcript:\n%s", weak, transcript(segs))
	obj, err := g.ai.GenerateJSON(ctx, reviewSummarySystemPrompt, user)
	if err != nil {
		return fmt.Errorf("generate review summary: %w", err)
	}
	var res struct {
		Practiced []learner.PracticedPattern `json:"practiced"`
		Notes     string                     `json:"notes"`
	}
	if err := decode(obj, &res); err != nil {
		return err
	}
	if res.Practiced == nil {
		res.Practiced = []learner.PracticedPattern{}
	}
	practiced, _ := json.Marshal(res.Practiced)
	if err := g.repos.ReviewSummaries.Upsert(dbc, &learner.ReviewSummary{
		SessionID: sessionID,
		UserID:    userID,
		Practiced: datatypes.JSON(practiced),
		Notes:     res.Notes,
	}); err != nil {
		return fmt.Errorf("save review summary: %w", err)
	}
	g.log.Info("Review summary written", "session_id", sessionID, "patterns", len(res.Practiced))
	return nil
}
