package review

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/content"
	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/data/repos/testutil"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
)

type fakeAI struct {
	mu    sync.Mutex
	calls map[string][]string
	reply map[string]map[string]any
	err   error
}

func newFakeAI() *fakeAI {
	return &fakeAI{calls: map[string][]string{}, reply: map[string]map[string]any{}}
}

func (f *fakeAI) GenerateJSON(_ context.Context, system, user string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[system] = append(f.calls[system], user)
	if f.err != nil {
		return nil, f.err
	}
	return f.reply[system], nil
}

func mustMap(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return m
}

func setup(t *testing.T) (*Generator, *fakeAI, repos.Set) {
	t.Helper()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	catalog, err := content.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	set := repos.NewSet(gdb, log)
	ai := newFakeAI()
	return NewGenerator(log, ai, set, catalog), ai, set
}

func TestGenerateMarks(t *testing.T) {
	g, ai, set := setup(t)
	ctx := context.Background()

	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	if err := set.Sessions.Create(testutil.Ctx(t), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i, pair := range [][2]string{{"I go park yesterday", "Which park?"}, {"It is near my home", "Nice!"}} {
		if err := set.Segments.Create(testutil.Ctx(t), &practice.Segment{SessionID: sess.ID, TurnIndex: i, UserText: pair[0], AIText: pair[1]}); err != nil {
			t.Fatalf("create segment: %v", err)
		}
	}

	ai.reply[marksSystemPrompt] = mustMap(t, `{"marks":[
		{"turn_index":0,"issues":[
			{"issue_types":["grammar","Naturalness","bogus"],"original":"I go park","suggestion":"I went to the park","explanation":"過去式"},
			{"issue_type":"vocabulary","original":"go","suggestion":"headed","explanation":"用詞"},
			{"issue_types":["bogus"],"original":"x","suggestion":"y","explanation":"z"},
			{"issue_types":["grammar"],"original":"","suggestion":"y","explanation":"z"}
		]},
		{"turn_index":7,"issues":[{"issue_types":["grammar"],"original":"a","suggestion":"b","explanation":"c"}]}
	]}`)

	n, err := g.GenerateMarks(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GenerateMarks: %v", err)
	}
	if n != 2 {
		t.Fatalf("marks written = %d, want 2", n)
	}
	if prompt := ai.calls[marksSystemPrompt][0]; !strings.Contains(prompt, "Turn 0:\n  User: I go park yesterday\n  AI: Which park?") {
		t.Fatalf("transcript prompt = %q", prompt)
	}

	segs, _ := set.Segments.ListBySession(testutil.Ctx(t), sess.ID)
	marks, err := set.Marks.ListBySegmentIDs(testutil.Ctx(t), []uint{segs[0].ID, segs[1].ID})
	if err != nil {
		t.Fatalf("list marks: %v", err)
	}
	if len(marks) != 2 {
		t.Fatalf("stored marks = %d", len(marks))
	}
	if got := MarkTypes(marks[0]); len(got) != 2 || got[0] != "grammar" || got[1] != "naturalness" {
		t.Fatalf("issue types = %v", got)
	}
	if got := MarkTypes(marks[1]); len(got) != 1 || got[0] != "vocabulary" {
		t.Fatalf("issue types = %v", got)
	}
	for _, m := range marks {
		if m.SegmentID != segs[0].ID {
			t.Fatalf("mark attached to wrong segment")
		}
	}
}

func TestGenerateMarks_NoSegmentsSkipsModel(t *testing.T) {
	g, ai, _ := setup(t)
	n, err := g.GenerateMarks(context.Background(), uuid.New())
	if err != nil || n != 0 {
		t.Fatalf("GenerateMarks = %d, %v", n, err)
	}
	if len(ai.calls) != 0 {
		t.Fatalf("model should not be called")
	}
}

func TestGenerateCorrection(t *testing.T) {
	g, ai, set := setup(t)
	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	seg := &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "I very like it", AIText: "Great!"}
	_ = set.Segments.Create(testutil.Ctx(t), seg)

	ai.reply[correctionSystemPrompt] = mustMap(t, `{"correction":"I really like it","explanation":"very 不能修飾動詞"}`)

	row, err := g.GenerateCorrection(context.Background(), sess.ID, seg.ID, "我想說我很喜歡")
	if err != nil {
		t.Fatalf("GenerateCorrection: %v", err)
	}
	if row.ID == 0 || row.Correction != "I really like it" {
		t.Fatalf("row = %+v", row)
	}
	want := "Segment context:\n  User said: I very like it\n  AI responded: Great!\n\nLearner's message: 我想說我很喜歡"
	if got := ai.calls[correctionSystemPrompt][0]; got != want {
		t.Fatalf("prompt = %q", got)
	}

	if _, err := g.GenerateCorrection(context.Background(), uuid.New(), seg.ID, "?"); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("foreign session err = %v", err)
	}
}

func TestGenerateSessionReview(t *testing.T) {
	g, ai, set := setup(t)
	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	_ = set.Segments.Create(testutil.Ctx(t), &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "hi", AIText: "hello"})

	ai.reply[sessionReviewSystemPrompt] = mustMap(t, `{"strengths":["敢開口"],"weaknesses":{"grammar":"時態","vocabulary":null},"level_assessment":"B1","overall":"不錯"}`)

	row, err := g.GenerateSessionReview(context.Background(), sess.ID, "u1")
	if err != nil {
		t.Fatalf("GenerateSessionReview: %v", err)
	}
	got, err := set.SessionSummary.GetBySession(testutil.Ctx(t), sess.ID)
	if err != nil || got == nil {
		t.Fatalf("GetBySession = %v, %v", got, err)
	}
	if got.LevelAssessment != "B1" || got.Overall != row.Overall {
		t.Fatalf("summary = %+v", got)
	}
	var strengths []string
	_ = json.Unmarshal(got.Strengths, &strengths)
	if len(strengths) != 1 || strengths[0] != "敢開口" {
		t.Fatalf("strengths = %v", strengths)
	}
}

func TestGenerateChatSummaryAndReviewSummary(t *testing.T) {
	g, ai, set := setup(t)
	ctx := context.Background()
	topic := "travel"
	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation, TopicID: &topic}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	_ = set.Segments.Create(testutil.Ctx(t), &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "I went to Japan", AIText: "Cool!"})

	ai.reply[chatSummarySystemPrompt] = mustMap(t, `{"summary":"  Talked about a trip to Japan. "}`)
	if err := g.GenerateChatSummary(ctx, sess.ID, "u1", topic); err != nil {
		t.Fatalf("GenerateChatSummary: %v", err)
	}
	if !strings.HasPrefix(ai.calls[chatSummarySystemPrompt][0], "Topic: Travel") {
		t.Fatalf("chat summary prompt = %q", ai.calls[chatSummarySystemPrompt][0])
	}
	summaries, err := set.ChatSummaries.ListRecentSummaries(testutil.Ctx(t), "u1", topic, 5)
	if err != nil || len(summaries) != 1 || summaries[0] != "Talked about a trip to Japan." {
		t.Fatalf("summaries = %v, %v", summaries, err)
	}

	review := &practice.Session{UserID: "u1", Mode: practice.ModeReview}
	_ = set.Sessions.Create(testutil.Ctx(t), review)
	_ = set.Segments.Create(testutil.Ctx(t), &practice.Segment{SessionID: review.ID, TurnIndex: 0, UserText: "I went", AIText: "Good"})
	ai.reply[reviewSummarySystemPrompt] = mustMap(t, `{"practiced":[{"dimension":"grammar","patterns":["past tense"],"performance":"still_struggling"}],"notes":"繼續練習"}`)
	if err := g.GenerateReviewSummary(ctx, review.ID, "u1"); err != nil {
		t.Fatalf("GenerateReviewSummary: %v", err)
	}
	rows, err := set.ReviewSummaries.ListRecentByUser(testutil.Ctx(t), "u1", 5)
	if err != nil || len(rows) != 1 {
		t.Fatalf("review summaries = %v, %v", rows, err)
	}
	var practiced []learner.PracticedPattern
	_ = json.Unmarshal(rows[0].Practiced, &practiced)
	if len(practiced) != 1 || practiced[0].Performance != learner.PerformanceStillStruggling {
		t.Fatalf("practiced = %+v", practiced)
	}
}

func TestGenerator_ModelFailureIsReturned(t *testing.T) {
	g, ai, set := setup(t)
	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	_ = set.Segments.Create(testutil.Ctx(t), &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "a", AIText: "b"})
	ai.err = errors.New("rate limited")

	if _, err := g.GenerateMarks(context.Background(), sess.ID); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := g.GenerateSessionReview(context.Background(), sess.ID, "u1"); err == nil {
		t.Fatalf("expected error")
	}
}
