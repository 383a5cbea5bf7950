package profile

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/talkco-backend/internal/data/repos"
	"github.com/yungbote/talkco-backend/internal/data/repos/testutil"
	"github.com/yungbote/talkco-backend/internal/domain/learner"
	"github.com/yungbote/talkco-backend/internal/domain/practice"
)

// scriptedAI answers by matching a marker in the system prompt.
type scriptedAI struct {
	mu      sync.Mutex
	replies map[string]string
	prompts map[string][]string
	delay   time.Duration
}

func newScriptedAI(replies map[string]string) *scriptedAI {
	return &scriptedAI{replies: replies, prompts: map[string][]string{}}
}

func (a *scriptedAI) GenerateJSON(ctx context.Context, system, user string) (map[string]any, error) {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for marker, raw := range a.replies {
		if strings.Contains(system, marker) {
			a.prompts[marker] = append(a.prompts[marker], user)
			var out map[string]any
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return map[string]any{}, nil
}

func (a *scriptedAI) prompt(marker string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.prompts[marker]) == 0 {
		return ""
	}
	return a.prompts[marker][0]
}

const (
	markerUpdate   = "profile updater"
	markerLevel    = "CEFR"
	markerProgress = "progress summarizer"
	markerQuick    = "quick-review"
)

func newTestService(t *testing.T, ai *scriptedAI, limits Limits) (*Service, repos.Set) {
	t.Helper()
	log := testutil.Logger(t)
	set := repos.NewSet(testutil.DB(t), log)
	return NewService(log, ai, set, limits), set
}

func seedData(t *testing.T, set repos.Set, userID string, data learner.ProfileData) {
	t.Helper()
	if _, err := set.Profiles.GetOrCreate(testutil.Ctx(t), userID); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	raw, _ := data.Encode()
	if err := set.Profiles.UpdateData(testutil.Ctx(t), userID, raw); err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
}

func TestView_CreatesDefaultProfile(t *testing.T) {
	svc, _ := newTestService(t, newScriptedAI(nil), Limits{})
	v, err := svc.View(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if v.Level != nil || v.NeedsReview {
		t.Fatalf("unexpected default view %+v", v)
	}
	for _, dim := range learner.WeakPointDimensions {
		if _, ok := v.ProfileData.WeakPoints[dim]; !ok {
			t.Fatalf("missing dimension %s", dim)
		}
	}
}

func TestUpdateAfterSession_KeepsOtherFields(t *testing.T) {
	ai := newScriptedAI(map[string]string{
		markerUpdate: `{"profile_data":{
			"personal_facts":["住在台北"],
			"weak_points":{
				"grammar":[{"pattern":"過去式","examples":[
					{"wrong":"a1","correct":"b1"},{"wrong":"a2","correct":"b2"},
					{"wrong":"a3","correct":"b3"},{"wrong":"a4","correct":"b4"}]}],
				"vocabulary":[{"pattern":"not tracked","examples":[]}]
			},
			"common_errors":["時態"]}}`,
	})
	svc, set := newTestService(t, ai, Limits{MaxExamplesPerPattern: 3})
	ctx := context.Background()

	seed := learner.DefaultProfileData()
	seed.ProgressNotes = "keep me"
	seed.QuickReview = []learner.QuickReviewItem{{Chinese: "你好", English: "hello"}}
	seedData(t, set, "u1", seed)

	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	seg := &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "I go yesterday", AIText: "Where?"}
	_ = set.Segments.Create(testutil.Ctx(t), seg)

	if err := svc.UpdateAfterSession(ctx, "u1", sess.ID); err != nil {
		t.Fatalf("UpdateAfterSession: %v", err)
	}
	if p := ai.prompt(markerUpdate); !strings.Contains(p, "Turn 0: User: I go yesterday | AI: Where?") || !strings.Contains(p, "(No AI-identified issues)") {
		t.Fatalf("prompt = %q", p)
	}

	v, _ := svc.View(ctx, "u1")
	d := v.ProfileData
	if d.ProgressNotes != "keep me" || len(d.QuickReview) != 1 {
		t.Fatalf("unrelated fields overwritten: %+v", d)
	}
	if len(d.PersonalFacts) != 1 || d.PersonalFacts[0] != "住在台北" {
		t.Fatalf("personal facts = %v", d.PersonalFacts)
	}
	g := d.WeakPoints["grammar"]
	if len(g) != 1 || len(g[0].Examples) != 3 || g[0].Examples[0].Wrong != "a2" {
		t.Fatalf("grammar weak points = %+v", g)
	}
	if _, ok := d.WeakPoints["vocabulary"]; ok {
		t.Fatalf("untracked dimension stored")
	}
	if !v.NeedsReview {
		t.Fatalf("three examples should trigger needs_review")
	}
	if v.Level != nil {
		t.Fatalf("level must not change")
	}
}

func TestEvaluateLevel_RejectsUnknownLevel(t *testing.T) {
	ai := newScriptedAI(map[string]string{markerLevel: `{"analysis":"?","level":"Z9"}`})
	svc, _ := newTestService(t, ai, Limits{})
	level, err := svc.EvaluateLevel(context.Background(), "u1")
	if err != nil {
		t.Fatalf("EvaluateLevel: %v", err)
	}
	if level != "" {
		t.Fatalf("level = %q, want unchanged empty", level)
	}
	if !strings.Contains(ai.prompt(markerLevel), "No completed sessions yet.") {
		t.Fatalf("prompt = %q", ai.prompt(markerLevel))
	}
}

func TestEvaluate_ConcurrentWritersLoseNothing(t *testing.T) {
	ai := newScriptedAI(map[string]string{
		markerLevel:    `{"analysis":"ok","level":"b2"}`,
		markerProgress: `{"progress_notes":"進步很多"}`,
		markerQuick:    `{"quick_review":[{"chinese":"一","english":"one"},{"chinese":"二","english":"two"},{"chinese":"三","english":"three"},{"chinese":"空","english":""}]}`,
	})
	ai.delay = 20 * time.Millisecond
	svc, set := newTestService(t, ai, Limits{QuickReview: 2})
	ctx := context.Background()

	seed := learner.DefaultProfileData()
	seed.PersonalFacts = []string{"喜歡咖啡"}
	seedData(t, set, "u1", seed)

	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)
	seg := &practice.Segment{SessionID: sess.ID, TurnIndex: 0, UserText: "How to say 加班", AIText: "Overtime!"}
	_ = set.Segments.Create(testutil.Ctx(t), seg)
	_ = set.Corrections.Create(testutil.Ctx(t), &practice.Correction{SessionID: sess.ID, SegmentID: seg.ID, UserMessage: "加班怎麼說", Correction: "work overtime", Explanation: "片語"})

	v, err := svc.Evaluate(ctx, "u1")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Level == nil || *v.Level != "B2" {
		t.Fatalf("level = %v", v.Level)
	}
	if v.ProfileData.ProgressNotes != "進步很多" {
		t.Fatalf("progress notes lost: %q", v.ProfileData.ProgressNotes)
	}
	if len(v.ProfileData.QuickReview) != 2 || v.ProfileData.QuickReview[0].English != "one" {
		t.Fatalf("quick review = %+v", v.ProfileData.QuickReview)
	}
	if len(v.ProfileData.PersonalFacts) != 1 {
		t.Fatalf("personal facts lost: %v", v.ProfileData.PersonalFacts)
	}
	if p := ai.prompt(markerQuick); !strings.Contains(p, "work overtime") {
		t.Fatalf("quick review prompt missing correction: %q", p)
	}
}

func TestDataJobsAreSerializedPerUser(t *testing.T) {
	ai := newScriptedAI(map[string]string{
		markerUpdate:   `{"profile_data":{"personal_facts":["新事實"],"weak_points":{},"common_errors":["冠詞"]}}`,
		markerProgress: `{"progress_notes":"notes"}`,
		markerQuick:    `{"quick_review":[{"chinese":"好","english":"good"}]}`,
		markerLevel:    `{"level":"A2"}`,
	})
	ai.delay = 15 * time.Millisecond
	svc, set := newTestService(t, ai, Limits{})
	ctx := context.Background()

	sess := &practice.Session{UserID: "u1", Mode: practice.ModeConversation}
	_ = set.Sessions.Create(testutil.Ctx(t), sess)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for _, job := range []func() error{
		func() error { return svc.UpdateAfterSession(ctx, "u1", sess.ID) },
		func() error { return svc.GenerateProgressNotes(ctx, "u1") },
		func() error { return svc.GenerateQuickReview(ctx, "u1") },
		func() error { _, err := svc.EvaluateLevel(ctx, "u1"); return err },
	} {
		wg.Add(1)
		go func(job func() error) {
			defer wg.Done()
			errs <- job()
		}(job)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("job failed: %v", err)
		}
	}

	v, _ := svc.View(ctx, "u1")
	d := v.ProfileData
	if len(d.PersonalFacts) != 1 || d.ProgressNotes != "notes" || len(d.QuickReview) != 1 || len(d.CommonErrors) != 1 {
		t.Fatalf("a concurrent write was lost: %+v", d)
	}
	if v.Level == nil || *v.Level != "A2" {
		t.Fatalf("level = %v", v.Level)
	}
}
