package practice

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/talkco-backend/internal/data/repos/testutil"
	types "github.com/yungbote/talkco-backend/internal/domain/practice"
)

func TestSessionRepo_CreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Ctx(t)
	repo := NewSessionRepo(db, testutil.Logger(t))

	topic := "travel"
	row := &types.Session{UserID: "u1", Mode: types.ModeConversation, TopicID: &topic}
	if err := repo.Create(dbc, row); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.ID == uuid.Nil || row.Status != types.StatusActive || row.StartedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", row)
	}

	got, err := repo.GetByID(dbc, row.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.TopicID == nil || *got.TopicID != "travel" {
		t.Fatalf("topic_id=%v", got.TopicID)
	}

	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing): got=%v err=%v", missing, err)
	}
}

func TestSessionRepo_AdvanceStatusIsForwardOnly(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Ctx(t)
	repo := NewSessionRepo(db, testutil.Logger(t))
	s := testutil.SeedSession(t, dbc.Ctx, db, "u1", types.ModeConversation, types.StatusActive)

	now := time.Now()
	changed, err := repo.AdvanceStatus(dbc, s.ID, types.StatusReviewing, &now)
	if err != nil || !changed {
		t.Fatalf("active->reviewing: changed=%v err=%v", changed, err)
	}
	changed, err = repo.AdvanceStatus(dbc, s.ID, types.StatusCompleted, nil)
	if err != nil || !changed {
		t.Fatalf("reviewing->completed: changed=%v err=%v", changed, err)
	}

	// Late writers must not drag the row backwards.
	for _, back := range []types.Status{types.StatusCompleting, types.StatusReviewing, types.StatusEnded} {
		changed, err = repo.AdvanceStatus(dbc, s.ID, back, nil)
		if err != nil {
			t.Fatalf("AdvanceStatus(%s): %v", back, err)
		}
		if changed {
			t.Fatalf("completed regressed to %s", back)
		}
	}
	if _, err := repo.AdvanceStatus(dbc, s.ID, types.StatusActive, nil); err == nil {
		t.Fatalf("expected error advancing into active")
	}

	got, _ := repo.GetByID(dbc, s.ID)
	if got.Status != types.StatusCompleted {
		t.Fatalf("status=%s", got.Status)
	}
	if got.EndedAt == nil {
		t.Fatalf("ended_at not recorded")
	}
}

func TestSessionRepo_ListRecentIDs(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Ctx(t)
	repo := NewSessionRepo(db, testutil.Logger(t))

	older := &types.Session{UserID: "u1", Mode: types.ModeConversation, StartedAt: time.Now().Add(-time.Hour)}
	newer := &types.Session{UserID: "u1", Mode: types.ModeConversation, StartedAt: time.Now()}
	review := &types.Session{UserID: "u1", Mode: types.ModeReview}
	other := &types.Session{UserID: "u2", Mode: types.ModeConversation}
	for _, s := range []*types.Session{older, newer, review, other} {
		if err := repo.Create(dbc, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	ids, err := repo.ListRecentIDs(dbc, "u1", types.ModeConversation, 5)
	if err != nil {
		t.Fatalf("ListRecentIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != newer.ID || ids[1] != older.ID {
		t.Fatalf("ids=%v want [%s %s]", ids, newer.ID, older.ID)
	}
}
