package learner

import (
	"sync"
	"testing"

	"github.com/yungbote/talkco-backend/internal/data/repos/testutil"
	types "github.com/yungbote/talkco-backend/internal/domain/learner"
)

func TestProfileRepo_GetOrCreateIsIdempotent(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Ctx(t)
	repo := NewProfileRepo(db, testutil.Logger(t))

	p, err := repo.GetOrCreate(dbc, "u1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if p.Level != nil {
		t.Fatalf("new profile should have no level, got %q", *p.Level)
	}
	data := types.DecodeData(p.Data)
	if len(data.WeakPoints) != len(types.WeakPointDimensions) {
		t.Fatalf("default weak points missing: %v", data.WeakPoints)
	}

	data.ProgressNotes = "keep going"
	raw, _ := data.Encode()
	if err := repo.UpdateData(dbc, "u1", raw); err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
	again, err := repo.GetOrCreate(dbc, "u1")
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if types.DecodeData(again.Data).ProgressNotes != "keep going" {
		t.Fatalf("GetOrCreate overwrote existing data")
	}
}

func TestProfileRepo_LevelAndDataWritesAreDisjoint(t *testing.T) {
	db := testutil.DB(t)
	dbc := testutil.Ctx(t)
	repo := NewProfileRepo(db, testutil.Logger(t))
	if _, err := repo.GetOrCreate(dbc, "u1"); err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	data := types.DefaultProfileData()
	data.CommonErrors = []string{"articles"}
	raw, _ := data.Encode()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); errs <- repo.UpdateLevel(dbc, "u1", "B1") }()
	go func() { defer wg.Done(); errs <- repo.UpdateData(dbc, "u1", raw) }()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	p, err := repo.Get(dbc, "u1")
	if err != nil || p == nil {
		t.Fatalf("Get: p=%v err=%v", p, err)
	}
	if p.Level == nil || *p.Level != "B1" {
		t.Fatalf("level lost: %v", p.Level)
	}
	if got := types.DecodeData(p.Data).CommonErrors; len(got) != 1 || got[0] != "articles" {
		t.Fatalf("profile_data lost: %v", got)
	}
}
