package content

import "testing"

func TestLoadDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Topics) != 6 {
		t.Fatalf("topics=%d", len(c.Topics))
	}
	if c.Topics[0].ID != "daily_life" {
		t.Fatalf("order not preserved: first=%q", c.Topics[0].ID)
	}
	tr, ok := c.Topic("travel")
	if !ok || tr.LabelEN != "Travel" || tr.LabelZH == "" {
		t.Fatalf("travel=%+v ok=%v", tr, ok)
	}
	if _, ok := c.Topic("nope"); ok {
		t.Fatalf("unknown topic resolved")
	}
	for _, d := range []string{"grammar", "naturalness", "vocabulary", "sentence_structure"} {
		if !c.IsDimension(d) {
			t.Fatalf("missing dimension %q", d)
		}
	}
}

func TestParse_RejectsDuplicates(t *testing.T) {
	raw := []byte("topics:\n  - id: a\n  - id: a\nissue_dimensions:\n  - id: grammar\n")
	if _, err := Parse(raw); err == nil {
		t.Fatalf("expected duplicate topic error")
	}
}
