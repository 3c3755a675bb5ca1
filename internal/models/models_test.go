package models

import (
	"testing"
	"time"
)

func trainingFixture() *Training {
	return &Training{
		ID:    "t1",
		Title: "Onboarding",
		Slug:  "onboarding",
		Steps: []TrainingStep{
			{ID: "a", Title: "Welcome", Duration: 5, Position: 0},
			{ID: "b", Title: "Tools", Duration: 10, Position: 1},
			{ID: "c", Title: "Wrap up", Duration: 3, Position: 2},
		},
	}
}

func TestTrainingProgress(t *testing.T) {
	t.Run("No Completions", func(t *testing.T) {
		p := NewTrainingProgress(trainingFixture(), nil)

		if p.Total != 3 || p.Completed != 0 || p.Percent != 0 {
			t.Errorf("unexpected progress %+v", p)
		}
		if p.NextStep == nil || p.NextStep.ID != "a" {
			t.Errorf("expected next step a, got %+v", p.NextStep)
		}
		if p.Done || p.Started() {
			t.Error("training should be neither done nor started")
		}
	})

	t.Run("Partial Completion Skips Ahead", func(t *testing.T) {
		p := NewTrainingProgress(trainingFixture(), map[string]bool{"a": true, "c": true})

		if p.Completed != 2 || p.Percent != 66 {
			t.Errorf("expected 2 completed at 66%%, got %d at %d%%", p.Completed, p.Percent)
		}
		if p.NextStep == nil || p.NextStep.ID != "b" {
			t.Errorf("expected next step b, got %+v", p.NextStep)
		}
		if !p.IsComplete("c") || p.IsComplete("b") {
			t.Error("IsComplete disagrees with completions")
		}
	})

	t.Run("Stale Step IDs Ignored", func(t *testing.T) {
		p := NewTrainingProgress(trainingFixture(), map[string]bool{"a": true, "removed": true})

		if p.Completed != 1 {
			t.Errorf("expected removed step to be ignored, got %d completed", p.Completed)
		}
	})

	t.Run("Done", func(t *testing.T) {
		p := NewTrainingProgress(trainingFixture(), map[string]bool{"a": true, "b": true, "c": true})

		if !p.Done || p.Percent != 100 || p.NextStep != nil {
			t.Errorf("expected finished training, got %+v", p)
		}
	})

	t.Run("Empty Training", func(t *testing.T) {
		p := NewTrainingProgress(&Training{ID: "empty"}, map[string]bool{"x": true})

		if p.Done || p.Percent != 0 || p.NextStep != nil {
			t.Errorf("empty training should never be done, got %+v", p)
		}
	})
}

func TestTraining(t *testing.T) {
	tr := trainingFixture()

	if got := tr.TotalDuration(); got != 18 {
		t.Errorf("expected 18 minutes, got %d", got)
	}
	if _, ok := tr.Step("b"); !ok {
		t.Error("expected step b to be found")
	}
	if _, ok := tr.Step("zzz"); ok {
		t.Error("unexpected step found")
	}

	tr.OwnerID = "u1"
	if err := tr.Validate(); err != nil {
		t.Errorf("expected valid training, got %v", err)
	}
	tr.Steps = append(tr.Steps, TrainingStep{ID: "d"})
	if err := tr.Validate(); err == nil {
		t.Error("expected untitled step to fail validation")
	}
}

func TestResource(t *testing.T) {
	r := &Resource{Title: "Guide", Slug: "guide", OwnerID: "u1"}
	if err := r.Validate(); err == nil {
		t.Error("expected error without link or file")
	}

	r.URL = "https://example.com/guide.pdf"
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid resource, got %v", err)
	}
	if r.Link() != r.URL {
		t.Errorf("expected link to fall back to URL")
	}

	r.FileURL = "/files/resources/guide.pdf"
	if r.Link() != r.FileURL {
		t.Errorf("expected file URL to win")
	}

	r.Tags = []string{"go", "web"}
	if !r.HasTag("web") || r.HasTag("rust") {
		t.Error("HasTag disagrees with tags")
	}
}

func TestUser(t *testing.T) {
	u := NewUser("  Ada@Example.COM ", " Ada ")
	if u.Email != "ada@example.com" || u.Name != "Ada" {
		t.Errorf("expected normalized user, got %q %q", u.Email, u.Name)
	}
	if err := u.Validate(); err != nil {
		t.Errorf("expected valid user, got %v", err)
	}

	u.Name = ""
	if u.DisplayName() != "ada" {
		t.Errorf("expected display name fallback, got %q", u.DisplayName())
	}

	if err := NewUser("not-an-email", "").Validate(); err == nil {
		t.Error("expected invalid email error")
	}
}

func TestSession(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Error("session should still be valid")
	}
	if !s.Expired(now.Add(time.Minute)) {
		t.Error("session should expire at ExpiresAt")
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"post", "resource", "training"} {
		if _, err := ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseKind("video"); err == nil {
		t.Error("expected unknown kind error")
	}
}
