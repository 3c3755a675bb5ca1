package repositories

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// createUser inserts a user for tests that need an owner.
func createUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test User")
	if err := NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func newTestUserRepo(db *sql.DB) *UserRepository {
	repo := NewUserRepository(db)
	repo.cost = bcrypt.MinCost
	return repo
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "users")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nope"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		user := models.NewUser("Test@Example.com", "Test User")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if user.ID == "" || user.Sequence != 1 {
			t.Errorf("expected ID and sequence to be set, got %q %d", user.ID, user.Sequence)
		}
		if user.Email != "test@example.com" {
			t.Errorf("expected email to be normalized, got %s", user.Email)
		}
	})

	t.Run("Create Duplicate Email", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		createUser(t, db, "dup@example.com")

		err := repo.Create(models.NewUser("DUP@example.com", "Other"))
		if !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("Create Invalid", func(t *testing.T) {
		db := setupTestDB(t)
		err := newTestUserRepo(db).Create(models.NewUser("not-an-email", ""))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get And GetByEmail", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		user := createUser(t, db, "get@example.com")

		got, err := repo.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Email != user.Email || got.DeletedAt != nil {
			t.Errorf("unexpected user %+v", got)
		}

		byEmail, err := repo.GetByEmail(" GET@example.com ")
		if err != nil || byEmail.ID != user.ID {
			t.Errorf("expected lookup by email, got %v %v", byEmail, err)
		}

		if _, err := repo.Get("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		user := createUser(t, db, "update@example.com")

		user.Name = "Renamed"
		user.AvatarURL = "https://example.com/a.png"
		if err := repo.Update(user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		got, _ := repo.Get(user.ID)
		if got.Name != "Renamed" || got.AvatarURL != "https://example.com/a.png" {
			t.Errorf("update not persisted: %+v", got)
		}

		missing := models.NewUser("ghost@example.com", "")
		missing.ID = "ghost"
		if err := repo.Update(missing); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		user := createUser(t, db, "delete@example.com")

		sessions := NewSessionRepository(db)
		session, err := sessions.Create(user.ID, time.Hour)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if err := repo.Delete(user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected deleted user to be hidden, got %v", err)
		}
		if _, err := sessions.Get(session.Token); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected sessions to be removed, got %v", err)
		}
		if err := repo.Delete(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}

		// the email is free again after deletion
		createUser(t, db, "delete@example.com")
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		createUser(t, db, "a@example.com")
		createUser(t, db, "b@example.com")

		users, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 || users[0].Email != "a@example.com" {
			t.Errorf("unexpected users %v", users)
		}

		filtered, _ := repo.List(map[string]any{"email": "B@example.com"})
		if len(filtered) != 1 || filtered[0].Email != "b@example.com" {
			t.Errorf("unexpected filtered users %v", filtered)
		}
	})

	t.Run("Passwords", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)
		user := createUser(t, db, "pw@example.com")

		if _, err := repo.Authenticate("pw@example.com", "whatever1"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected account without password to be rejected, got %v", err)
		}

		if err := repo.SetPassword(user.ID, "short"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for short password, got %v", err)
		}
		if err := repo.SetPassword(user.ID, "correct horse"); err != nil {
			t.Fatalf("failed to set password: %v", err)
		}

		got, err := repo.Authenticate("PW@example.com", "correct horse")
		if err != nil || got.ID != user.ID {
			t.Errorf("expected authentication to succeed, got %v %v", got, err)
		}
		if got.PasswordHash == "correct horse" {
			t.Error("password should be hashed")
		}

		if _, err := repo.Authenticate("pw@example.com", "wrong password"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := repo.Authenticate("nobody@example.com", "correct horse"); !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
		}
		if err := repo.SetPassword("missing", "long enough"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Register", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)

		long := models.NewUser("long@example.com", "Long")
		err := repo.Register(long, strings.Repeat("x", MaxPasswordLength+8))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for an over-long password, got %v", err)
		}
		if _, err := repo.GetByEmail("long@example.com"); !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("rejected password must not leave an account behind, got %v", err)
		}

		retry := models.NewUser("long@example.com", "Long")
		if err := repo.Register(retry, "correct horse"); err != nil {
			t.Fatalf("expected registration to succeed after a rejected attempt, got %v", err)
		}
		if _, err := repo.Authenticate("long@example.com", "correct horse"); err != nil {
			t.Errorf("expected registered account to authenticate, got %v", err)
		}

		dup := models.NewUser("long@example.com", "Again")
		if err := repo.Register(dup, "correct horse"); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
		if dup.PasswordHash != "" {
			t.Error("expected hash to be cleared on failed insert")
		}

		if err := repo.SetPassword(retry.ID, strings.Repeat("y", MaxPasswordLength+1)); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput from SetPassword, got %v", err)
		}
	})

	t.Run("Upsert", func(t *testing.T) {
		db := setupTestDB(t)
		repo := newTestUserRepo(db)

		created, err := repo.Upsert(models.NewUser("oauth@example.com", "First"))
		if err != nil {
			t.Fatalf("failed to upsert new user: %v", err)
		}

		updated, err := repo.Upsert(&models.User{Email: "OAUTH@example.com", Name: "Second", AvatarURL: "https://x/y.png"})
		if err != nil {
			t.Fatalf("failed to upsert existing user: %v", err)
		}
		if updated.ID != created.ID || updated.Name != "Second" || updated.AvatarURL != "https://x/y.png" {
			t.Errorf("unexpected upserted user %+v", updated)
		}

		users, _ := repo.List(nil)
		if len(users) != 1 {
			t.Errorf("expected a single user, got %d", len(users))
		}
	})
}

func TestSessionRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "s@example.com")
		repo := NewSessionRepository(db)

		session, err := repo.Create(user.ID, time.Hour)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		got, err := repo.Get(session.Token)
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.UserID != user.ID || !got.ExpiresAt.After(got.CreatedAt) {
			t.Errorf("unexpected session %+v", got)
		}

		if _, err := repo.Create(user.ID, 0); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero ttl, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "s@example.com")
		repo := NewSessionRepository(db)

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return base }
		session, err := repo.Create(user.ID, time.Hour)
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		repo.now = func() time.Time { return base.Add(2 * time.Hour) }
		if _, err := repo.Get(session.Token); !errors.Is(err, shared.ErrSessionExpired) {
			t.Fatalf("expected ErrSessionExpired, got %v", err)
		}
		if _, err := repo.Get(session.Token); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected expired session to be deleted, got %v", err)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "s@example.com")
		repo := NewSessionRepository(db)

		base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		repo.now = func() time.Time { return base }
		if _, err := repo.Create(user.ID, time.Hour); err != nil {
			t.Fatal(err)
		}
		live, err := repo.Create(user.ID, 48*time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		repo.now = func() time.Time { return base.Add(24 * time.Hour) }
		n, err := repo.DeleteExpired()
		if err != nil {
			t.Fatalf("failed to delete expired sessions: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 expired session, got %d", n)
		}
		if _, err := repo.Get(live.Token); err != nil {
			t.Errorf("expected live session to remain, got %v", err)
		}

		if err := repo.Delete(live.Token); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.Get(live.Token); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestResourceRepository(t *testing.T) {
	newResource := func(owner, title string, tags ...string) *models.Resource {
		return &models.Resource{
			OwnerID:     owner,
			Title:       title,
			Description: "About " + title,
			URL:         "https://example.com/" + shared.Slugify(title),
			Tags:        tags,
		}
	}

	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewResourceRepository(db)

		res := newResource(owner.ID, "Getting Started", "Go", "Web Dev", "go")
		res.Category = &models.Category{Title: "Guides"}
		if err := repo.Create(res); err != nil {
			t.Fatalf("failed to create resource: %v", err)
		}
		if res.Slug != "getting-started" || res.Source != models.SourceUser {
			t.Errorf("unexpected resource %+v", res)
		}

		got, err := repo.GetBySlug("getting-started")
		if err != nil {
			t.Fatalf("failed to get resource: %v", err)
		}
		if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "web-dev" {
			t.Errorf("unexpected tags %v", got.Tags)
		}
		if got.Category == nil || got.Category.Slug != "guides" {
			t.Errorf("unexpected category %+v", got.Category)
		}
		if got.OwnerID != owner.ID || got.PublishedAt.IsZero() {
			t.Errorf("unexpected resource %+v", got)
		}
	})

	t.Run("Slug Conflict", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewResourceRepository(db)

		if err := repo.Create(newResource(owner.ID, "Same")); err != nil {
			t.Fatal(err)
		}
		if err := repo.Create(newResource(owner.ID, "Same")); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewResourceRepository(db)

		res := newResource(owner.ID, "No Link")
		res.URL = ""
		if err := repo.Create(res); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Update Replaces Tags", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewResourceRepository(db)

		res := newResource(owner.ID, "Editable", "a", "b")
		if err := repo.Create(res); err != nil {
			t.Fatal(err)
		}

		res.Title = "Edited"
		res.Slug = ""
		res.Tags = []string{"c"}
		if err := repo.Update(res); err != nil {
			t.Fatalf("failed to update resource: %v", err)
		}

		got, err := repo.Get(res.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Slug != "edited" || len(got.Tags) != 1 || got.Tags[0] != "c" {
			t.Errorf("unexpected resource after update %+v", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewResourceRepository(db)

		res := newResource(owner.ID, "Gone")
		if err := repo.Create(res); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(res.ID); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if _, err := repo.Get(res.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(res.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
		if err := repo.Create(newResource(owner.ID, "Gone")); err != nil {
			t.Errorf("slug of deleted resource should be reusable: %v", err)
		}
	})

	t.Run("List Filters", func(t *testing.T) {
		db := setupTestDB(t)
		alice := createUser(t, db, "alice@example.com")
		bob := createUser(t, db, "bob@example.com")
		repo := NewResourceRepository(db)

		for _, res := range []*models.Resource{
			newResource(alice.ID, "Go Basics", "go", "beginner"),
			newResource(alice.ID, "Advanced Go", "go", "advanced"),
			newResource(bob.ID, "Intro to SQL", "sql", "beginner"),
		} {
			if err := repo.Create(res); err != nil {
				t.Fatal(err)
			}
		}

		tc := []struct {
			name     string
			criteria map[string]any
			want     []string
		}{
			{"all newest first", nil, []string{"intro-to-sql", "advanced-go", "go-basics"}},
			{"owner", map[string]any{"owner": bob.ID}, []string{"intro-to-sql"}},
			{"single tag", map[string]any{"tags": []string{"Beginner"}}, []string{"intro-to-sql", "go-basics"}},
			{"tags are and-ed", map[string]any{"tags": []string{"go", "beginner"}}, []string{"go-basics"}},
			{"empty tags match all", map[string]any{"tags": []string{}}, []string{"intro-to-sql", "advanced-go", "go-basics"}},
			{"query", map[string]any{"query": "ADVANCED"}, []string{"advanced-go"}},
			{"query on description", map[string]any{"query": "about intro"}, []string{"intro-to-sql"}},
			{"no match", map[string]any{"tags": []string{"rust"}}, nil},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list: %v", err)
				}
				if len(got) != len(tt.want) {
					t.Fatalf("expected %d resources, got %d", len(tt.want), len(got))
				}
				for i, slug := range tt.want {
					if got[i].Slug != slug {
						t.Errorf("position %d: expected %s, got %s", i, slug, got[i].Slug)
					}
				}
			})
		}
	})
}

func TestTrainingRepository(t *testing.T) {
	newTraining := func(owner string, steps ...string) *models.Training {
		tr := &models.Training{OwnerID: owner, Title: "Onboarding", Tags: []string{"Team"}}
		for _, s := range steps {
			tr.Steps = append(tr.Steps, models.TrainingStep{Title: s, Duration: 5})
		}
		return tr
	}

	stepTitles := func(tr *models.Training) []string {
		var titles []string
		for i, s := range tr.Steps {
			if s.Position != i {
				return nil
			}
			titles = append(titles, s.Title)
		}
		return titles
	}

	equal := func(a, b []string) bool {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}

	t.Run("Create And Get", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		training := newTraining(owner.ID, "Read", "Watch", "Quiz")
		if err := repo.Create(training); err != nil {
			t.Fatalf("failed to create training: %v", err)
		}

		got, err := repo.GetBySlug("onboarding")
		if err != nil {
			t.Fatalf("failed to get training: %v", err)
		}
		if !equal(stepTitles(got), []string{"Read", "Watch", "Quiz"}) {
			t.Errorf("unexpected steps %+v", got.Steps)
		}
		if got.TotalDuration() != 15 || len(got.Tags) != 1 || got.Tags[0] != "team" {
			t.Errorf("unexpected training %+v", got)
		}
	})

	t.Run("Invalid Step", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		if err := repo.Create(newTraining(owner.ID, "ok", " ")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Update Keeps Step IDs", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		training := newTraining(owner.ID, "One", "Two", "Three")
		if err := repo.Create(training); err != nil {
			t.Fatal(err)
		}
		keptID := training.Steps[2].ID

		training.Steps = []models.TrainingStep{
			training.Steps[2],
			{Title: "New"},
		}
		training.Steps[0].Title = "Three (edited)"
		if err := repo.Update(training); err != nil {
			t.Fatalf("failed to update training: %v", err)
		}

		got, _ := repo.Get(training.ID)
		if !equal(stepTitles(got), []string{"Three (edited)", "New"}) {
			t.Errorf("unexpected steps %+v", got.Steps)
		}
		if got.Steps[0].ID != keptID {
			t.Error("expected existing step to keep its ID")
		}
	})

	t.Run("AddStep And RemoveStep", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		training := newTraining(owner.ID, "One", "Two")
		if err := repo.Create(training); err != nil {
			t.Fatal(err)
		}

		step := &models.TrainingStep{Title: "Three"}
		if err := repo.AddStep(training.ID, step); err != nil {
			t.Fatalf("failed to add step: %v", err)
		}
		if step.ID == "" || step.Position != 2 {
			t.Errorf("unexpected step %+v", step)
		}

		if err := repo.RemoveStep(training.ID, training.Steps[0].ID); err != nil {
			t.Fatalf("failed to remove step: %v", err)
		}

		got, _ := repo.Get(training.ID)
		if !equal(stepTitles(got), []string{"Two", "Three"}) {
			t.Errorf("expected compacted positions, got %+v", got.Steps)
		}

		if err := repo.RemoveStep(training.ID, "missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := repo.AddStep("missing", &models.TrainingStep{Title: "x"}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateStep", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		training := newTraining(owner.ID, "One")
		if err := repo.Create(training); err != nil {
			t.Fatal(err)
		}

		step := training.Steps[0]
		step.Title = "Renamed"
		step.VideoURL = "https://video.example.com/1"
		if err := repo.UpdateStep(training.ID, &step); err != nil {
			t.Fatalf("failed to update step: %v", err)
		}

		got, _ := repo.Get(training.ID)
		if got.Steps[0].Title != "Renamed" || got.Steps[0].VideoURL != step.VideoURL {
			t.Errorf("unexpected step %+v", got.Steps[0])
		}

		step.ID = "missing"
		if err := repo.UpdateStep(training.ID, &step); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ReorderSteps", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		training := newTraining(owner.ID, "A", "B", "C")
		if err := repo.Create(training); err != nil {
			t.Fatal(err)
		}
		a, b, c := training.Steps[0].ID, training.Steps[1].ID, training.Steps[2].ID

		if err := repo.ReorderSteps(training.ID, []string{c, a, b}); err != nil {
			t.Fatalf("failed to reorder: %v", err)
		}
		got, _ := repo.Get(training.ID)
		if !equal(stepTitles(got), []string{"C", "A", "B"}) {
			t.Errorf("unexpected order %+v", got.Steps)
		}

		invalid := [][]string{
			{a, b},
			{a, b, b},
			{a, b, "other"},
			{a, b, c, "extra"},
		}
		for _, ids := range invalid {
			if err := repo.ReorderSteps(training.ID, ids); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("ids %v: expected ErrInvalidInput, got %v", ids, err)
			}
		}

		got, _ = repo.Get(training.ID)
		if !equal(stepTitles(got), []string{"C", "A", "B"}) {
			t.Errorf("rejected reorder should not change order, got %+v", got.Steps)
		}
	})

	t.Run("List And Delete", func(t *testing.T) {
		db := setupTestDB(t)
		owner := createUser(t, db, "o@example.com")
		repo := NewTrainingRepository(db)

		first := newTraining(owner.ID, "One")
		first.Title = "Zeta"
		second := newTraining(owner.ID)
		second.Title = "alpha"
		second.Tags = []string{"solo"}
		for _, tr := range []*models.Training{first, second} {
			if err := repo.Create(tr); err != nil {
				t.Fatal(err)
			}
		}

		list, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 2 || list[0].Title != "alpha" || len(list[1].Steps) != 1 {
			t.Errorf("unexpected list %+v", list)
		}
		if list[0].Steps == nil {
			t.Error("expected empty, non-nil steps")
		}

		tagged, _ := repo.List(map[string]any{"tags": []string{"solo"}})
		if len(tagged) != 1 || tagged[0].ID != second.ID {
			t.Errorf("unexpected tagged list %+v", tagged)
		}

		if err := repo.Delete(first.ID); err != nil {
			t.Fatal(err)
		}
		list, _ = repo.List(map[string]any{"owner": owner.ID})
		if len(list) != 1 {
			t.Errorf("expected deleted training to be hidden, got %d", len(list))
		}
	})
}

func TestFavoriteRepository(t *testing.T) {
	t.Run("Toggle", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "f@example.com")
		repo := NewFavoriteRepository(db)

		on, err := repo.Toggle(user.ID, models.KindResource, "r1")
		if err != nil || !on {
			t.Fatalf("expected toggle on, got %v %v", on, err)
		}
		if fav, _ := repo.IsFavorite(user.ID, models.KindResource, "r1"); !fav {
			t.Error("expected favorite to persist")
		}

		on, err = repo.Toggle(user.ID, models.KindResource, "r1")
		if err != nil || on {
			t.Fatalf("expected toggle off, got %v %v", on, err)
		}
		if fav, _ := repo.IsFavorite(user.ID, models.KindResource, "r1"); fav {
			t.Error("expected favorite to be removed")
		}
	})

	t.Run("Add Is Idempotent", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "f@example.com")
		repo := NewFavoriteRepository(db)

		for range 2 {
			if err := repo.Add(user.ID, models.KindPost, "p1"); err != nil {
				t.Fatalf("failed to add: %v", err)
			}
		}
		favorites, _ := repo.List(user.ID, "")
		if len(favorites) != 1 {
			t.Errorf("expected 1 favorite, got %d", len(favorites))
		}

		if err := repo.Remove(user.ID, models.KindPost, "p1"); err != nil {
			t.Fatal(err)
		}
		if err := repo.Remove(user.ID, models.KindPost, "p1"); err != nil {
			t.Errorf("removing a missing favorite should succeed, got %v", err)
		}
	})

	t.Run("List And Keys", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "f@example.com")
		other := createUser(t, db, "g@example.com")
		repo := NewFavoriteRepository(db)

		_ = repo.Add(user.ID, models.KindPost, "p1")
		_ = repo.Add(user.ID, models.KindTraining, "t1")
		_ = repo.Add(other.ID, models.KindPost, "p2")

		posts, err := repo.List(user.ID, models.KindPost)
		if err != nil || len(posts) != 1 || posts[0].ItemID != "p1" {
			t.Errorf("unexpected posts %v %v", posts, err)
		}

		keys, err := repo.Keys(user.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(keys) != 2 || !keys[models.FavoriteKey{Kind: models.KindTraining, ItemID: "t1"}] {
			t.Errorf("unexpected keys %v", keys)
		}
	})

	t.Run("Schema Rejects Unknown Kind And User", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, db, "f@example.com")
		repo := NewFavoriteRepository(db)

		if _, err := repo.Toggle(user.ID, models.Kind("video"), "v1"); err == nil {
			t.Error("expected CHECK constraint failure")
		}
		if _, err := repo.Toggle("no-such-user", models.KindPost, "p1"); err == nil {
			t.Error("expected FOREIGN KEY failure")
		}
	})
}

func TestProgressRepository(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "p@example.com")
	repo := NewProgressRepository(db)

	for _, step := range []string{"s1", "s2", "s1"} {
		if err := repo.Complete(user.ID, "t1", step); err != nil {
			t.Fatalf("failed to complete: %v", err)
		}
	}
	if err := repo.Complete(user.ID, "t2", "x1"); err != nil {
		t.Fatal(err)
	}

	completed, err := repo.Completed(user.ID, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 2 || !completed["s1"] || !completed["s2"] {
		t.Errorf("unexpected completions %v", completed)
	}

	if err := repo.Uncomplete(user.ID, "t1", "s2"); err != nil {
		t.Fatal(err)
	}
	completed, _ = repo.Completed(user.ID, "t1")
	if len(completed) != 1 || completed["s2"] {
		t.Errorf("expected s2 to be uncompleted, got %v", completed)
	}

	ids, err := repo.ListTrainings(user.ID)
	if err != nil || len(ids) != 2 {
		t.Errorf("expected 2 trainings, got %v %v", ids, err)
	}

	if err := repo.Reset(user.ID, "t1"); err != nil {
		t.Fatal(err)
	}
	completed, _ = repo.Completed(user.ID, "t1")
	if len(completed) != 0 {
		t.Errorf("expected reset to clear completions, got %v", completed)
	}
	ids, _ = repo.ListTrainings(user.ID)
	if len(ids) != 1 || ids[0] != "t2" {
		t.Errorf("unexpected trainings after reset %v", ids)
	}
}

func TestContentCacheRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContentCacheRepository(db)

	last, err := repo.LastSync(models.KindPost)
	if err != nil || !last.IsZero() {
		t.Errorf("expected zero last sync, got %v %v", last, err)
	}

	if err := repo.Put(models.KindPost, "p1", "hello", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Put(models.KindPost, "p1", "hello", []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Put(models.KindPost, "p2", "again", []byte(`{"v":3}`)); err != nil {
		t.Fatal(err)
	}
	if err := repo.Put(models.KindPost, "", "x", nil); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}

	data, err := repo.Get(models.KindPost, "hello")
	if err != nil || string(data) != `{"v":2}` {
		t.Errorf("expected replaced document, got %s %v", data, err)
	}
	if _, err := repo.Get(models.KindResource, "hello"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other kind, got %v", err)
	}

	docs, _ := repo.List(models.KindPost)
	if len(docs) != 2 || string(docs[0]) != `{"v":3}` {
		t.Errorf("expected documents ordered by slug, got %s", docs)
	}

	if last, err := repo.LastSync(models.KindPost); err != nil || last.IsZero() {
		t.Errorf("expected last sync time, got %v %v", last, err)
	}

	n, err := repo.Prune(models.KindPost, []string{"p2"})
	if err != nil || n != 1 {
		t.Errorf("expected 1 pruned, got %d %v", n, err)
	}
	n, _ = repo.Prune(models.KindPost, nil)
	if n != 1 {
		t.Errorf("expected empty keep list to clear kind, got %d", n)
	}
}
