package tasks

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/repositories"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/storage"
	tu "github.com/desertthunder/trainhub/internal/testing"
)

// recorder is a publisher that keeps every change.
type recorder struct {
	mu      sync.Mutex
	changes []events.Change
}

func (r *recorder) Publish(c events.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) tables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tables := make([]string, 0, len(r.changes))
	for _, c := range r.changes {
		tables = append(tables, c.Table)
	}
	return tables
}

func (r *recorder) last() events.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return events.Change{}
	}
	return r.changes[len(r.changes)-1]
}

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

type fixture struct {
	db     *sql.DB
	cms    *tu.MockContentService
	cache  *repositories.ContentCacheRepository
	store  *storage.DiskStore
	events *recorder
	lib    *Library
	alice  *models.User
	bob    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	store, err := storage.NewDiskStore(t.TempDir(), "/files", 1<<20)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	f := &fixture{
		db:     db,
		cms:    &tu.MockContentService{},
		cache:  repositories.NewContentCacheRepository(db),
		store:  store,
		events: &recorder{},
	}
	f.lib = NewLibrary(LibraryOpts{
		CMS:       f.cms,
		Cache:     f.cache,
		Resources: repositories.NewResourceRepository(db),
		Trainings: repositories.NewTrainingRepository(db),
		Favorites: repositories.NewFavoriteRepository(db),
		Progress:  repositories.NewProgressRepository(db),
		Store:     store,
		Events:    f.events,
		Logger:    shared.NewLogger(nil),
	})

	users := repositories.NewUserRepository(db)
	create := func(email string) *models.User {
		user := models.NewUser(email, "Test User")
		if err := users.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		return user
	}
	f.alice = create("alice@example.com")
	f.bob = create("bob@example.com")
	return f
}

func cmsPosts() []models.Post {
	return []models.Post{
		{ID: "post-1", Title: "Older", Slug: "older", PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "post-2", Title: "Newer", Slug: "newer", PublishedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func cmsResources() []models.Resource {
	return []models.Resource{
		{
			ID: "res-1", Title: "Safety Checklist", Slug: "safety-checklist", Description: "Before every shift",
			Tags: []string{"safety", "onboarding"}, URL: "https://example.com/checklist.pdf",
			PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Source: models.SourceCMS,
		},
		{
			ID: "res-2", Title: "Forklift Basics", Slug: "forklift-basics", Description: "Operating a forklift",
			Tags: []string{"equipment"}, URL: "https://example.com/forklift",
			PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Source: models.SourceCMS,
		},
	}
}

func cmsTraining() models.Training {
	return models.Training{
		ID: "train-1", Title: "Onboarding", Slug: "onboarding", Source: models.SourceCMS,
		Steps: []models.TrainingStep{
			{ID: "s1", Title: "Welcome", Position: 0},
			{ID: "s2", Title: "Tour", Position: 1},
		},
	}
}
