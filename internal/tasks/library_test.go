package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLibraryContent(t *testing.T) {
	ctx := context.Background()
	unavailable := fmt.Errorf("%w: cms down", shared.ErrServiceUnavailable)

	t.Run("posts newest first", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Posts", mock.Anything).Return(cmsPosts(), nil)

		posts, err := f.lib.Posts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "newer", posts[0].Slug)
	})

	t.Run("falls back to the cache", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Posts", mock.Anything).Return([]models.Post(nil), unavailable)
		f.cms.On("Post", mock.Anything, "cached").Return(nil, unavailable)
		require.NoError(t, f.cache.Put(models.KindPost, "p1", "cached", []byte(`{"_id":"p1","title":"Cached","slug":"cached"}`)))

		posts, err := f.lib.Posts(ctx)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "Cached", posts[0].Title)

		post, err := f.lib.Post(ctx, "cached")
		require.NoError(t, err)
		assert.Equal(t, "p1", post.ID)
	})

	t.Run("empty cache returns the CMS error", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Posts", mock.Anything).Return([]models.Post(nil), unavailable)

		_, err := f.lib.Posts(ctx)
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})

	t.Run("not found does not fall back", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Post", mock.Anything, "stale").Return(nil, fmt.Errorf("post: %w", shared.ErrNotFound))
		require.NoError(t, f.cache.Put(models.KindPost, "p1", "stale", []byte(`{"_id":"p1"}`)))

		_, err := f.lib.Post(ctx, "stale")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("without a CMS serves the cache", func(t *testing.T) {
		f := newFixture(t)
		lib := NewLibrary(LibraryOpts{Cache: f.cache})
		require.NoError(t, f.cache.Put(models.KindPost, "p1", "cached", []byte(`{"_id":"p1","slug":"cached"}`)))

		posts, err := lib.Posts(ctx)
		require.NoError(t, err)
		assert.Len(t, posts, 1)
	})

	t.Run("merges and filters resources", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Resources", mock.Anything).Return(cmsResources(), nil)

		_, err := f.lib.CreateResource(ctx, f.alice.ID, ResourceInput{
			Title: "Ladder Safety", URL: "https://example.com/ladders", Tags: []string{"Safety"},
		})
		require.NoError(t, err)

		all, err := f.lib.Resources(ctx, ResourceFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "ladder-safety", all[0].Slug, "user resources are newest")

		safety, err := f.lib.Resources(ctx, ResourceFilter{Tags: []string{"SAFETY"}})
		require.NoError(t, err)
		assert.Len(t, safety, 2)

		both, err := f.lib.Resources(ctx, ResourceFilter{Tags: []string{"safety", "onboarding"}})
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, "safety-checklist", both[0].Slug)

		query, err := f.lib.Resources(ctx, ResourceFilter{Query: "FORKLIFT"})
		require.NoError(t, err)
		require.Len(t, query, 1)
		assert.Equal(t, "res-2", query[0].ID)

		mine, err := f.lib.Resources(ctx, ResourceFilter{OwnerID: f.alice.ID})
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("tags with counts", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Resources", mock.Anything).Return(cmsResources(), nil)
		f.cms.On("Tags", mock.Anything).Return([]models.Tag{{Title: "Safety", Slug: "safety"}}, nil)

		tags, err := f.lib.Tags(ctx)
		require.NoError(t, err)
		require.Len(t, tags, 3)
		assert.Equal(t, "equipment", tags[0].Slug)
		for _, tag := range tags {
			if tag.Slug == "safety" {
				assert.Equal(t, "Safety", tag.Title)
				assert.Equal(t, 1, tag.Count)
			}
		}
	})

	t.Run("user training shadows CMS slug lookup", func(t *testing.T) {
		f := newFixture(t)
		created, err := f.lib.CreateTraining(ctx, f.alice.ID, TrainingInput{
			Title: "Night Shift", Steps: []models.TrainingStep{{Title: "Keys"}, {Title: "Alarm"}},
		})
		require.NoError(t, err)

		got, err := f.lib.Training(ctx, "night-shift")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Len(t, got.Steps, 2)
		f.cms.AssertNotCalled(t, "Training", mock.Anything, "night-shift")
	})
}

func TestLibraryOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("only the owner may edit", func(t *testing.T) {
		f := newFixture(t)
		res, err := f.lib.CreateResource(ctx, f.alice.ID, ResourceInput{Title: "Mine", URL: "https://example.com"})
		require.NoError(t, err)

		_, err = f.lib.UpdateResource(ctx, f.bob.ID, res.Slug, ResourceInput{Title: "Stolen", URL: "https://example.com"})
		assert.ErrorIs(t, err, shared.ErrForbidden)

		err = f.lib.DeleteResource(ctx, f.bob.ID, res.Slug)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		_, err = f.lib.CreateResource(ctx, "", ResourceInput{Title: "Anon", URL: "https://example.com"})
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("CMS content is read-only", func(t *testing.T) {
		f := newFixture(t)
		guide := cmsResources()[0]
		f.cms.On("Resource", mock.Anything, guide.Slug).Return(&guide, nil)
		training := cmsTraining()
		f.cms.On("Training", mock.Anything, training.Slug).Return(&training, nil)

		err := f.lib.DeleteResource(ctx, f.alice.ID, guide.Slug)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		_, err = f.lib.AddStep(ctx, f.alice.ID, training.Slug, models.TrainingStep{Title: "Extra"})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("missing everywhere is not found", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Resource", mock.Anything, "nope").Return(nil, fmt.Errorf("resource: %w", shared.ErrNotFound))

		_, err := f.lib.UpdateResource(ctx, f.alice.ID, "nope", ResourceInput{Title: "x", URL: "https://example.com"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("validation errors surface", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.lib.CreateResource(ctx, f.alice.ID, ResourceInput{Title: "No link"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestLibraryFiles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.lib.CreateResource(ctx, f.alice.ID, ResourceInput{
		Title: "Handbook", File: strings.NewReader("first edition"), FileName: "handbook.txt",
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.FileKey)
	assert.True(t, strings.HasPrefix(res.FileURL, "/files/resources/"))
	firstKey := res.FileKey

	res, err = f.lib.UpdateResource(ctx, f.alice.ID, res.Slug, ResourceInput{
		Title: "Handbook", File: strings.NewReader("second edition"), FileName: "handbook.txt",
	})
	require.NoError(t, err)
	assert.NotEqual(t, firstKey, res.FileKey)

	_, err = f.store.Open(firstKey)
	assert.ErrorIs(t, err, shared.ErrNotFound, "replaced file is deleted")

	rc, err := f.store.Open(res.FileKey)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "second edition", string(data))

	require.NoError(t, f.lib.DeleteResource(ctx, f.alice.ID, res.Slug))
	_, err = f.store.Open(res.FileKey)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.Equal(t, []string{"resources", "resources", "resources"}, f.events.tables())
	assert.Equal(t, events.ActionDelete, f.events.last().Action)
}

func TestLibraryProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	training := cmsTraining()
	f.cms.On("Training", mock.Anything, "onboarding").Return(&training, nil)
	f.cms.On("Trainings", mock.Anything).Return([]models.Training{training}, nil)

	t.Run("complete and toggle", func(t *testing.T) {
		p, err := f.lib.CompleteStep(ctx, f.alice.ID, "onboarding", "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Completed)
		assert.Equal(t, 50, p.Percent)
		require.NotNil(t, p.NextStep)
		assert.Equal(t, "s2", p.NextStep.ID)

		change := f.events.last()
		assert.Equal(t, "step_completions", change.Table)
		assert.Equal(t, f.alice.ID, change.UserID)

		p, err = f.lib.ToggleStep(ctx, f.alice.ID, "onboarding", "s1")
		require.NoError(t, err)
		assert.Equal(t, 0, p.Completed)

		p, err = f.lib.ToggleStep(ctx, f.alice.ID, "onboarding", "s1")
		require.NoError(t, err)
		assert.True(t, p.IsComplete("s1"))
	})

	t.Run("unknown step", func(t *testing.T) {
		_, err := f.lib.CompleteStep(ctx, f.alice.ID, "onboarding", "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = f.lib.CompleteStep(ctx, "", "onboarding", "s1")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("in progress and report", func(t *testing.T) {
		inProgress, err := f.lib.InProgress(ctx, f.alice.ID)
		require.NoError(t, err)
		require.Len(t, inProgress, 1)
		assert.Equal(t, "onboarding", inProgress[0].Training.Slug)

		_, err = f.lib.CompleteStep(ctx, f.alice.ID, "onboarding", "s2")
		require.NoError(t, err)

		inProgress, err = f.lib.InProgress(ctx, f.alice.ID)
		require.NoError(t, err)
		assert.Empty(t, inProgress, "finished trainings are not in progress")

		report, err := f.lib.ProgressReport(ctx, f.alice.ID)
		require.NoError(t, err)
		require.Len(t, report, 1)
		assert.True(t, report[0].Progress.Done)

		other, err := f.lib.ProgressReport(ctx, f.bob.ID)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, f.lib.ResetTraining(ctx, f.alice.ID, "onboarding"))

		_, p, err := f.lib.Progress(ctx, f.alice.ID, "onboarding")
		require.NoError(t, err)
		assert.False(t, p.Started())
	})
}

func TestLibrarySteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	training, err := f.lib.CreateTraining(ctx, f.alice.ID, TrainingInput{
		Title: "Closing Up", Tags: []string{"Night"},
		Steps: []models.TrainingStep{{Title: "Lights"}, {Title: "Doors"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"night"}, training.Tags)

	training, err = f.lib.AddStep(ctx, f.alice.ID, training.Slug, models.TrainingStep{Title: "Alarm"})
	require.NoError(t, err)
	require.Len(t, training.Steps, 3)

	ids := []string{training.Steps[2].ID, training.Steps[0].ID, training.Steps[1].ID}
	training, err = f.lib.ReorderSteps(ctx, f.alice.ID, training.Slug, ids)
	require.NoError(t, err)
	assert.Equal(t, "Alarm", training.Steps[0].Title)

	_, err = f.lib.ReorderSteps(ctx, f.alice.ID, training.Slug, ids[:2])
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	step := training.Steps[1]
	step.Title = "Turn off lights"
	training, err = f.lib.UpdateStep(ctx, f.alice.ID, training.Slug, step)
	require.NoError(t, err)
	assert.Equal(t, "Turn off lights", training.Steps[1].Title)

	training, err = f.lib.RemoveStep(ctx, f.alice.ID, training.Slug, step.ID)
	require.NoError(t, err)
	assert.Len(t, training.Steps, 2)

	_, err = f.lib.AddStep(ctx, f.bob.ID, training.Slug, models.TrainingStep{Title: "Sneaky"})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, f.lib.DeleteTraining(ctx, f.alice.ID, training.Slug))
	f.cms.On("Training", mock.Anything, training.Slug).Return(nil, fmt.Errorf("training: %w", shared.ErrNotFound))
	_, err = f.lib.Training(ctx, training.Slug)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLibraryFavorites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.cms.On("Posts", mock.Anything).Return(cmsPosts(), nil)
	f.cms.On("Resources", mock.Anything).Return(cmsResources(), nil)

	on, err := f.lib.ToggleFavorite(ctx, f.alice.ID, models.KindPost, "post-1")
	require.NoError(t, err)
	assert.True(t, on)

	change := f.events.last()
	assert.Equal(t, "favorites", change.Table)
	assert.Equal(t, events.ActionInsert, change.Action)
	assert.True(t, change.VisibleTo(f.alice.ID))
	assert.False(t, change.VisibleTo(f.bob.ID))

	_, err = f.lib.ToggleFavorite(ctx, f.alice.ID, models.KindResource, "res-2")
	require.NoError(t, err)
	_, err = f.lib.ToggleFavorite(ctx, f.alice.ID, models.KindResource, "vanished")
	require.NoError(t, err)

	items, err := f.lib.Favorites(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2, "favorites of missing items are skipped")
	links := []string{items[0].Link, items[1].Link}
	assert.ElementsMatch(t, []string{"/blog/older", "/resources/forklift-basics"}, links)

	keys, err := f.lib.FavoriteKeys(f.alice.ID)
	require.NoError(t, err)
	assert.True(t, keys[models.FavoriteKey{Kind: models.KindPost, ItemID: "post-1"}])

	on, err = f.lib.ToggleFavorite(ctx, f.alice.ID, models.KindPost, "post-1")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = f.lib.ToggleFavorite(ctx, f.alice.ID, "tag", "safety")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.lib.ToggleFavorite(ctx, "", models.KindPost, "post-1")
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}

func TestLibraryDashboard(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Posts", mock.Anything).Return(cmsPosts(), nil)

		d := f.lib.Dashboard(ctx, "")
		assert.Len(t, d.Posts, 2)
		assert.Empty(t, d.Favorites)
		assert.Empty(t, d.Errors)
	})

	t.Run("failing section is reported", func(t *testing.T) {
		f := newFixture(t)
		f.cms.On("Posts", mock.Anything).Return([]models.Post(nil), fmt.Errorf("%w: boom", shared.ErrAPIRequest))
		training := cmsTraining()
		f.cms.On("Training", mock.Anything, "onboarding").Return(&training, nil)
		f.cms.On("Trainings", mock.Anything).Return([]models.Training{training}, nil)

		_, err := f.lib.CompleteStep(ctx, f.alice.ID, "onboarding", "s1")
		require.NoError(t, err)

		d := f.lib.Dashboard(ctx, f.alice.ID)
		assert.Empty(t, d.Posts)
		require.Len(t, d.Errors, 1)
		assert.Contains(t, d.Errors[0], "posts")
		assert.Len(t, d.InProgress, 1)
	})
}
