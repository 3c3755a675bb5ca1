package tasks

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/trainhub/internal/events"
	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/services"
	"github.com/desertthunder/trainhub/internal/shared"
	"github.com/desertthunder/trainhub/internal/storage"
)

// LibraryOpts holds the dependencies of a [Library]. Nil fields are allowed:
// without a CMS only cached and user authored content is served, and without
// a cache CMS errors are returned as is.
type LibraryOpts struct {
	CMS       services.ContentService
	Cache     ContentCache
	Resources ResourceStore
	Trainings TrainingStore
	Favorites FavoriteStore
	Progress  ProgressStore
	Store     storage.Store
	Events    events.Publisher
	Logger    *log.Logger
}

// Library is the dashboard service: it merges CMS content with user authored
// resources and trainings and layers favorites and progress on top.
type Library struct {
	cms       services.ContentService
	cache     ContentCache
	resources ResourceStore
	trainings TrainingStore
	favorites FavoriteStore
	progress  ProgressStore
	store     storage.Store
	events    events.Publisher
	logger    *log.Logger
}

// NewLibrary creates a [Library] from opts.
func NewLibrary(opts LibraryOpts) *Library {
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Library{
		cms:       opts.CMS,
		cache:     opts.Cache,
		resources: opts.Resources,
		trainings: opts.Trainings,
		favorites: opts.Favorites,
		progress:  opts.Progress,
		store:     opts.Store,
		events:    opts.Events,
		logger:    opts.Logger,
	}
}

// ResourceFilter narrows a resource listing.
type ResourceFilter struct {
	Tags    []string // every tag must be present
	Query   string   // case-insensitive substring of title or description
	OwnerID string   // only resources authored by this user
}

// Match reports whether r passes the filter. Tags are compared after normalization.
func (f ResourceFilter) Match(r *models.Resource) bool {
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	for _, tag := range shared.NormalizeTags(f.Tags) {
		if !r.HasTag(tag) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(r.Title), q) && !strings.Contains(strings.ToLower(r.Description), q) {
			return false
		}
	}
	return true
}

// ResourceInput carries the editable fields of a user authored resource.
// File is optional; when set it is stored and replaces any earlier upload.
type ResourceInput struct {
	Title       string
	Description string
	URL         string
	Category    string
	Tags        []string
	File        io.Reader
	FileName    string
	RemoveFile  bool
}

// TrainingInput carries the editable fields of a user authored training.
// Steps with an ID update the existing step; steps without one are added.
type TrainingInput struct {
	Title       string
	Description string
	ImageURL    string
	Tags        []string
	Steps       []models.TrainingStep
}

// FavoriteItem is a favorite resolved to its content.
type FavoriteItem struct {
	Kind     models.Kind
	ID       string
	Title    string
	Slug     string
	Link     string
	Post     *models.Post
	Resource *models.Resource
	Training *models.Training
}

// Dashboard is the landing page data for one user. Errors holds messages of
// sections that failed to load; the other sections are still filled.
type Dashboard struct {
	Posts      []models.Post
	Favorites  []FavoriteItem
	InProgress []models.TrainingSummary
	Errors     []string
}

func listWithFallback[T any](ctx context.Context, l *Library, kind models.Kind, live func(context.Context) ([]T, error)) ([]T, error) {
	var liveErr error
	if l.cms != nil {
		items, err := live(ctx)
		if err == nil {
			return items, nil
		}
		if !shouldFallback(err) || l.cache == nil {
			return nil, err
		}
		liveErr = err
	} else if l.cache == nil {
		return []T{}, nil
	}

	docs, err := l.cache.List(kind)
	if err != nil {
		return nil, errors.Join(liveErr, err)
	}
	if liveErr != nil && len(docs) == 0 {
		return nil, liveErr
	}
	if liveErr != nil {
		l.logger.Warn("CMS unavailable, serving cached content", "kind", kind, "error", liveErr)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			l.logger.Warn("skipping unreadable cached document", "kind", kind, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func getWithFallback[T any](ctx context.Context, l *Library, kind models.Kind, slug string, live func(context.Context, string) (*T, error)) (*T, error) {
	var liveErr error
	if l.cms != nil {
		item, err := live(ctx, slug)
		if err == nil {
			return item, nil
		}
		if !shouldFallback(err) || l.cache == nil {
			return nil, err
		}
		liveErr = err
	} else if l.cache == nil {
		return nil, fmt.Errorf("%s %s: %w", kind, slug, shared.ErrNotFound)
	}

	doc, err := l.cache.Get(kind, slug)
	if err != nil {
		if liveErr != nil {
			return nil, liveErr
		}
		return nil, err
	}

	var item T
	if err := json.Unmarshal(doc, &item); err != nil {
		return nil, fmt.Errorf("failed to decode cached %s: %w", kind, err)
	}
	if liveErr != nil {
		l.logger.Warn("CMS unavailable, serving cached content", "kind", kind, "slug", slug, "error", liveErr)
	}
	return &item, nil
}

func (l *Library) cmsResources(ctx context.Context) ([]models.Resource, error) {
	return listWithFallback(ctx, l, models.KindResource, func(ctx context.Context) ([]models.Resource, error) {
		return l.cms.Resources(ctx)
	})
}

func (l *Library) cmsTrainings(ctx context.Context) ([]models.Training, error) {
	return listWithFallback(ctx, l, models.KindTraining, func(ctx context.Context) ([]models.Training, error) {
		return l.cms.Trainings(ctx)
	})
}

func (l *Library) cmsResource(ctx context.Context, slug string) (*models.Resource, error) {
	return getWithFallback(ctx, l, models.KindResource, slug, func(ctx context.Context, slug string) (*models.Resource, error) {
		return l.cms.Resource(ctx, slug)
	})
}

func (l *Library) cmsTraining(ctx context.Context, slug string) (*models.Training, error) {
	return getWithFallback(ctx, l, models.KindTraining, slug, func(ctx context.Context, slug string) (*models.Training, error) {
		return l.cms.Training(ctx, slug)
	})
}

// Posts returns blog posts, newest first.
func (l *Library) Posts(ctx context.Context) ([]models.Post, error) {
	posts, err := listWithFallback(ctx, l, models.KindPost, func(ctx context.Context) ([]models.Post, error) {
		return l.cms.Posts(ctx)
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return posts, nil
}

// Post returns one blog post.
func (l *Library) Post(ctx context.Context, slug string) (*models.Post, error) {
	return getWithFallback(ctx, l, models.KindPost, slug, func(ctx context.Context, slug string) (*models.Post, error) {
		return l.cms.Post(ctx, slug)
	})
}

// Resources returns CMS and user authored resources matching filter, newest first.
func (l *Library) Resources(ctx context.Context, filter ResourceFilter) ([]models.Resource, error) {
	var all []models.Resource

	if filter.OwnerID == "" {
		fromCMS, err := l.cmsResources(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, fromCMS...)
	}

	if l.resources != nil {
		own, err := l.resources.List(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list user resources: %w", err)
		}
		for _, r := range own {
			all = append(all, *r)
		}
	}

	out := make([]models.Resource, 0, len(all))
	for i := range all {
		if filter.Match(&all[i]) {
			out = append(out, all[i])
		}
	}

	slices.SortStableFunc(out, func(a, b models.Resource) int {
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return out, nil
}

// Resource returns a resource by slug, user authored first, then the CMS.
func (l *Library) Resource(ctx context.Context, slug string) (*models.Resource, error) {
	if l.resources != nil {
		r, err := l.resources.GetBySlug(slug)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return l.cmsResource(ctx, slug)
}

// Trainings returns CMS and user authored trainings ordered by title.
func (l *Library) Trainings(ctx context.Context) ([]models.Training, error) {
	all, err := l.cmsTrainings(ctx)
	if err != nil {
		return nil, err
	}

	if l.trainings != nil {
		own, err := l.trainings.List(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list user trainings: %w", err)
		}
		for _, t := range own {
			all = append(all, *t)
		}
	}

	slices.SortStableFunc(all, func(a, b models.Training) int {
		return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	})
	return all, nil
}

// Training returns a training by slug, user authored first, then the CMS.
func (l *Library) Training(ctx context.Context, slug string) (*models.Training, error) {
	if l.trainings != nil {
		t, err := l.trainings.GetBySlug(slug)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return l.cmsTraining(ctx, slug)
}

// Tags returns every tag used by a resource with its usage count, most used first.
// Titles come from the CMS taxonomy when known.
func (l *Library) Tags(ctx context.Context) ([]models.Tag, error) {
	resources, err := l.Resources(ctx, ResourceFilter{})
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string)
	taxonomy, err := listWithFallback(ctx, l, KindTag, func(ctx context.Context) ([]models.Tag, error) {
		return l.cms.Tags(ctx)
	})
	if err != nil {
		l.logger.Warn("failed to load tag titles", "error", err)
	}
	for _, t := range taxonomy {
		titles[t.Slug] = t.Title
	}

	counts := make(map[string]int)
	for _, r := range resources {
		for _, tag := range r.Tags {
			counts[tag]++
		}
	}

	tags := make([]models.Tag, 0, len(counts))
	for slug, n := range counts {
		title := titles[slug]
		if title == "" {
			title = slug
		}
		tags = append(tags, models.Tag{Title: title, Slug: slug, Count: n})
	}

	slices.SortFunc(tags, func(a, b models.Tag) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Slug, b.Slug)
	})
	return tags, nil
}

// Dashboard collects the latest posts, the user's favorites and trainings in progress.
// A failing section is reported in [Dashboard.Errors] instead of failing the page.
func (l *Library) Dashboard(ctx context.Context, userID string) *Dashboard {
	d := &Dashboard{}

	posts, err := l.Posts(ctx)
	if err != nil {
		l.logger.Error("dashboard posts failed", "error", err)
		d.Errors = append(d.Errors, fmt.Sprintf("Could not load posts: %v", err))
	}
	d.Posts = posts

	if userID == "" {
		return d
	}

	favorites, err := l.Favorites(ctx, userID)
	if err != nil {
		l.logger.Error("dashboard favorites failed", "error", err)
		d.Errors = append(d.Errors, fmt.Sprintf("Could not load favorites: %v", err))
	}
	d.Favorites = favorites

	inProgress, err := l.InProgress(ctx, userID)
	if err != nil {
		l.logger.Error("dashboard progress failed", "error", err)
		d.Errors = append(d.Errors, fmt.Sprintf("Could not load trainings: %v", err))
	}
	d.InProgress = inProgress

	return d
}

// ToggleFavorite flips a favorite and returns whether the item is now a favorite.
func (l *Library) ToggleFavorite(ctx context.Context, userID string, kind models.Kind, itemID string) (bool, error) {
	if userID == "" {
		return false, shared.ErrNotAuthenticated
	}
	if _, err := models.ParseKind(string(kind)); err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if itemID == "" {
		return false, fmt.Errorf("%w: item id is required", shared.ErrInvalidInput)
	}

	on, err := l.favorites.Toggle(userID, kind, itemID)
	if err != nil {
		return false, err
	}

	action := events.ActionDelete
	if on {
		action = events.ActionInsert
	}
	l.events.Publish(events.Change{Table: "favorites", Action: action, ID: string(kind) + ":" + itemID, UserID: userID})
	return on, nil
}

// FavoriteKeys returns the set of the user's favorites, for marking items in listings.
func (l *Library) FavoriteKeys(userID string) (map[models.FavoriteKey]bool, error) {
	if userID == "" || l.favorites == nil {
		return map[models.FavoriteKey]bool{}, nil
	}
	return l.favorites.Keys(userID)
}

// Favorites returns the user's favorites resolved to content, most recent first.
// Favorites whose item no longer exists are skipped.
func (l *Library) Favorites(ctx context.Context, userID string) ([]FavoriteItem, error) {
	favorites, err := l.favorites.List(userID, "")
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 {
		return []FavoriteItem{}, nil
	}

	need := make(map[models.Kind]bool)
	for _, f := range favorites {
		need[f.Kind] = true
	}

	posts := make(map[string]*models.Post)
	if need[models.KindPost] {
		list, err := l.Posts(ctx)
		if err != nil {
			return nil, err
		}
		for i := range list {
			posts[list[i].ID] = &list[i]
		}
	}

	resources := make(map[string]*models.Resource)
	if need[models.KindResource] {
		list, err := l.Resources(ctx, ResourceFilter{})
		if err != nil {
			return nil, err
		}
		for i := range list {
			resources[list[i].ID] = &list[i]
		}
	}

	trainings := make(map[string]*models.Training)
	if need[models.KindTraining] {
		list, err := l.Trainings(ctx)
		if err != nil {
			return nil, err
		}
		for i := range list {
			trainings[list[i].ID] = &list[i]
		}
	}

	items := make([]FavoriteItem, 0, len(favorites))
	for _, f := range favorites {
		item := FavoriteItem{Kind: f.Kind, ID: f.ItemID}
		switch f.Kind {
		case models.KindPost:
			p, ok := posts[f.ItemID]
			if !ok {
				continue
			}
			item.Post, item.Title, item.Slug, item.Link = p, p.Title, p.Slug, "/blog/"+p.Slug
		case models.KindResource:
			r, ok := resources[f.ItemID]
			if !ok {
				continue
			}
			item.Resource, item.Title, item.Slug, item.Link = r, r.Title, r.Slug, "/resources/"+r.Slug
		case models.KindTraining:
			t, ok := trainings[f.ItemID]
			if !ok {
				continue
			}
			item.Training, item.Title, item.Slug, item.Link = t, t.Title, t.Slug, "/trainings/"+t.Slug
		default:
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (l *Library) progressFor(userID string, t *models.Training) (models.TrainingProgress, error) {
	completed, err := l.progress.Completed(userID, t.ID)
	if err != nil {
		return models.TrainingProgress{}, err
	}
	return models.NewTrainingProgress(t, completed), nil
}

// Progress returns the training and the user's progress through it.
func (l *Library) Progress(ctx context.Context, userID, slug string) (*models.Training, models.TrainingProgress, error) {
	t, err := l.Training(ctx, slug)
	if err != nil {
		return nil, models.TrainingProgress{}, err
	}
	if userID == "" {
		return t, models.NewTrainingProgress(t, nil), nil
	}
	p, err := l.progressFor(userID, t)
	return t, p, err
}

// stepOf loads the training and checks the step belongs to it.
func (l *Library) stepOf(ctx context.Context, userID, slug, stepID string) (*models.Training, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}
	t, err := l.Training(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, ok := t.Step(stepID); !ok {
		return nil, fmt.Errorf("step %s of %s: %w", stepID, slug, shared.ErrNotFound)
	}
	return t, nil
}

func (l *Library) publishProgress(userID, trainingID string, action events.Action) {
	l.events.Publish(events.Change{Table: "step_completions", Action: action, ID: trainingID, UserID: userID})
}

// CompleteStep marks a step done and returns the updated progress.
func (l *Library) CompleteStep(ctx context.Context, userID, slug, stepID string) (models.TrainingProgress, error) {
	t, err := l.stepOf(ctx, userID, slug, stepID)
	if err != nil {
		return models.TrainingProgress{}, err
	}
	if err := l.progress.Complete(userID, t.ID, stepID); err != nil {
		return models.TrainingProgress{}, err
	}
	l.publishProgress(userID, t.ID, events.ActionInsert)
	return l.progressFor(userID, t)
}

// UncompleteStep marks a step not done and returns the updated progress.
func (l *Library) UncompleteStep(ctx context.Context, userID, slug, stepID string) (models.TrainingProgress, error) {
	t, err := l.stepOf(ctx, userID, slug, stepID)
	if err != nil {
		return models.TrainingProgress{}, err
	}
	if err := l.progress.Uncomplete(userID, t.ID, stepID); err != nil {
		return models.TrainingProgress{}, err
	}
	l.publishProgress(userID, t.ID, events.ActionDelete)
	return l.progressFor(userID, t)
}

// ToggleStep flips a step's completion and returns the updated progress.
func (l *Library) ToggleStep(ctx context.Context, userID, slug, stepID string) (models.TrainingProgress, error) {
	t, err := l.stepOf(ctx, userID, slug, stepID)
	if err != nil {
		return models.TrainingProgress{}, err
	}
	current, err := l.progressFor(userID, t)
	if err != nil {
		return models.TrainingProgress{}, err
	}
	if current.IsComplete(stepID) {
		return l.UncompleteStep(ctx, userID, slug, stepID)
	}
	return l.CompleteStep(ctx, userID, slug, stepID)
}

// ResetTraining clears the user's progress through a training.
func (l *Library) ResetTraining(ctx context.Context, userID, slug string) error {
	if userID == "" {
		return shared.ErrNotAuthenticated
	}
	t, err := l.Training(ctx, slug)
	if err != nil {
		return err
	}
	if err := l.progress.Reset(userID, t.ID); err != nil {
		return err
	}
	l.publishProgress(userID, t.ID, events.ActionDelete)
	return nil
}

// ProgressReport returns every training the user started, with progress, most
// recently active first. Trainings that no longer exist are skipped.
func (l *Library) ProgressReport(ctx context.Context, userID string) ([]models.TrainingSummary, error) {
	ids, err := l.progress.ListTrainings(userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.TrainingSummary{}, nil
	}

	trainings, err := l.Trainings(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Training, len(trainings))
	for i := range trainings {
		byID[trainings[i].ID] = &trainings[i]
	}

	summaries := make([]models.TrainingSummary, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			continue
		}
		p, err := l.progressFor(userID, t)
		if err != nil {
			return nil, err
		}
		if !p.Started() {
			continue
		}
		summaries = append(summaries, models.TrainingSummary{Training: *t, Progress: p})
	}
	return summaries, nil
}

// InProgress returns started trainings the user has not finished.
func (l *Library) InProgress(ctx context.Context, userID string) ([]models.TrainingSummary, error) {
	report, err := l.ProgressReport(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.TrainingSummary, 0, len(report))
	for _, s := range report {
		if !s.Progress.Done {
			out = append(out, s)
		}
	}
	return out, nil
}

// ownedResource loads a user authored resource the user may edit.
func (l *Library) ownedResource(ctx context.Context, userID, slug string) (*models.Resource, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}
	r, err := l.resources.GetBySlug(slug)
	if errors.Is(err, shared.ErrNotFound) {
		if _, cmsErr := l.cmsResource(ctx, slug); cmsErr == nil {
			return nil, fmt.Errorf("%w: CMS resources are read-only", shared.ErrForbidden)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if r.OwnerID != userID {
		return nil, fmt.Errorf("%w: resource belongs to another user", shared.ErrForbidden)
	}
	return r, nil
}

func (l *Library) putFile(ctx context.Context, in ResourceInput) (storage.Object, error) {
	if l.store == nil {
		return storage.Object{}, fmt.Errorf("%w: file uploads are not configured", shared.ErrServiceUnavailable)
	}
	return l.store.Put(ctx, storage.ObjectKey("resources", in.FileName), in.File)
}

func (l *Library) deleteFile(ctx context.Context, key string) {
	if key == "" || l.store == nil {
		return
	}
	if err := l.store.Delete(ctx, key); err != nil {
		l.logger.Warn("failed to delete stored file", "key", key, "error", err)
	}
}

func applyResourceInput(r *models.Resource, in ResourceInput) {
	r.Title = strings.TrimSpace(in.Title)
	r.Description = strings.TrimSpace(in.Description)
	r.URL = strings.TrimSpace(in.URL)
	r.Tags = shared.NormalizeTags(in.Tags)
	r.Category = nil
	if c := strings.TrimSpace(in.Category); c != "" {
		r.Category = &models.Category{Title: c, Slug: shared.Slugify(c)}
	}
}

// CreateResource stores a new user authored resource and its optional file.
func (l *Library) CreateResource(ctx context.Context, userID string, in ResourceInput) (*models.Resource, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}

	r := &models.Resource{OwnerID: userID}
	applyResourceInput(r, in)

	if in.File != nil {
		obj, err := l.putFile(ctx, in)
		if err != nil {
			return nil, err
		}
		r.FileKey, r.FileURL = obj.Key, obj.URL
	}

	if err := l.resources.Create(r); err != nil {
		l.deleteFile(ctx, r.FileKey)
		return nil, err
	}

	l.events.Publish(events.Change{Table: "resources", Action: events.ActionInsert, ID: r.ID})
	return r, nil
}

// UpdateResource edits a resource the user owns. A new file replaces the old one,
// which is deleted once the update is stored.
func (l *Library) UpdateResource(ctx context.Context, userID, slug string, in ResourceInput) (*models.Resource, error) {
	r, err := l.ownedResource(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	oldKey := r.FileKey
	applyResourceInput(r, in)
	r.Slug = ""

	if in.RemoveFile {
		r.FileKey, r.FileURL = "", ""
	}
	if in.File != nil {
		obj, err := l.putFile(ctx, in)
		if err != nil {
			return nil, err
		}
		r.FileKey, r.FileURL = obj.Key, obj.URL
	}

	if err := l.resources.Update(r); err != nil {
		if r.FileKey != oldKey {
			l.deleteFile(ctx, r.FileKey)
		}
		return nil, err
	}

	if r.FileKey != oldKey {
		l.deleteFile(ctx, oldKey)
	}

	l.events.Publish(events.Change{Table: "resources", Action: events.ActionUpdate, ID: r.ID})
	return r, nil
}

// DeleteResource removes a resource the user owns along with its file.
func (l *Library) DeleteResource(ctx context.Context, userID, slug string) error {
	r, err := l.ownedResource(ctx, userID, slug)
	if err != nil {
		return err
	}
	if err := l.resources.Delete(r.ID); err != nil {
		return err
	}
	l.deleteFile(ctx, r.FileKey)

	l.events.Publish(events.Change{Table: "resources", Action: events.ActionDelete, ID: r.ID})
	return nil
}

// ownedTraining loads a user authored training the user may edit.
func (l *Library) ownedTraining(ctx context.Context, userID, slug string) (*models.Training, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}
	t, err := l.trainings.GetBySlug(slug)
	if errors.Is(err, shared.ErrNotFound) {
		if _, cmsErr := l.cmsTraining(ctx, slug); cmsErr == nil {
			return nil, fmt.Errorf("%w: CMS trainings are read-only", shared.ErrForbidden)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if t.OwnerID != userID {
		return nil, fmt.Errorf("%w: training belongs to another user", shared.ErrForbidden)
	}
	return t, nil
}

func applyTrainingInput(t *models.Training, in TrainingInput) {
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.ImageURL = strings.TrimSpace(in.ImageURL)
	t.Tags = shared.NormalizeTags(in.Tags)
	t.Steps = make([]models.TrainingStep, 0, len(in.Steps))
	for _, s := range in.Steps {
		s.Title = strings.TrimSpace(s.Title)
		t.Steps = append(t.Steps, s)
	}
}

func (l *Library) publishTraining(t *models.Training, action events.Action) {
	l.events.Publish(events.Change{Table: "trainings", Action: action, ID: t.ID})
}

// CreateTraining stores a new user authored training with its steps.
func (l *Library) CreateTraining(ctx context.Context, userID string, in TrainingInput) (*models.Training, error) {
	if userID == "" {
		return nil, shared.ErrNotAuthenticated
	}

	t := &models.Training{OwnerID: userID}
	applyTrainingInput(t, in)
	for i := range t.Steps {
		t.Steps[i].ID = ""
	}

	if err := l.trainings.Create(t); err != nil {
		return nil, err
	}
	l.publishTraining(t, events.ActionInsert)
	return t, nil
}

// UpdateTraining edits a training the user owns, including its steps.
func (l *Library) UpdateTraining(ctx context.Context, userID, slug string, in TrainingInput) (*models.Training, error) {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	applyTrainingInput(t, in)
	t.Slug = ""
	if err := l.trainings.Update(t); err != nil {
		return nil, err
	}
	l.publishTraining(t, events.ActionUpdate)
	return t, nil
}

// DeleteTraining removes a training the user owns.
func (l *Library) DeleteTraining(ctx context.Context, userID, slug string) error {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return err
	}
	if err := l.trainings.Delete(t.ID); err != nil {
		return err
	}
	l.publishTraining(t, events.ActionDelete)
	return nil
}

// AddStep appends a step to a training the user owns.
func (l *Library) AddStep(ctx context.Context, userID, slug string, step models.TrainingStep) (*models.Training, error) {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	step.Title = strings.TrimSpace(step.Title)
	if err := l.trainings.AddStep(t.ID, &step); err != nil {
		return nil, err
	}
	return l.reloadTraining(t)
}

// UpdateStep edits one step of a training the user owns.
func (l *Library) UpdateStep(ctx context.Context, userID, slug string, step models.TrainingStep) (*models.Training, error) {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	step.Title = strings.TrimSpace(step.Title)
	if err := l.trainings.UpdateStep(t.ID, &step); err != nil {
		return nil, err
	}
	return l.reloadTraining(t)
}

// RemoveStep deletes one step of a training the user owns.
func (l *Library) RemoveStep(ctx context.Context, userID, slug, stepID string) (*models.Training, error) {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := l.trainings.RemoveStep(t.ID, stepID); err != nil {
		return nil, err
	}
	return l.reloadTraining(t)
}

// ReorderSteps reorders the steps of a training the user owns.
func (l *Library) ReorderSteps(ctx context.Context, userID, slug string, stepIDs []string) (*models.Training, error) {
	t, err := l.ownedTraining(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := l.trainings.ReorderSteps(t.ID, stepIDs); err != nil {
		return nil, err
	}
	return l.reloadTraining(t)
}

func (l *Library) reloadTraining(t *models.Training) (*models.Training, error) {
	updated, err := l.trainings.Get(t.ID)
	if err != nil {
		return nil, err
	}
	l.publishTraining(updated, events.ActionUpdate)
	return updated, nil
}
