// CMS implementation of [ContentService]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
	"golang.org/x/oauth2"
)

const (
	apiHost = "api.sanity.io"
	cdnHost = "apicdn.sanity.io"

	// Width used for list and card images.
	cardImageWidth = 800
)

const (
	categoryProjection = `{_id, title, "slug": slug.current}`

	postProjection = `{
		_id, title, "slug": slug.current, excerpt, "body": pt::text(body), publishedAt,
		"image": mainImage.asset._ref, "author": author->name,
		"categories": categories[]->` + categoryProjection + `
	}`

	resourceProjection = `{
		_id, title, "slug": slug.current, description, url, "fileUrl": file.asset->url,
		"image": image.asset._ref, "tags": tags[]->slug.current,
		"category": category->` + categoryProjection + `, publishedAt
	}`

	trainingProjection = `{
		_id, title, "slug": slug.current, description, "image": image.asset._ref,
		"tags": tags[]->slug.current,
		"steps": steps[]{_key, title, "body": pt::text(body), videoUrl, duration}
	}`

	QueryPosts      = `*[_type == "post" && defined(slug.current)] | order(publishedAt desc) ` + postProjection
	QueryPost       = `*[_type == "post" && slug.current == $slug][0] ` + postProjection
	QueryResources  = `*[_type == "resource" && defined(slug.current)] | order(publishedAt desc) ` + resourceProjection
	QueryResource   = `*[_type == "resource" && slug.current == $slug][0] ` + resourceProjection
	QueryTrainings  = `*[_type == "training" && defined(slug.current)] | order(title asc) ` + trainingProjection
	QueryTraining   = `*[_type == "training" && slug.current == $slug][0] ` + trainingProjection
	QueryTags       = `*[_type == "tag"] | order(title asc) {_id, title, "slug": slug.current}`
	QueryCategories = `*[_type == "category"] | order(title asc) ` + categoryProjection
)

// CMSService implements [ContentService] over the CMS query API.
type CMSService struct {
	client *QueryClient
	images *ImageBuilder
}

// NewCMSService creates a CMS client from config.
//
// Requests go through base when it is non-nil; its timeout defaults to the
// configured one. When a token is configured, requests are authenticated with
// an [oauth2] static bearer token layered over base's transport.
func NewCMSService(config shared.CMSConfig, base *http.Client) (*CMSService, error) {
	if config.ProjectID == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("%w: cms.project_id is required", shared.ErrMissingConfig)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		host := apiHost
		if config.UseCDN && config.Token == "" {
			host = cdnHost
		}
		baseURL = fmt.Sprintf("https://%s.%s", config.ProjectID, host)
	}

	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if base != nil {
		c := *base
		if c.Timeout == 0 {
			c.Timeout = timeout
		}
		httpClient = &c
	}
	if config.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"})
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		timeout := httpClient.Timeout
		httpClient = oauth2.NewClient(ctx, src)
		httpClient.Timeout = timeout
	}

	return NewCMSServiceWithClient(
		NewQueryClient(baseURL, config.APIVersion, config.Dataset, httpClient),
		NewImageBuilder(config.CDNURL, config.ProjectID, config.Dataset),
	), nil
}

// NewCMSServiceWithClient creates a CMS service from an existing query client.
func NewCMSServiceWithClient(client *QueryClient, images *ImageBuilder) *CMSService {
	if images == nil {
		images = NewImageBuilder("", "", "")
	}
	return &CMSService{client: client, images: images}
}

// Name returns the service name.
func (s *CMSService) Name() string { return "CMS" }

// Client exposes the underlying query client for raw queries.
func (s *CMSService) Client() *QueryClient { return s.client }

// Images exposes the image URL builder.
func (s *CMSService) Images() *ImageBuilder { return s.images }

// Posts returns published posts, newest first.
func (s *CMSService) Posts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := s.list(ctx, QueryPosts, &posts); err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	for i := range posts {
		s.preparePost(&posts[i])
	}
	return posts, nil
}

// Post returns one post by slug.
func (s *CMSService) Post(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := s.client.Query(ctx, QueryPost, map[string]any{"slug": slug}, &post); err != nil {
		return nil, fmt.Errorf("failed to fetch post %q: %w", slug, err)
	}
	s.preparePost(&post)
	return &post, nil
}

// Resources returns published resources with normalized tags.
func (s *CMSService) Resources(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	if err := s.list(ctx, QueryResources, &resources); err != nil {
		return nil, fmt.Errorf("failed to fetch resources: %w", err)
	}
	for i := range resources {
		s.prepareResource(&resources[i])
	}
	return resources, nil
}

// Resource returns one resource by slug.
func (s *CMSService) Resource(ctx context.Context, slug string) (*models.Resource, error) {
	var resource models.Resource
	if err := s.client.Query(ctx, QueryResource, map[string]any{"slug": slug}, &resource); err != nil {
		return nil, fmt.Errorf("failed to fetch resource %q: %w", slug, err)
	}
	s.prepareResource(&resource)
	return &resource, nil
}

// Trainings returns trainings with their steps in order.
func (s *CMSService) Trainings(ctx context.Context) ([]models.Training, error) {
	var trainings []models.Training
	if err := s.list(ctx, QueryTrainings, &trainings); err != nil {
		return nil, fmt.Errorf("failed to fetch trainings: %w", err)
	}
	for i := range trainings {
		s.prepareTraining(&trainings[i])
	}
	return trainings, nil
}

// Training returns one training by slug.
func (s *CMSService) Training(ctx context.Context, slug string) (*models.Training, error) {
	var training models.Training
	if err := s.client.Query(ctx, QueryTraining, map[string]any{"slug": slug}, &training); err != nil {
		return nil, fmt.Errorf("failed to fetch training %q: %w", slug, err)
	}
	s.prepareTraining(&training)
	return &training, nil
}

// Tags returns the tag taxonomy.
func (s *CMSService) Tags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if err := s.list(ctx, QueryTags, &tags); err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}
	return tags, nil
}

// Categories returns the category taxonomy.
func (s *CMSService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.list(ctx, QueryCategories, &categories); err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, nil
}

// list runs a list query; an empty (null) result is an empty list, not an error.
func (s *CMSService) list(ctx context.Context, query string, out any) error {
	err := s.client.Query(ctx, query, nil, out)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	return err
}

func (s *CMSService) preparePost(p *models.Post) {
	if p.ImageRef != "" {
		p.ImageURL = s.images.URL(p.ImageRef, cardImageWidth, 0)
	}
}

func (s *CMSService) prepareResource(r *models.Resource) {
	r.Source = models.SourceCMS
	r.Tags = shared.NormalizeTags(r.Tags)
	if r.ImageRef != "" {
		r.ImageURL = s.images.URL(r.ImageRef, cardImageWidth, 0)
	}
}

func (s *CMSService) prepareTraining(t *models.Training) {
	t.Source = models.SourceCMS
	t.Tags = shared.NormalizeTags(t.Tags)
	for i := range t.Steps {
		t.Steps[i].Position = i
	}
	if t.ImageRef != "" {
		t.ImageURL = s.images.URL(t.ImageRef, cardImageWidth, 0)
	}
}
