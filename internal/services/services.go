// package services defines interface ContentService for reading content from the headless CMS
package services

import (
	"context"

	"github.com/desertthunder/trainhub/internal/models"
)

// ContentService defines read access to the CMS content types rendered by the dashboard.
type ContentService interface {
	// Posts returns published blog posts, newest first.
	Posts(ctx context.Context) ([]models.Post, error)

	// Post returns one post by slug.
	Post(ctx context.Context, slug string) (*models.Post, error)

	// Resources returns every published resource.
	Resources(ctx context.Context) ([]models.Resource, error)

	// Resource returns one resource by slug.
	Resource(ctx context.Context, slug string) (*models.Resource, error)

	// Trainings returns every training with its ordered steps.
	Trainings(ctx context.Context) ([]models.Training, error)

	// Training returns one training by slug.
	Training(ctx context.Context, slug string) (*models.Training, error)

	// Tags returns the tag taxonomy.
	Tags(ctx context.Context) ([]models.Tag, error)

	// Categories returns the category taxonomy.
	Categories(ctx context.Context) ([]models.Category, error)

	// Name returns the name of the service
	Name() string
}
