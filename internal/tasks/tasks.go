package tasks

import (
	"errors"
	"time"

	"github.com/desertthunder/trainhub/internal/models"
	"github.com/desertthunder/trainhub/internal/shared"
)

// KindTag names cached tag documents. Tags are synced but cannot be favorited.
const KindTag models.Kind = "tag"

// ContentCache stores raw CMS documents by kind (implemented by repositories.ContentCacheRepository).
type ContentCache interface {
	Put(kind models.Kind, id, slug string, data []byte) error
	Get(kind models.Kind, slug string) ([]byte, error)
	List(kind models.Kind) ([][]byte, error)
	Prune(kind models.Kind, keep []string) (int64, error)
}

// ResourceStore persists user authored resources (implemented by repositories.ResourceRepository).
type ResourceStore interface {
	Create(res *models.Resource) error
	Get(id string) (*models.Resource, error)
	GetBySlug(slug string) (*models.Resource, error)
	Update(res *models.Resource) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Resource, error)
}

// TrainingStore persists user authored trainings (implemented by repositories.TrainingRepository).
type TrainingStore interface {
	Create(t *models.Training) error
	Get(id string) (*models.Training, error)
	GetBySlug(slug string) (*models.Training, error)
	Update(t *models.Training) error
	Delete(id string) error
	List(criteria map[string]any) ([]*models.Training, error)
	AddStep(trainingID string, step *models.TrainingStep) error
	UpdateStep(trainingID string, step *models.TrainingStep) error
	RemoveStep(trainingID, stepID string) error
	ReorderSteps(trainingID string, stepIDs []string) error
}

// FavoriteStore persists favorites (implemented by repositories.FavoriteRepository).
type FavoriteStore interface {
	Toggle(userID string, kind models.Kind, itemID string) (bool, error)
	List(userID string, kind models.Kind) ([]models.Favorite, error)
	Keys(userID string) (map[models.FavoriteKey]bool, error)
}

// ProgressStore persists step completion (implemented by repositories.ProgressRepository).
type ProgressStore interface {
	Complete(userID, trainingID, stepID string) error
	Uncomplete(userID, trainingID, stepID string) error
	Completed(userID, trainingID string) (map[string]bool, error)
	Reset(userID, trainingID string) error
	ListTrainings(userID string) ([]string, error)
}

// KindError records a content kind that failed to sync.
type KindError struct {
	Kind  models.Kind
	Error error
}

// SyncResult summarizes a sync run.
type SyncResult struct {
	Counts   map[models.Kind]int   // Documents cached per kind
	Pruned   map[models.Kind]int64 // Stale documents removed per kind
	Errors   []KindError           // Kinds that failed
	Duration time.Duration
}

// Failed reports whether any kind failed.
func (r *SyncResult) Failed() bool { return len(r.Errors) > 0 }

// shouldFallback reports whether a CMS error means the cached copy should be served.
func shouldFallback(err error) bool {
	return errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrAPIRequest)
}
