// package models defines the data model for the training dashboard
package models

import "fmt"

// Validator is implemented by records that check their own invariants before persistence.
type Validator interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Validator] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Source tells where a content record comes from.
type Source string

const (
	SourceCMS  Source = "cms"
	SourceUser Source = "user"
)

// Kind names the content types a user can favorite.
type Kind string

const (
	KindPost     Kind = "post"
	KindResource Kind = "resource"
	KindTraining Kind = "training"
)

// ParseKind validates a kind name from a URL or form.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPost, KindResource, KindTraining:
		return k, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}
