// Package catalog manages incident categories and their subcategories.
package catalog

import (
	"context"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// Repository defines the interface for category storage.
type Repository interface {
	// Create stores a category with its subcategories and fills ID and timestamps.
	Create(ctx context.Context, category *domain.Category) error
	Get(ctx context.Context, id string) (*domain.Category, error)
	List(ctx context.Context, filter Filter) ([]*domain.Category, error)
	// Mutate applies fn to the locked category and stores its fields and
	// subcategory list. Concurrent mutations of one category are serialized.
	Mutate(ctx context.Context, id string, fn func(c *domain.Category) error) (*domain.Category, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// Filter represents filter criteria for listing categories.
type Filter struct {
	IncludeArchived bool
}
