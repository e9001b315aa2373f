// Package messages implements per-incident discussion threads.
package messages

import (
	"context"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// Repository defines the interface for message storage.
type Repository interface {
	// Create stores a message and fills its ID.
	Create(ctx context.Context, msg *domain.Message) error
	// List returns the thread of an incident, oldest first.
	List(ctx context.Context, incidentID string) ([]*domain.Message, error)
}
