// Package identity manages user profiles and resolves auth tokens into sessions.
package identity

import (
	"context"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// Repository defines the interface for identity data access.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	// MutateUser applies fn to the locked profile and stores the result.
	// Concurrent mutations of the same profile are serialized.
	MutateUser(ctx context.Context, id string, fn func(user *domain.User) error) (*domain.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error)
}

// UserFilter restricts ListUsers. Zero values match everything.
type UserFilter struct {
	Roles        []domain.Role
	Availability *domain.Availability
}
