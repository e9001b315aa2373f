// Package notifications keeps per-user notification feeds and fans incident
// activity out to them.
package notifications

import (
	"context"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// Repository defines the interface for notifications data access.
type Repository interface {
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead fails with ErrNotificationNotFound when the notification does
	// not exist or belongs to another user.
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// DeleteReadBefore removes read notifications created before cutoff.
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Directory resolves recipients by role.
type Directory interface {
	ListUserIDsByRole(ctx context.Context, roles ...domain.Role) ([]string, error)
}
