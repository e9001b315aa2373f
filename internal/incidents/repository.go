package incidents

import (
	"context"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// MutateFunc edits a locked incident in place. It returns the history entry to
// append, or nil when the edit does not touch the audit trail. Returning an
// error aborts the mutation without writing anything.
type MutateFunc func(inc *domain.Incident) (*domain.StatusHistoryEntry, error)

// AssignFunc is a MutateFunc that also sees the profile of the responder
// being assigned. The profile stays share-locked until the mutation commits.
type AssignFunc func(inc *domain.Incident, responder *domain.User) (*domain.StatusHistoryEntry, error)

// Repository defines the interface for incident storage.
type Repository interface {
	// Create stores a new incident with its initial history and fills ID,
	// Version and timestamps.
	Create(ctx context.Context, inc *domain.Incident) error
	Get(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter Filter) ([]*domain.Incident, error)
	// Mutate performs an atomic read-modify-write of one incident. Concurrent
	// mutations of the same incident are serialized.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Incident, error)
	// MutateWithResponder is Mutate with the responder's profile read under
	// a share lock in the same transaction.
	MutateWithResponder(ctx context.Context, id, responderID string, fn AssignFunc) (*domain.Incident, error)
}

// Filter holds filter options for listing incidents.
type Filter struct {
	ReporterID   *string
	AssignedTo   *string
	Statuses     []domain.IncidentStatus
	Unassigned   bool
	Category     *string
	CreatedSince *time.Time
	Limit        int
}
