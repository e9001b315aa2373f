package incidents

import (
	"context"
	"fmt"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
)

// Scope selects a role-specific incident view.
type Scope string

// Scopes.
const (
	ScopeReported   Scope = "reported"
	ScopeAssigned   Scope = "assigned"
	ScopeUnassigned Scope = "unassigned"
	ScopeAll        Scope = "all"
	ScopeRecent     Scope = "recent"
)

// IsValid checks if the scope is a known value.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeReported, ScopeAssigned, ScopeUnassigned, ScopeAll, ScopeRecent:
		return true
	}
	return false
}

// ListInput holds listing options.
type ListInput struct {
	Scope    Scope
	Statuses []domain.IncidentStatus
	Category *string
	Limit    int
}

// ScopeFilter translates a scope into a store filter for the session user.
func (s *Service) ScopeFilter(session domain.Session, input ListInput) (Filter, error) {
	filter := Filter{
		Statuses: input.Statuses,
		Category: input.Category,
		Limit:    input.Limit,
	}

	for _, st := range input.Statuses {
		if !st.IsValid() {
			return Filter{}, fmt.Errorf("%w: unknown status %q", ErrValidation, st)
		}
	}

	userID := session.UserID
	switch input.Scope {
	case ScopeReported:
		filter.ReporterID = &userID
	case ScopeAssigned:
		filter.AssignedTo = &userID
	case ScopeUnassigned:
		if err := s.policy.Authorize(session, domain.CapViewAll); err != nil {
			return Filter{}, err
		}
		filter.Unassigned = true
		if len(filter.Statuses) == 0 {
			filter.Statuses = []domain.IncidentStatus{domain.IncidentStatusOpen, domain.IncidentStatusPendingReview}
		}
	case ScopeAll:
		if err := s.policy.Authorize(session, domain.CapViewAll); err != nil {
			return Filter{}, err
		}
	case ScopeRecent:
		if err := s.policy.Authorize(session, domain.CapViewAll); err != nil {
			return Filter{}, err
		}
		if filter.Limit <= 0 {
			filter.Limit = s.recent
		}
	default:
		return Filter{}, fmt.Errorf("%w: %q", ErrInvalidScope, input.Scope)
	}

	if userID == "" && (input.Scope == ScopeReported || input.Scope == ScopeAssigned) {
		return Filter{}, fmt.Errorf("%w: anonymous session", access.ErrPermissionDenied)
	}

	return filter, nil
}

// List returns incidents in the requested scope, newest first.
func (s *Service) List(ctx context.Context, session domain.Session, input ListInput) ([]*domain.Incident, error) {
	filter, err := s.ScopeFilter(session, input)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, filter)
}

// Query runs a prepared filter against the store.
func (s *Service) Query(ctx context.Context, filter Filter) ([]*domain.Incident, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) ([]*domain.Incident, error) {
		return s.repo.List(ctx, filter)
	})
}
