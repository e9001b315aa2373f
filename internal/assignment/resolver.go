// Package assignment matches incidents to available responders.
package assignment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
)

// UserDirectory looks up responder profiles.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	Find(ctx context.Context, filter identity.UserFilter) ([]*domain.User, error)
}

// IncidentService is the part of the lifecycle engine the resolver drives.
type IncidentService interface {
	Get(ctx context.Context, session domain.Session, id string) (*domain.Incident, error)
	Assign(ctx context.Context, session domain.Session, id string, assignee incidents.Assignee) (*domain.Incident, error)
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
}

// Candidate is a responder offered for assignment.
type Candidate struct {
	ID           string              `json:"id"`
	FullName     string              `json:"full_name"`
	Email        string              `json:"email"`
	Department   string              `json:"department"`
	Skills       []string            `json:"skills"`
	Availability domain.Availability `json:"availability"`
	Location     *domain.Location    `json:"location"`
	DistanceKm   *float64            `json:"distance_km"`
}

// CandidateFilter narrows the responder pool.
type CandidateFilter struct {
	// IncidentID enables distance ordering from the incident location.
	IncidentID    string
	AvailableOnly bool
	Skill         string
	Query         string
}

// Resolver lists candidates and performs assignments.
type Resolver struct {
	users     UserDirectory
	incidents IncidentService
	policy    Authorizer
}

// NewResolver creates a new assignment resolver.
func NewResolver(users UserDirectory, incidents IncidentService, policy Authorizer) *Resolver {
	return &Resolver{
		users:     users,
		incidents: incidents,
		policy:    policy,
	}
}

// ListCandidates returns responders matching filter. When the incident has a
// location, candidates are ordered by distance with unknown distances last;
// otherwise by name.
func (r *Resolver) ListCandidates(ctx context.Context, session domain.Session, filter CandidateFilter) ([]Candidate, error) {
	if err := r.policy.Authorize(session, domain.CapAssign); err != nil {
		return nil, err
	}

	var origin *domain.Location
	if filter.IncidentID != "" {
		inc, err := r.incidents.Get(ctx, session, filter.IncidentID)
		if err != nil {
			return nil, err
		}
		origin = inc.Location
	}

	userFilter := identity.UserFilter{Roles: []domain.Role{domain.RoleResponder}}
	if filter.AvailableOnly {
		available := domain.AvailabilityAvailable
		userFilter.Availability = &available
	}

	users, err := r.users.Find(ctx, userFilter)
	if err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}

	skill := strings.ToLower(strings.TrimSpace(filter.Skill))
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	candidates := make([]Candidate, 0, len(users))
	for _, u := range users {
		skills := u.EffectiveSkills()
		if skill != "" && !hasSkill(skills, skill) {
			continue
		}
		if query != "" && !matches(u, skills, query) {
			continue
		}

		c := Candidate{
			ID:           u.ID,
			FullName:     u.FullName,
			Email:        u.Email,
			Department:   u.Department,
			Skills:       skills,
			Availability: u.Availability,
			Location:     u.Location,
		}
		if origin != nil && u.Location != nil {
			d := DistanceKm(*origin, *u.Location)
			c.DistanceKm = &d
		}
		candidates = append(candidates, c)
	}

	sortCandidates(candidates)
	return candidates, nil
}

// Assign binds an available responder to the incident and starts work in
// one lifecycle mutation. Eligibility is checked up front and again against
// the profile locked by the mutation.
func (r *Resolver) Assign(ctx context.Context, session domain.Session, incidentID, responderID string) (*domain.Incident, error) {
	if err := r.policy.Authorize(session, domain.CapAssign); err != nil {
		return nil, err
	}
	if strings.TrimSpace(responderID) == "" {
		return nil, fmt.Errorf("%w: responder id is required", incidents.ErrValidation)
	}

	responder, err := r.users.GetUserByID(ctx, responderID)
	if err != nil {
		return nil, err
	}
	if err := eligible(responder); err != nil {
		return nil, err
	}

	return r.incidents.Assign(ctx, session, incidentID, incidents.Assignee{
		ID:    responder.ID,
		Name:  responder.DisplayName(),
		Role:  responder.Role,
		Check: eligible,
	})
}

func eligible(u *domain.User) error {
	if u.Role != domain.RoleResponder {
		return fmt.Errorf("%w: %s is a %s", ErrNotAvailable, u.DisplayName(), u.Role)
	}
	if u.Availability != domain.AvailabilityAvailable {
		return fmt.Errorf("%w: %s is %s", ErrNotAvailable, u.DisplayName(), u.Availability)
	}
	return nil
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.DistanceKm != nil && b.DistanceKm != nil:
			if *a.DistanceKm != *b.DistanceKm {
				return *a.DistanceKm < *b.DistanceKm
			}
		case a.DistanceKm != nil:
			return true
		case b.DistanceKm != nil:
			return false
		}
		if a.FullName != b.FullName {
			return a.FullName < b.FullName
		}
		return a.ID < b.ID
	})
}

func hasSkill(skills []string, skill string) bool {
	for _, s := range skills {
		if strings.ToLower(s) == skill {
			return true
		}
	}
	return false
}

func matches(u *domain.User, skills []string, query string) bool {
	if strings.Contains(strings.ToLower(u.FullName), query) {
		return true
	}
	for _, s := range skills {
		if strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}
