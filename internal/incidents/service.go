// Package incidents owns incident records, their audit history and the
// lifecycle rules that move them between statuses.
package incidents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/evidence"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
)

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
	Can(role domain.Role, capability domain.Capability) bool
}

// EvidenceVerifier checks that an evidence URL points at stored media.
type EvidenceVerifier interface {
	Verify(ctx context.Context, rawURL string) error
}

// Config contains lifecycle engine settings.
type Config struct {
	Timeout     time.Duration
	RecentLimit int
}

// DefaultRecentLimit is the size of the "recent" scope when none is given.
const DefaultRecentLimit = 5

// Service implements the incident lifecycle.
type Service struct {
	repo      Repository
	policy    Authorizer
	evidence  EvidenceVerifier
	observers []Observer
	timeout   time.Duration
	recent    int
	now       func() time.Time
}

// NewService creates a new incident service.
func NewService(repo Repository, policy Authorizer, verifier EvidenceVerifier, cfg Config) *Service {
	recent := cfg.RecentLimit
	if recent <= 0 {
		recent = DefaultRecentLimit
	}
	return &Service{
		repo:     repo,
		policy:   policy,
		evidence: verifier,
		timeout:  cfg.Timeout,
		recent:   recent,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddObserver registers an observer. Must be called before the service is used.
func (s *Service) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// CreateInput holds data for reporting an incident.
type CreateInput struct {
	Title         string
	Description   string
	Category      string
	SubcategoryID *string
	Department    string
	Office        string
	Area          string
	Location      *domain.Location
	Priority      domain.Priority
	EvidenceURLs  []string
}

// Create reports a new incident on behalf of the session user.
func (s *Service) Create(ctx context.Context, session domain.Session, input CreateInput) (*domain.Incident, error) {
	if err := s.policy.Authorize(session, domain.CapCreateIncident); err != nil {
		return nil, err
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)

	var missing []string
	if input.Title == "" {
		missing = append(missing, "title")
	}
	if input.Description == "" {
		missing = append(missing, "description")
	}
	if input.Category == "" {
		missing = append(missing, "category")
	}
	if session.UserID == "" {
		missing = append(missing, "reporter_id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	for _, u := range input.EvidenceURLs {
		if err := s.verifyEvidence(ctx, u); err != nil {
			return nil, err
		}
	}

	now := s.now()
	inc := &domain.Incident{
		Title:         input.Title,
		Description:   input.Description,
		Category:      input.Category,
		SubcategoryID: input.SubcategoryID,
		Department:    orNotSpecified(input.Department),
		Office:        orNotSpecified(input.Office),
		Area:          orNotSpecified(input.Area),
		Location:      input.Location,
		Priority:      priority,
		Status:        domain.IncidentStatusOpen,
		ReporterID:    session.UserID,
		ReporterName:  session.Actor(),
		EvidenceURLs:  dedupe(input.EvidenceURLs),
		StatusHistory: []domain.StatusHistoryEntry{{
			Status:    domain.IncidentStatusOpen,
			Note:      "Incident reported",
			User:      session.Actor(),
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Create(ctx, inc)
	})
	if err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	incidentsCreated.WithLabelValues(string(inc.Priority)).Inc()
	s.emit(ctx, Event{Kind: EventCreated, Incident: inc, Actor: session})

	return inc, nil
}

// Get returns an incident visible to the session user.
func (s *Service) Get(ctx context.Context, session domain.Session, id string) (*domain.Incident, error) {
	inc, err := deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.Incident, error) {
		return s.repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	if !s.canView(session, inc) {
		return nil, fmt.Errorf("%w: incident belongs to another user", access.ErrPermissionDenied)
	}
	return inc, nil
}

// Transition moves an incident to target along the transition table.
// Approved and Rejected are routed through Approve and Reject.
func (s *Service) Transition(ctx context.Context, session domain.Session, id string, target domain.IncidentStatus, note string) (*domain.Incident, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, target)
	}

	switch target {
	case domain.IncidentStatusApproved:
		return s.Approve(ctx, session, id)
	case domain.IncidentStatusRejected:
		return s.Reject(ctx, session, id, note)
	}

	if err := s.policy.Authorize(session, domain.CapTransition); err != nil {
		return nil, err
	}
	unrestricted := s.policy.Can(session.Role, domain.CapTransitionAny)

	note = strings.TrimSpace(note)
	if note == "" {
		note = fmt.Sprintf("Status changed to %s", target)
	}

	now := s.now()
	var previous domain.IncidentStatus
	var previousAssignee *string

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if !unrestricted && !inc.IsAssignedTo(session.UserID) {
			return nil, fmt.Errorf("%w: only the assigned responder can change this incident", access.ErrPermissionDenied)
		}
		if !CanTransition(inc.Status, target) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inc.Status, target)
		}

		previous = inc.Status
		previousAssignee = inc.AssignedTo

		if target == domain.IncidentStatusOpen {
			inc.ClearAssignment()
		}
		if target.RequiresAssignee() && !inc.IsAssigned() {
			return nil, fmt.Errorf("%w: %s needs an assignee", ErrAssignmentRequired, target)
		}
		if target == domain.IncidentStatusResolved {
			inc.ResolvedAt = &now
		}

		inc.Status = target
		return &domain.StatusHistoryEntry{
			Status:    target,
			Note:      note,
			User:      session.Actor(),
			Timestamp: now,
		}, nil
	})
	if err != nil {
		s.recordFailure("transition", err)
		return nil, err
	}

	recordTransition(string(previous), string(target))
	s.emit(ctx, Event{
		Kind:             EventTransitioned,
		Incident:         inc,
		Actor:            session,
		PreviousStatus:   previous,
		PreviousAssignee: previousAssignee,
		Note:             note,
	})

	return inc, nil
}

// ChangePriority sets a new priority. It never changes the status.
func (s *Service) ChangePriority(ctx context.Context, session domain.Session, id string, priority domain.Priority) (*domain.Incident, error) {
	if err := s.policy.Authorize(session, domain.CapChangePriority); err != nil {
		return nil, err
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}

	now := s.now()
	var previous domain.Priority

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		previous = inc.Priority
		if previous == "" {
			previous = domain.PriorityMedium
		}
		inc.Priority = priority
		return &domain.StatusHistoryEntry{
			Status:    inc.Status,
			Note:      fmt.Sprintf("Priority changed from %s to %s", previous, priority),
			User:      session.Actor(),
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventPriorityChanged, Incident: inc, Actor: session, PreviousStatus: inc.Status, PreviousPriority: previous})
	return inc, nil
}

// Approve marks a reviewed incident as approved. The incident must already
// have an assignee.
func (s *Service) Approve(ctx context.Context, session domain.Session, id string) (*domain.Incident, error) {
	if err := s.policy.Authorize(session, domain.CapApprove); err != nil {
		return nil, err
	}

	now := s.now()
	reviewer := session.Actor()
	var previous domain.IncidentStatus

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if inc.Status != domain.IncidentStatusOpen && inc.Status != domain.IncidentStatusPendingReview {
			return nil, fmt.Errorf("%w: %s incident cannot be approved", ErrInvalidTransition, inc.Status)
		}
		if !inc.IsAssigned() {
			return nil, fmt.Errorf("%w: assign a responder before approving", ErrAssignmentRequired)
		}

		previous = inc.Status
		inc.Status = domain.IncidentStatusApproved
		inc.ReviewedBy = &reviewer
		inc.ReviewedAt = &now
		return &domain.StatusHistoryEntry{
			Status:    domain.IncidentStatusApproved,
			Note:      "Incident approved by " + reviewer,
			User:      reviewer,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		s.recordFailure("approve", err)
		return nil, err
	}

	recordTransition(string(previous), string(domain.IncidentStatusApproved))
	s.emit(ctx, Event{Kind: EventApproved, Incident: inc, Actor: session, PreviousStatus: previous})
	return inc, nil
}

// Reject closes a non-terminal incident with a reason.
func (s *Service) Reject(ctx context.Context, session domain.Session, id, reason string) (*domain.Incident, error) {
	if err := s.policy.Authorize(session, domain.CapReject); err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}

	now := s.now()
	reviewer := session.Actor()
	var previous domain.IncidentStatus

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if inc.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: %s incident cannot be rejected", ErrInvalidTransition, inc.Status)
		}

		previous = inc.Status
		inc.Status = domain.IncidentStatusRejected
		inc.RejectionReason = &reason
		inc.ReviewedBy = &reviewer
		inc.ReviewedAt = &now
		return &domain.StatusHistoryEntry{
			Status:    domain.IncidentStatusRejected,
			Note:      "Incident rejected: " + reason,
			User:      reviewer,
			Timestamp: now,
		}, nil
	})
	if err != nil {
		s.recordFailure("reject", err)
		return nil, err
	}

	recordTransition(string(previous), string(domain.IncidentStatusRejected))
	s.emit(ctx, Event{Kind: EventRejected, Incident: inc, Actor: session, PreviousStatus: previous, Note: reason})
	return inc, nil
}

// Assignee identifies the responder bound by Assign. Check, when set, runs
// against the responder's locked profile and aborts the assignment on error.
type Assignee struct {
	ID    string
	Name  string
	Role  domain.Role
	Check func(responder *domain.User) error
}

// Assign binds a responder and starts work in a single mutation. Incidents
// already in progress are reassigned without a status change. Callers are
// responsible for the capability check; eligibility goes in Assignee.Check.
func (s *Service) Assign(ctx context.Context, session domain.Session, id string, assignee Assignee) (*domain.Incident, error) {
	if assignee.ID == "" {
		return nil, fmt.Errorf("%w: responder id is required", ErrValidation)
	}

	now := s.now()
	var previous domain.IncidentStatus
	var previousAssignee *string

	inc, err := deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.Incident, error) {
		return s.repo.MutateWithResponder(ctx, id, assignee.ID, func(inc *domain.Incident, responder *domain.User) (*domain.StatusHistoryEntry, error) {
			if assignee.Check != nil {
				if err := assignee.Check(responder); err != nil {
					return nil, err
				}
			}
			if inc.IsAssignedTo(assignee.ID) {
				return nil, fmt.Errorf("%w: incident is already assigned to %s", ErrValidation, assignee.Name)
			}

			previous = inc.Status
			previousAssignee = inc.AssignedTo

			note := "Assigned to " + assignee.Name
			switch inc.Status {
			case domain.IncidentStatusOpen, domain.IncidentStatusPendingReview, domain.IncidentStatusApproved:
				inc.Status = domain.IncidentStatusInProgress
			case domain.IncidentStatusInProgress, domain.IncidentStatusWaitingForResources:
				note = "Reassigned to " + assignee.Name
			default:
				return nil, fmt.Errorf("%w: %s incident cannot be assigned", ErrInvalidTransition, inc.Status)
			}

			name := assignee.Name
			role := assignee.Role
			assignedID := assignee.ID
			inc.AssignedTo = &assignedID
			inc.AssignedToName = &name
			inc.AssignedToRole = &role

			return &domain.StatusHistoryEntry{
				Status:    inc.Status,
				Note:      note,
				User:      session.Actor(),
				Timestamp: now,
			}, nil
		})
	})
	if err != nil {
		s.recordFailure("assign", err)
		return nil, err
	}

	if previous != inc.Status {
		recordTransition(string(previous), string(inc.Status))
	}
	s.emit(ctx, Event{
		Kind:             EventAssigned,
		Incident:         inc,
		Actor:            session,
		PreviousStatus:   previous,
		PreviousAssignee: previousAssignee,
	})
	return inc, nil
}

// AddUpdate appends a free-form note without changing the status.
func (s *Service) AddUpdate(ctx context.Context, session domain.Session, id, note string) (*domain.Incident, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("%w: note is required", ErrValidation)
	}

	now := s.now()
	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if !s.isParticipant(session, inc) && !s.policy.Can(session.Role, domain.CapTransitionAny) {
			return nil, fmt.Errorf("%w: not a participant of this incident", access.ErrPermissionDenied)
		}
		return &domain.StatusHistoryEntry{
			Status:    inc.Status,
			Note:      note,
			User:      session.Actor(),
			Timestamp: now,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventUpdated, Incident: inc, Actor: session, PreviousStatus: inc.Status, Note: note})
	return inc, nil
}

// UpdateDetailsInput holds descriptive fields to change. Nil fields are kept.
type UpdateDetailsInput struct {
	Title         *string
	Description   *string
	Category      *string
	SubcategoryID *string
	Department    *string
	Office        *string
	Area          *string
	Location      *domain.Location
}

// UpdateDetails lets the reporter edit an incident until it is reviewed.
func (s *Service) UpdateDetails(ctx context.Context, session domain.Session, id string, input UpdateDetailsInput) (*domain.Incident, error) {
	for name, v := range map[string]*string{
		"title":       input.Title,
		"description": input.Description,
		"category":    input.Category,
	} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%w: %s cannot be empty", ErrValidation, name)
		}
	}

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if inc.ReporterID != session.UserID {
			return nil, fmt.Errorf("%w: only the reporter can edit incident details", access.ErrPermissionDenied)
		}
		if inc.Status != domain.IncidentStatusOpen || inc.ReviewedBy != nil {
			return nil, fmt.Errorf("%w: incident is %s", ErrNotEditable, inc.Status)
		}

		if input.Title != nil {
			inc.Title = strings.TrimSpace(*input.Title)
		}
		if input.Description != nil {
			inc.Description = strings.TrimSpace(*input.Description)
		}
		if input.Category != nil {
			inc.Category = strings.TrimSpace(*input.Category)
		}
		if input.SubcategoryID != nil {
			inc.SubcategoryID = input.SubcategoryID
		}
		if input.Department != nil {
			inc.Department = orNotSpecified(*input.Department)
		}
		if input.Office != nil {
			inc.Office = orNotSpecified(*input.Office)
		}
		if input.Area != nil {
			inc.Area = orNotSpecified(*input.Area)
		}
		if input.Location != nil {
			inc.Location = input.Location
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{Kind: EventUpdated, Incident: inc, Actor: session, PreviousStatus: inc.Status})
	return inc, nil
}

// AttachEvidence records a photo evidence URL uploaded out of band.
func (s *Service) AttachEvidence(ctx context.Context, session domain.Session, id, rawURL string) (*domain.Incident, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := s.verifyEvidence(ctx, rawURL); err != nil {
		return nil, err
	}

	inc, err := s.mutate(ctx, id, func(inc *domain.Incident) (*domain.StatusHistoryEntry, error) {
		if !s.canView(session, inc) {
			return nil, fmt.Errorf("%w: incident belongs to another user", access.ErrPermissionDenied)
		}
		inc.EvidenceURLs = dedupe(append(inc.EvidenceURLs, rawURL))
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	return inc, nil
}

func (s *Service) mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Incident, error) {
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) (*domain.Incident, error) {
		return s.repo.Mutate(ctx, id, fn)
	})
}

func (s *Service) verifyEvidence(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: evidence url is required", ErrValidation)
	}
	if s.evidence == nil {
		return nil
	}
	err := deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.evidence.Verify(ctx, rawURL)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, evidence.ErrInvalidURL), errors.Is(err, evidence.ErrObjectNotFound):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, deadline.ErrTimeout):
		return err
	default:
		return fmt.Errorf("verify evidence: %w", err)
	}
}

// emit runs observers on a context detached from request cancellation.
func (s *Service) emit(ctx context.Context, event Event) {
	if len(s.observers) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, o := range s.observers {
		o.OnIncidentEvent(ctx, event)
	}
}

func (s *Service) recordFailure(operation string, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransition):
		recordRejected(operation, "invalid_transition")
	case errors.Is(err, ErrAssignmentRequired):
		recordRejected(operation, "assignment_required")
	case errors.Is(err, access.ErrPermissionDenied):
		recordRejected(operation, "permission_denied")
	case errors.Is(err, deadline.ErrTimeout):
		recordRejected(operation, "timeout")
		slog.Warn("incident mutation timed out", "operation", operation, "error", err)
	}
}

func (s *Service) isParticipant(session domain.Session, inc *domain.Incident) bool {
	return session.UserID != "" && (inc.ReporterID == session.UserID || inc.IsAssignedTo(session.UserID))
}

func (s *Service) canView(session domain.Session, inc *domain.Incident) bool {
	return s.isParticipant(session, inc) || s.policy.Can(session.Role, domain.CapViewAll)
}

func orNotSpecified(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return domain.NotSpecified
	}
	return v
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
