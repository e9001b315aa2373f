package messages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
)

// MaxLength is the longest accepted message body, in characters.
const MaxLength = 2000

// IncidentReader resolves an incident visible to the session user.
type IncidentReader interface {
	Get(ctx context.Context, session domain.Session, id string) (*domain.Incident, error)
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
}

// Observer reacts to posted messages.
type Observer interface {
	OnMessage(ctx context.Context, msg *domain.Message, inc *domain.Incident)
}

// Service manages incident threads.
type Service struct {
	repo      Repository
	incidents IncidentReader
	policy    Authorizer
	observers []Observer
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates a new messages service.
func NewService(repo Repository, incidents IncidentReader, policy Authorizer, timeout time.Duration) *Service {
	return &Service{
		repo:      repo,
		incidents: incidents,
		policy:    policy,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddObserver registers an observer. Must be called before the service is used.
func (s *Service) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Send posts a user message. Only participants of the incident and users
// who can see every incident may write to its thread.
func (s *Service) Send(ctx context.Context, session domain.Session, incidentID, text string) (*domain.Message, error) {
	if err := s.policy.Authorize(session, domain.CapMessage); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxLength)
	}

	inc, err := s.incidents.Get(ctx, session, incidentID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		IncidentID: inc.ID,
		UserID:     session.UserID,
		UserName:   session.Actor(),
		UserRole:   string(session.Role),
		Message:    text,
		Type:       domain.MessageTypeUser,
		Timestamp:  s.now(),
	}
	if err := s.create(ctx, msg); err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	for _, o := range s.observers {
		o.OnMessage(ctx, msg, inc)
	}
	return msg, nil
}

// AddSystemMessage posts a message authored by the system.
func (s *Service) AddSystemMessage(ctx context.Context, incidentID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}

	msg := &domain.Message{
		IncidentID: incidentID,
		UserID:     "system",
		UserName:   "System",
		UserRole:   "system",
		Message:    text,
		Type:       domain.MessageTypeSystem,
		Timestamp:  s.now(),
	}
	if err := s.create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// List returns the thread of an incident visible to the session user,
// oldest first.
func (s *Service) List(ctx context.Context, session domain.Session, incidentID string) ([]*domain.Message, error) {
	inc, err := s.incidents.Get(ctx, session, incidentID)
	if err != nil {
		return nil, err
	}
	return deadline.Do(ctx, s.timeout, func(ctx context.Context) ([]*domain.Message, error) {
		return s.repo.List(ctx, inc.ID)
	})
}

// OnIncidentEvent records status changes in the incident thread.
func (s *Service) OnIncidentEvent(ctx context.Context, e incidents.Event) {
	inc := e.Incident
	if inc == nil || e.Kind == incidents.EventCreated || e.PreviousStatus == inc.Status {
		return
	}

	text := fmt.Sprintf("Status changed to %s", inc.Status)
	if _, err := s.AddSystemMessage(ctx, inc.ID, text); err != nil {
		slog.Error("failed to post status message", "incident_id", inc.ID, "error", err)
	}
}

func (s *Service) create(ctx context.Context, msg *domain.Message) error {
	err := deadline.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.repo.Create(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	messagesPosted.WithLabelValues(string(msg.Type)).Inc()
	return nil
}
