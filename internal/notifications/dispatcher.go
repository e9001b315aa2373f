package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/deadline"
)

// FeedLimit is the number of notifications returned by List.
const FeedLimit = 50

// Payload is the content of a single notification.
type Payload struct {
	Title      string
	Message    string
	IncidentID *string
}

// Dispatcher writes notifications to user feeds.
type Dispatcher struct {
	repo      Repository
	directory Directory
	renderer  *Renderer
	timeout   time.Duration
	now       func() time.Time
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(repo Repository, directory Directory, renderer *Renderer, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		directory: directory,
		renderer:  renderer,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify appends an unread notification to the user's feed.
func (d *Dispatcher) Notify(ctx context.Context, userID string, t domain.NotificationType, p Payload) (*domain.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidNotification)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidNotification)
	}
	if t == "" {
		t = domain.NotificationGeneral
	}

	n := &domain.Notification{
		UserID:     userID,
		Title:      p.Title,
		Message:    p.Message,
		Type:       t,
		IncidentID: p.IncidentID,
		CreatedAt:  d.now(),
	}

	err := deadline.Run(ctx, d.timeout, func(ctx context.Context) error {
		return d.repo.Create(ctx, n)
	})
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	recordCreated(string(t))
	return n, nil
}

// List returns the newest notifications of the session user.
func (d *Dispatcher) List(ctx context.Context, session domain.Session) ([]*domain.Notification, error) {
	if err := requireUser(session); err != nil {
		return nil, err
	}
	return deadline.Do(ctx, d.timeout, func(ctx context.Context) ([]*domain.Notification, error) {
		return d.repo.List(ctx, session.UserID, FeedLimit)
	})
}

// UnreadCount returns the number of unread notifications of the session user.
func (d *Dispatcher) UnreadCount(ctx context.Context, session domain.Session) (int, error) {
	if err := requireUser(session); err != nil {
		return 0, err
	}
	return deadline.Do(ctx, d.timeout, func(ctx context.Context) (int, error) {
		return d.repo.UnreadCount(ctx, session.UserID)
	})
}

// MarkRead marks one of the session user's notifications as read.
func (d *Dispatcher) MarkRead(ctx context.Context, session domain.Session, id string) error {
	if err := requireUser(session); err != nil {
		return err
	}
	return deadline.Run(ctx, d.timeout, func(ctx context.Context) error {
		return d.repo.MarkRead(ctx, session.UserID, id)
	})
}

// MarkAllRead marks every notification of the session user as read.
func (d *Dispatcher) MarkAllRead(ctx context.Context, session domain.Session) (int, error) {
	if err := requireUser(session); err != nil {
		return 0, err
	}
	return deadline.Do(ctx, d.timeout, func(ctx context.Context) (int, error) {
		return d.repo.MarkAllRead(ctx, session.UserID)
	})
}

func requireUser(session domain.Session) error {
	if session.UserID == "" {
		return fmt.Errorf("%w: anonymous session", access.ErrPermissionDenied)
	}
	return nil
}
