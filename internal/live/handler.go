package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/catalog"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/identity"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/ctxlog"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

// Frame types.
const (
	FrameTypeSnapshot = "snapshot"
	FrameTypeError    = "error"
)

// Frame is a message pushed to a live client.
type Frame struct {
	Type  string      `json:"type"`
	Data  any         `json:"data,omitempty"`
	Error *FrameError `json:"error,omitempty"`
}

// FrameError describes why a live query ended. Retryable tells the client
// whether subscribing again may succeed.
type FrameError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// NotificationFeed is the payload of the notifications live query.
type NotificationFeed struct {
	Items       []*domain.Notification `json:"items"`
	UnreadCount int                    `json:"unread_count"`
}

// IncidentQuerier runs incident queries on behalf of a session.
type IncidentQuerier interface {
	ScopeFilter(session domain.Session, input incidents.ListInput) (incidents.Filter, error)
	Query(ctx context.Context, filter incidents.Filter) ([]*domain.Incident, error)
	Get(ctx context.Context, session domain.Session, id string) (*domain.Incident, error)
}

// MessageLister lists an incident's messages.
type MessageLister interface {
	List(ctx context.Context, session domain.Session, incidentID string) ([]*domain.Message, error)
}

// NotificationLister reads the session user's notifications.
type NotificationLister interface {
	List(ctx context.Context, session domain.Session) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context, session domain.Session) (int, error)
}

// CategoryLister lists incident categories.
type CategoryLister interface {
	List(ctx context.Context, filter catalog.Filter) ([]*domain.Category, error)
}

// UserLister lists user profiles on behalf of a session.
type UserLister interface {
	ListUsers(ctx context.Context, session domain.Session, role *domain.Role) ([]*domain.User, error)
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
}

// Sources are the read models behind live queries.
type Sources struct {
	Incidents     IncidentQuerier
	Messages      MessageLister
	Notifications NotificationLister
	Categories    CategoryLister
	Users         UserLister
	Policy        Authorizer
}

var accessMappings = []httputil.ErrorMapping{
	{Error: access.ErrPermissionDenied, Status: http.StatusForbidden},
}

// HandlerConfig holds WebSocket settings.
type HandlerConfig struct {
	OriginPatterns []string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// Handler serves live queries over WebSocket.
type Handler struct {
	gateway       *Gateway
	incidents     IncidentQuerier
	messages      MessageLister
	notifications NotificationLister
	categories    CategoryLister
	users         UserLister
	policy        Authorizer
	config        HandlerConfig
}

// NewHandler creates a new live handler.
func NewHandler(gateway *Gateway, sources Sources, config HandlerConfig) *Handler {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	return &Handler{
		gateway:       gateway,
		incidents:     sources.Incidents,
		messages:      sources.Messages,
		notifications: sources.Notifications,
		categories:    sources.Categories,
		users:         sources.Users,
		policy:        sources.Policy,
		config:        config,
	}
}

// RegisterRoutes registers live query routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/live/incidents", h.Incidents)
	r.Get("/live/incidents/{id}", h.Incident)
	r.Get("/live/incidents/{id}/messages", h.Messages)
	r.Get("/live/notifications", h.Notifications)
	r.Get("/live/categories", h.Categories)
	r.Get("/live/users", h.Users)
}

// Incidents handles GET /live/incidents. It accepts the same query
// parameters as GET /incidents.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	input, err := incidents.ParseListInput(r)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	session := httputil.GetSession(r.Context())
	filter, err := h.incidents.ScopeFilter(session, input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, incidents.ErrorMappings)
		return
	}

	stream(h, w, r, Query[[]incidents.IncidentView]{
		Topic: domain.TopicIncidents,
		Fetch: func(ctx context.Context) ([]incidents.IncidentView, error) {
			list, err := h.incidents.Query(ctx, filter)
			if err != nil {
				return nil, err
			}
			return incidents.NewIncidentViews(list), nil
		},
	})
}

// Incident handles GET /live/incidents/{id}.
func (h *Handler) Incident(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := h.incidents.Get(r.Context(), session, id); err != nil {
		httputil.HandleError(r.Context(), w, err, incidents.ErrorMappings)
		return
	}

	stream(h, w, r, Query[incidents.IncidentView]{
		Topic: domain.TopicIncidents,
		Key:   id,
		Fetch: func(ctx context.Context) (incidents.IncidentView, error) {
			inc, err := h.incidents.Get(ctx, session, id)
			if err != nil {
				return incidents.IncidentView{}, err
			}
			return incidents.NewIncidentView(inc), nil
		},
	})
}

// Messages handles GET /live/incidents/{id}/messages.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := h.incidents.Get(r.Context(), session, id); err != nil {
		httputil.HandleError(r.Context(), w, err, incidents.ErrorMappings)
		return
	}

	stream(h, w, r, Query[[]*domain.Message]{
		Topic: domain.TopicMessages,
		Key:   id,
		Fetch: func(ctx context.Context) ([]*domain.Message, error) {
			return h.messages.List(ctx, session, id)
		},
	})
}

// Notifications handles GET /live/notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())

	stream(h, w, r, Query[NotificationFeed]{
		Topic: domain.TopicNotifications,
		Key:   session.UserID,
		Fetch: func(ctx context.Context) (NotificationFeed, error) {
			items, err := h.notifications.List(ctx, session)
			if err != nil {
				return NotificationFeed{}, err
			}
			unread, err := h.notifications.UnreadCount(ctx, session)
			if err != nil {
				return NotificationFeed{}, err
			}
			return NotificationFeed{Items: items, UnreadCount: unread}, nil
		},
	})
}

// Categories handles GET /live/categories. It accepts include_archived like
// GET /categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	filter := catalog.Filter{IncludeArchived: r.URL.Query().Get("include_archived") == "true"}

	stream(h, w, r, Query[[]*domain.Category]{
		Topic: domain.TopicCategories,
		Fetch: func(ctx context.Context) ([]*domain.Category, error) {
			return h.categories.List(ctx, filter)
		},
	})
}

// Users handles GET /live/users. Admin only; role narrows the list like
// GET /users.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	session := httputil.GetSession(r.Context())
	if err := h.policy.Authorize(session, domain.CapManageUsers); err != nil {
		httputil.HandleError(r.Context(), w, err, accessMappings)
		return
	}

	var role *domain.Role
	if v := r.URL.Query().Get("role"); v != "" {
		rl := domain.Role(v)
		if !rl.IsValid() {
			httputil.Error(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = &rl
	}

	stream(h, w, r, Query[[]*domain.User]{
		Topic: domain.TopicUsers,
		Fetch: func(ctx context.Context) ([]*domain.User, error) {
			return h.users.ListUsers(ctx, session, role)
		},
	})
}

// stream upgrades the request and pushes a snapshot frame for every result
// of q until the client goes away or the query fails.
func stream[T any](h *Handler, w http.ResponseWriter, r *http.Request, q Query[T]) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.config.OriginPatterns,
	})
	if err != nil {
		logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	done := make(chan *FrameError, 1)
	finish := func(fe *FrameError) {
		select {
		case done <- fe:
		default:
		}
	}

	write := func(frame Frame) bool {
		writeCtx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, frame); err != nil {
			if ctx.Err() == nil {
				logger.Debug("live frame write failed", "error", err)
			}
			finish(nil)
			return false
		}
		return true
	}

	cancel := Subscribe(ctx, h.gateway, q,
		func(result T) {
			write(Frame{Type: FrameTypeSnapshot, Data: result})
		},
		func(err error) {
			fe := frameError(err)
			if fe.Retryable {
				logger.Error("live query failed", "topic", q.Topic, "error", err)
			}
			if write(Frame{Type: FrameTypeError, Error: fe}) {
				finish(fe)
			}
		},
	)
	defer cancel()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case fe := <-done:
			if fe == nil {
				return
			}
			status := websocket.StatusPolicyViolation
			if fe.Retryable {
				status = websocket.StatusTryAgainLater
			}
			conn.Close(status, fe.Message)
			return
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, h.config.WriteTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return
			}
		}
	}
}

func frameError(err error) *FrameError {
	switch {
	case errors.Is(err, access.ErrPermissionDenied):
		return &FrameError{Message: "permission denied"}
	case errors.Is(err, incidents.ErrIncidentNotFound):
		return &FrameError{Message: "incident not found"}
	case errors.Is(err, incidents.ErrInvalidScope), errors.Is(err, incidents.ErrValidation),
		errors.Is(err, identity.ErrValidation):
		return &FrameError{Message: err.Error()}
	case errors.Is(err, ErrGatewayClosed):
		return &FrameError{Message: "server shutting down", Retryable: true}
	default:
		return &FrameError{Message: "live query failed", Retryable: true}
	}
}
