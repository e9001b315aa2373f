package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/catalog"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

type stubIncidents struct {
	mu   sync.Mutex
	list []*domain.Incident
}

func (s *stubIncidents) ScopeFilter(session domain.Session, input incidents.ListInput) (incidents.Filter, error) {
	if input.Scope == incidents.ScopeAll && session.Role != domain.RoleAdmin {
		return incidents.Filter{}, access.ErrPermissionDenied
	}
	if !input.Scope.IsValid() {
		return incidents.Filter{}, incidents.ErrInvalidScope
	}
	return incidents.Filter{}, nil
}

func (s *stubIncidents) Query(_ context.Context, _ incidents.Filter) ([]*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Incident{}, s.list...), nil
}

func (s *stubIncidents) Get(_ context.Context, _ domain.Session, id string) (*domain.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inc := range s.list {
		if inc.ID == id {
			return inc, nil
		}
	}
	return nil, incidents.ErrIncidentNotFound
}

func (s *stubIncidents) add(inc *domain.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, inc)
}

type stubMessages struct{}

func (stubMessages) List(context.Context, domain.Session, string) ([]*domain.Message, error) {
	return []*domain.Message{}, nil
}

type stubNotifications struct {
	mu     sync.Mutex
	unread int
}

func (s *stubNotifications) List(context.Context, domain.Session) ([]*domain.Notification, error) {
	return []*domain.Notification{}, nil
}

func (s *stubNotifications) UnreadCount(context.Context, domain.Session) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread, nil
}

type stubCategories struct {
	mu   sync.Mutex
	list []*domain.Category
}

func (s *stubCategories) List(_ context.Context, filter catalog.Filter) ([]*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Category, 0, len(s.list))
	for _, c := range s.list {
		if filter.IncludeArchived || c.Status == domain.CategoryStatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubCategories) add(c *domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append(s.list, c)
}

type stubUsers struct{}

func (stubUsers) ListUsers(_ context.Context, _ domain.Session, role *domain.Role) ([]*domain.User, error) {
	users := []*domain.User{
		{ID: "U1", FullName: "Ada Admin", Role: domain.RoleAdmin},
		{ID: "U2", FullName: "Rob Responder", Role: domain.RoleResponder},
	}
	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if role == nil || u.Role == *role {
			out = append(out, u)
		}
	}
	return out, nil
}

type rawFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *FrameError     `json:"error"`
}

type testSources struct {
	incidents     *stubIncidents
	notifications *stubNotifications
	categories    *stubCategories
}

func newTestServer(t *testing.T, inc *stubIncidents, notifs *stubNotifications) (*httptest.Server, *Gateway) {
	t.Helper()
	return newTestServerWith(t, testSources{incidents: inc, notifications: notifs, categories: &stubCategories{}})
}

func newTestServerWith(t *testing.T, src testSources) (*httptest.Server, *Gateway) {
	t.Helper()

	gateway := NewGateway()
	h := NewHandler(gateway, Sources{
		Incidents:     src.incidents,
		Messages:      stubMessages{},
		Notifications: src.notifications,
		Categories:    src.categories,
		Users:         stubUsers{},
		Policy:        access.MustNewPolicy(),
	}, HandlerConfig{PingInterval: time.Hour})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := domain.Session{UserID: "U1", Role: domain.Role(r.Header.Get("X-Test-Role"))}
			next.ServeHTTP(w, r.WithContext(httputil.WithSession(r.Context(), session)))
		})
	})
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		gateway.Close()
		srv.Close()
	})
	return srv, gateway
}

func dial(t *testing.T, srv *httptest.Server, path string, role domain.Role) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"X-Test-Role": []string{string(role)}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) rawFrame {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame rawFrame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	return frame
}

func TestIncidents_PushesOnChange(t *testing.T) {
	inc := &stubIncidents{}
	srv, gateway := newTestServer(t, inc, &stubNotifications{})

	conn := dial(t, srv, "/live/incidents?scope=all", domain.RoleAdmin)

	frame := readFrame(t, conn)
	assert.Equal(t, FrameTypeSnapshot, frame.Type)
	assert.JSONEq(t, `[]`, string(frame.Data))

	inc.add(&domain.Incident{ID: "I1", Title: "Broken door", Status: domain.IncidentStatusOpen})
	gateway.Publish(domain.Change{Topic: domain.TopicIncidents, Key: "I1"})

	frame = readFrame(t, conn)
	require.Equal(t, FrameTypeSnapshot, frame.Type)
	var list []incidents.IncidentView
	require.NoError(t, json.Unmarshal(frame.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "I1", list[0].ID)
	assert.Equal(t, incidents.AllowedTransitions(domain.IncidentStatusOpen), list[0].AllowedTransitions)
}

func TestNotifications_KeyedByUser(t *testing.T) {
	notifs := &stubNotifications{}
	srv, gateway := newTestServer(t, &stubIncidents{}, notifs)

	conn := dial(t, srv, "/live/notifications", domain.RoleReporter)

	frame := readFrame(t, conn)
	assert.JSONEq(t, `{"items":[],"unread_count":0}`, string(frame.Data))

	notifs.mu.Lock()
	notifs.unread = 2
	notifs.mu.Unlock()

	gateway.Publish(domain.Change{Topic: domain.TopicNotifications, Key: "someone-else"})
	gateway.Publish(domain.Change{Topic: domain.TopicNotifications, Key: "U1"})

	frame = readFrame(t, conn)
	assert.JSONEq(t, `{"items":[],"unread_count":2}`, string(frame.Data))
}

func TestUpgradeRejected(t *testing.T) {
	srv, _ := newTestServer(t, &stubIncidents{}, &stubNotifications{})

	tests := []struct {
		name   string
		path   string
		role   domain.Role
		status int
	}{
		{"unknown scope", "/live/incidents?scope=everything", domain.RoleAdmin, http.StatusBadRequest},
		{"scope not allowed", "/live/incidents?scope=all", domain.RoleReporter, http.StatusForbidden},
		{"bad limit", "/live/incidents?limit=-1", domain.RoleReporter, http.StatusBadRequest},
		{"unknown incident", "/live/incidents/missing", domain.RoleReporter, http.StatusNotFound},
		{"messages of unknown incident", "/live/incidents/missing/messages", domain.RoleReporter, http.StatusNotFound},
		{"users need manage_users", "/live/users", domain.RoleReviewer, http.StatusForbidden},
		{"users with unknown role", "/live/users?role=Janitor", domain.RoleAdmin, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			url := "ws" + strings.TrimPrefix(srv.URL, "http") + tt.path
			_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
				HTTPHeader: http.Header{"X-Test-Role": []string{string(tt.role)}},
			})
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestFrameError(t *testing.T) {
	assert.False(t, frameError(access.ErrPermissionDenied).Retryable)
	assert.False(t, frameError(incidents.ErrIncidentNotFound).Retryable)
	assert.True(t, frameError(ErrGatewayClosed).Retryable)
	assert.True(t, frameError(context.DeadlineExceeded).Retryable)
}

func TestCategories_PushesOnChange(t *testing.T) {
	cats := &stubCategories{}
	cats.add(&domain.Category{ID: "C1", Name: "Safety", Status: domain.CategoryStatusActive})
	srv, gateway := newTestServerWith(t, testSources{
		incidents:     &stubIncidents{},
		notifications: &stubNotifications{},
		categories:    cats,
	})

	conn := dial(t, srv, "/live/categories", domain.RoleReporter)

	var list []domain.Category
	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeSnapshot, frame.Type)
	require.NoError(t, json.Unmarshal(frame.Data, &list))
	require.Len(t, list, 1)

	cats.add(&domain.Category{ID: "C2", Name: "Old", Status: domain.CategoryStatusArchived})
	cats.add(&domain.Category{ID: "C3", Name: "Facilities", Status: domain.CategoryStatusActive})
	gateway.Publish(domain.Change{Topic: domain.TopicCategories, Key: "C3"})

	frame = readFrame(t, conn)
	require.NoError(t, json.Unmarshal(frame.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "C3", list[1].ID)
}

func TestUsers_AdminOnly(t *testing.T) {
	srv, _ := newTestServer(t, &stubIncidents{}, &stubNotifications{})

	conn := dial(t, srv, "/live/users?role=Responder", domain.RoleAdmin)

	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeSnapshot, frame.Type)
	var users []domain.User
	require.NoError(t, json.Unmarshal(frame.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "U2", users[0].ID)
}

func TestShutdown_SendsRetryableFrame(t *testing.T) {
	srv, gateway := newTestServer(t, &stubIncidents{}, &stubNotifications{})

	conn := dial(t, srv, "/live/notifications", domain.RoleReporter)
	require.Equal(t, FrameTypeSnapshot, readFrame(t, conn).Type)

	gateway.Close()

	frame := readFrame(t, conn)
	require.Equal(t, FrameTypeError, frame.Type)
	require.NotNil(t, frame.Error)
	assert.True(t, frame.Error.Retryable)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusTryAgainLater, websocket.CloseStatus(err))
}
