package messages

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
)

// mockRepository implements Repository for testing.
type mockRepository struct {
	mu       sync.Mutex
	messages []*domain.Message
}

func (m *mockRepository) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = fmt.Sprintf("m%d", len(m.messages)+1)
	c := *msg
	m.messages = append(m.messages, &c)
	return nil
}

func (m *mockRepository) List(_ context.Context, incidentID string) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Message, 0)
	for _, msg := range m.messages {
		if msg.IncidentID == incidentID {
			c := *msg
			out = append(out, &c)
		}
	}
	return out, nil
}

// stubIncidents grants visibility the same way the lifecycle engine does.
type stubIncidents struct {
	incidents map[string]*domain.Incident
}

func (s *stubIncidents) Get(_ context.Context, session domain.Session, id string) (*domain.Incident, error) {
	inc, ok := s.incidents[id]
	if !ok {
		return nil, incidents.ErrIncidentNotFound
	}
	participant := inc.ReporterID == session.UserID || inc.IsAssignedTo(session.UserID)
	if !participant && !access.MustNewPolicy().Can(session.Role, domain.CapViewAll) {
		return nil, access.ErrPermissionDenied
	}
	return inc, nil
}

type recordingObserver struct {
	messages []*domain.Message
}

func (o *recordingObserver) OnMessage(_ context.Context, msg *domain.Message, _ *domain.Incident) {
	o.messages = append(o.messages, msg)
}

var (
	reporter  = domain.Session{UserID: "U1", Name: "Rita Reporter", Role: domain.RoleReporter}
	responder = domain.Session{UserID: "R1", Name: "Rob Responder", Role: domain.RoleResponder}
	outsider  = domain.Session{UserID: "U2", Name: "Other Reporter", Role: domain.RoleReporter}
	reviewer  = domain.Session{UserID: "V1", Name: "Reviewer1", Role: domain.RoleReviewer}
)

func newTestService() (*Service, *mockRepository, *recordingObserver) {
	repo := &mockRepository{}
	assignee := "R1"
	incs := &stubIncidents{incidents: map[string]*domain.Incident{
		"I1": {ID: "I1", Title: "Leak", ReporterID: "U1", AssignedTo: &assignee, Status: domain.IncidentStatusInProgress},
	}}
	svc := NewService(repo, incs, access.MustNewPolicy(), time.Second)
	obs := &recordingObserver{}
	svc.AddObserver(obs)
	return svc, repo, obs
}

func TestSend(t *testing.T) {
	tests := []struct {
		name    string
		session domain.Session
		text    string
		wantErr error
	}{
		{"reporter", reporter, "Water is spreading", nil},
		{"assignee", responder, "On my way", nil},
		{"reviewer", reviewer, "Escalating", nil},
		{"outsider", outsider, "Hello?", access.ErrPermissionDenied},
		{"blank", reporter, "   ", ErrValidation},
		{"at limit in runes", reporter, strings.Repeat("é", MaxLength), nil},
		{"too long", reporter, strings.Repeat("x", MaxLength+1), ErrValidation},
		{"unregistered", domain.Session{UserID: "N1"}, "hi", access.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, obs := newTestService()

			msg, err := svc.Send(context.Background(), tt.session, "I1", tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.messages)
				assert.Empty(t, obs.messages)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, msg.ID)
			assert.Equal(t, domain.MessageTypeUser, msg.Type)
			assert.Equal(t, tt.session.Name, msg.UserName)
			assert.Equal(t, string(tt.session.Role), msg.UserRole)
			require.Len(t, obs.messages, 1)
		})
	}
}

func TestSend_UnknownIncident(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Send(context.Background(), reporter, "missing", "hello")
	assert.ErrorIs(t, err, incidents.ErrIncidentNotFound)
}

func TestList_Ascending(t *testing.T) {
	svc, _, _ := newTestService()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	_, err := svc.Send(context.Background(), reporter, "I1", "first")
	require.NoError(t, err)
	_, err = svc.AddSystemMessage(context.Background(), "I1", "Status changed to Resolved")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), responder, "I1", "third")
	require.NoError(t, err)

	items, err := svc.List(context.Background(), reporter, "I1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "first", items[0].Message)
	assert.Equal(t, domain.MessageTypeSystem, items[1].Type)
	assert.Equal(t, "System", items[1].UserName)
	assert.True(t, items[1].Timestamp.After(items[0].Timestamp))

	_, err = svc.List(context.Background(), outsider, "I1")
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
}

func TestOnIncidentEvent(t *testing.T) {
	tests := []struct {
		name     string
		event    incidents.Event
		wantText string
	}{
		{
			name: "status change",
			event: incidents.Event{
				Kind:           incidents.EventTransitioned,
				Incident:       &domain.Incident{ID: "I1", Status: domain.IncidentStatusResolved},
				PreviousStatus: domain.IncidentStatusInProgress,
			},
			wantText: "Status changed to Resolved",
		},
		{
			name: "assignment moves to in progress",
			event: incidents.Event{
				Kind:           incidents.EventAssigned,
				Incident:       &domain.Incident{ID: "I1", Status: domain.IncidentStatusInProgress},
				PreviousStatus: domain.IncidentStatusOpen,
			},
			wantText: "Status changed to In Progress",
		},
		{
			name: "note without status change",
			event: incidents.Event{
				Kind:           incidents.EventUpdated,
				Incident:       &domain.Incident{ID: "I1", Status: domain.IncidentStatusInProgress},
				PreviousStatus: domain.IncidentStatusInProgress,
			},
		},
		{
			name: "creation",
			event: incidents.Event{
				Kind:     incidents.EventCreated,
				Incident: &domain.Incident{ID: "I1", Status: domain.IncidentStatusOpen},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()

			svc.OnIncidentEvent(context.Background(), tt.event)

			if tt.wantText == "" {
				assert.Empty(t, repo.messages)
				return
			}
			require.Len(t, repo.messages, 1)
			assert.Equal(t, tt.wantText, repo.messages[0].Message)
			assert.Equal(t, domain.MessageTypeSystem, repo.messages[0].Type)
		})
	}
}
