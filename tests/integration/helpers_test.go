//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/testutil"
)

// actor is a registered user with a client bound to their token.
type actor struct {
	*testutil.Client
	User  domain.User
	Token string
}

var (
	adminOnce  sync.Once
	adminToken string
	adminUser  domain.User
)

// issueToken signs a token for a fresh subject.
func issueToken(t *testing.T, name, email string) (subject, token string) {
	t.Helper()

	subject = uuid.NewString()
	token, err := application.IssueToken(subject, name, email)
	require.NoError(t, err)
	return subject, token
}

// registerAs creates a user with role and returns a client acting as them.
func registerAs(t *testing.T, role domain.Role, opts ...func(map[string]any)) *actor {
	t.Helper()

	name := fmt.Sprintf("%s %s", role, uuid.NewString()[:8])
	email := fmt.Sprintf("%s@incidentdesk.test", uuid.NewString())
	_, token := issueToken(t, name, email)

	payload := map[string]any{
		"full_name": name,
		"email":     email,
		"role":      string(role),
	}
	for _, opt := range opts {
		opt(payload)
	}

	client := newTestClient(t).WithToken(token)
	resp, err := client.POST("/api/v1/users/register", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	var user domain.User
	testutil.DecodeData(t, resp, &user)
	return &actor{Client: client, User: user, Token: token}
}

func withSkills(skills ...string) func(map[string]any) {
	return func(m map[string]any) {
		m["skills"] = skills
	}
}

func withDepartment(department string) func(map[string]any) {
	return func(m map[string]any) {
		m["department"] = department
	}
}

// admin returns a client for the bootstrap admin, registering it on first use.
func admin(t *testing.T) *actor {
	t.Helper()

	adminOnce.Do(func() {
		_, token := issueToken(t, "Site Admin", bootstrapAdminEmail)
		resp, err := newTestClient(t).WithToken(token).POST("/api/v1/users/register", map[string]any{
			"full_name": "Site Admin",
			"email":     bootstrapAdminEmail,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		testutil.DecodeData(t, resp, &adminUser)
		adminToken = token
	})
	require.NotEmpty(t, adminToken, "admin registration failed in an earlier test")

	return &actor{Client: newTestClient(t).WithToken(adminToken), User: adminUser, Token: adminToken}
}

// reportIncident files an incident as a and returns it.
func reportIncident(t *testing.T, a *actor, title string, extra ...func(map[string]any)) domain.Incident {
	t.Helper()

	payload := map[string]any{
		"title":       title,
		"description": "Spotted during the morning walk-through",
		"category":    "Safety",
	}
	for _, opt := range extra {
		opt(payload)
	}

	resp, err := a.POST("/api/v1/incidents", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var inc domain.Incident
	testutil.DecodeData(t, resp, &inc)
	return inc
}

func withLocation(lat, lng float64) func(map[string]any) {
	return func(m map[string]any) {
		m["location"] = map[string]float64{"lat": lat, "lng": lng}
	}
}

// assign binds responder to the incident as a.
func assign(t *testing.T, a *actor, incidentID, responderID string) domain.Incident {
	t.Helper()

	resp, err := a.POST("/api/v1/incidents/"+incidentID+"/assignment", map[string]string{
		"responder_id": responderID,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inc domain.Incident
	testutil.DecodeData(t, resp, &inc)
	return inc
}

// transition moves the incident to status as a and returns the response.
func transition(t *testing.T, a *actor, incidentID string, status domain.IncidentStatus, note string) *http.Response {
	t.Helper()

	resp, err := a.POST("/api/v1/incidents/"+incidentID+"/transitions", map[string]string{
		"status": string(status),
		"note":   note,
	})
	require.NoError(t, err)
	return resp
}

// getIncident fetches the incident as a.
func getIncident(t *testing.T, a *actor, id string) domain.Incident {
	t.Helper()

	resp, err := a.GET("/api/v1/incidents/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inc domain.Incident
	testutil.DecodeData(t, resp, &inc)
	return inc
}

// notificationsOf lists the notifications of a.
func notificationsOf(t *testing.T, a *actor) []domain.Notification {
	t.Helper()

	resp, err := a.GET("/api/v1/notifications")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []domain.Notification
	testutil.DecodeData(t, resp, &items)
	return items
}

func containsIncident(list []domain.Incident, id string) bool {
	for _, inc := range list {
		if inc.ID == id {
			return true
		}
	}
	return false
}
