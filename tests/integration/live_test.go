//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/live"
	notificationspostgres "github.com/yasmineadnan/dev-mobile-react-native/internal/notifications/postgres"
)

type liveFrame struct {
	Type  string           `json:"type"`
	Data  json.RawMessage  `json:"data"`
	Error *live.FrameError `json:"error"`
}

// dialLive opens a live query as a. The connection is closed on cleanup.
func dialLive(t *testing.T, a *actor, path string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1" + path
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + a.Token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// awaitFrame reads snapshot frames until match accepts one.
func awaitFrame[T any](t *testing.T, conn *websocket.Conn, match func(T) bool) T {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		var frame liveFrame
		require.NoError(t, wsjson.Read(ctx, conn, &frame), "no matching frame before timeout")
		require.Equal(t, live.FrameTypeSnapshot, frame.Type, "unexpected frame: %+v", frame.Error)

		var v T
		require.NoError(t, json.Unmarshal(frame.Data, &v))
		if match(v) {
			return v
		}
	}
}

func TestLive_IncidentFollowsLifecycle(t *testing.T) {
	reviewer := registerAs(t, domain.RoleReviewer)
	responder := registerAs(t, domain.RoleResponder)
	reporter := registerAs(t, domain.RoleReporter)
	inc := reportIncident(t, reporter, "Smoke detector beeping")

	conn := dialLive(t, reporter, "/live/incidents/"+inc.ID)
	first := awaitFrame(t, conn, func(domain.Incident) bool { return true })
	assert.Equal(t, domain.IncidentStatusOpen, first.Status)

	assign(t, reviewer, inc.ID, responder.User.ID)
	got := awaitFrame(t, conn, func(i domain.Incident) bool {
		return i.Status == domain.IncidentStatusInProgress
	})
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, responder.User.ID, *got.AssignedTo)

	resp := transition(t, responder, inc.ID, domain.IncidentStatusResolved, "Battery swapped")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	got = awaitFrame(t, conn, func(i domain.Incident) bool {
		return i.Status == domain.IncidentStatusResolved
	})
	assert.NotNil(t, got.ResolvedAt)
}

func TestLive_ListPicksUpNewReports(t *testing.T) {
	reporter := registerAs(t, domain.RoleReporter)

	conn := dialLive(t, reporter, "/live/incidents?scope=reported")
	initial := awaitFrame(t, conn, func([]domain.Incident) bool { return true })
	assert.Empty(t, initial)

	inc := reportIncident(t, reporter, "Loose handrail")
	list := awaitFrame(t, conn, func(l []domain.Incident) bool { return len(l) == 1 })
	assert.Equal(t, inc.ID, list[0].ID)
}

func TestLive_MessagesAndNotifications(t *testing.T) {
	reviewer := registerAs(t, domain.RoleReviewer)
	reporter := registerAs(t, domain.RoleReporter)
	inc := reportIncident(t, reporter, "Broken vending machine")

	thread := dialLive(t, reporter, "/live/incidents/"+inc.ID+"/messages")
	feed := dialLive(t, reporter, "/live/notifications")

	assert.Empty(t, awaitFrame(t, thread, func([]domain.Message) bool { return true }))
	before := awaitFrame(t, feed, func(live.NotificationFeed) bool { return true })

	resp := sendMessage(t, reviewer, inc.ID, "Vendor called")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	msgs := awaitFrame(t, thread, func(m []domain.Message) bool { return len(m) == 1 })
	assert.Equal(t, "Vendor called", msgs[0].Message)

	after := awaitFrame(t, feed, func(f live.NotificationFeed) bool {
		return f.UnreadCount == before.UnreadCount+1
	})
	require.NotEmpty(t, after.Items)
	assert.Equal(t, domain.NotificationNewMessage, after.Items[0].Type)
}

func TestLive_NotificationCleanupRefreshesFeed(t *testing.T) {
	reviewer := registerAs(t, domain.RoleReviewer)
	reporter := registerAs(t, domain.RoleReporter)
	inc := reportIncident(t, reporter, "Flickering hallway light")

	resp := sendMessage(t, reviewer, inc.ID, "Electrician booked")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := reporter.POST("/api/v1/notifications/read-all", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ctx := context.Background()
	_, err = testDB.Exec(ctx, `UPDATE notifications SET created_at = NOW() - INTERVAL '48 hours' WHERE user_id = $1`, reporter.User.ID)
	require.NoError(t, err)

	feed := dialLive(t, reporter, "/live/notifications")
	before := awaitFrame(t, feed, func(live.NotificationFeed) bool { return true })
	require.NotEmpty(t, before.Items)

	deleted, err := notificationspostgres.NewRepository(testDB).DeleteReadBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, len(before.Items))

	after := awaitFrame(t, feed, func(f live.NotificationFeed) bool { return len(f.Items) == 0 })
	assert.Zero(t, after.UnreadCount)
}

func TestLive_CategoriesAndUsers(t *testing.T) {
	adm := admin(t)

	catalogFeed := dialLive(t, adm, "/live/categories")
	directory := dialLive(t, adm, "/live/users?role=Responder")
	awaitFrame(t, catalogFeed, func([]domain.Category) bool { return true })
	awaitFrame(t, directory, func([]domain.User) bool { return true })

	name := "Live " + uuid.NewString()[:8]
	resp, err := adm.POST("/api/v1/categories", map[string]any{"name": name})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	awaitFrame(t, catalogFeed, func(list []domain.Category) bool {
		for _, c := range list {
			if c.Name == name {
				return true
			}
		}
		return false
	})

	responder := registerAs(t, domain.RoleResponder)
	awaitFrame(t, directory, func(list []domain.User) bool {
		for _, u := range list {
			if u.ID == responder.User.ID {
				return true
			}
		}
		return false
	})

	setAvailability(t, responder, domain.AvailabilityBusy)
	awaitFrame(t, directory, func(list []domain.User) bool {
		for _, u := range list {
			if u.ID == responder.User.ID {
				return u.Availability == domain.AvailabilityBusy
			}
		}
		return false
	})
}

func TestLive_AccessTokenQueryParam(t *testing.T) {
	reporter := registerAs(t, domain.RoleReporter)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/live/notifications?access_token=" + reporter.Token
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	awaitFrame(t, conn, func(live.NotificationFeed) bool { return true })
}

func TestLive_RejectedBeforeUpgrade(t *testing.T) {
	reporter := registerAs(t, domain.RoleReporter)
	stranger := registerAs(t, domain.RoleReporter)
	inc := reportIncident(t, reporter, "Private matter")

	tests := []struct {
		name   string
		actor  *actor
		path   string
		status int
	}{
		{"not a participant", stranger, "/live/incidents/" + inc.ID, http.StatusForbidden},
		{"scope needs capability", reporter, "/live/incidents?scope=all", http.StatusForbidden},
		{"unknown scope", reporter, "/live/incidents?scope=nope", http.StatusBadRequest},
		{"users need admin", reporter, "/live/users", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			url := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1" + tt.path
			_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
				HTTPHeader: http.Header{"Authorization": {"Bearer " + tt.actor.Token}},
			})
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}
