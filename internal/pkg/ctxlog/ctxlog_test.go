package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &out))
	return out
}

func TestFromContext_DefaultsToSlogDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWithSession(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), base.With("request_id", "req-1"))

	ctx = WithSession(ctx, domain.Session{UserID: "U1", Role: domain.RoleResponder})
	FromContext(ctx).Info("assigned")

	line := lastLine(t, &buf)
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "U1", line["user_id"])
	assert.Equal(t, "Responder", line["role"])

	unregistered := WithSession(WithLogger(context.Background(), base), domain.Session{UserID: "N1"})
	FromContext(unregistered).Info("registering")

	line = lastLine(t, &buf)
	assert.Equal(t, "N1", line["user_id"])
	assert.NotContains(t, line, "role")
}

func TestWith_LeavesParentUntouched(t *testing.T) {
	var buf bytes.Buffer
	parent := WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))
	child := With(parent, "incident_id", "I1")

	FromContext(parent).Info("parent")
	assert.NotContains(t, lastLine(t, &buf), "incident_id")

	FromContext(child).Info("child")
	assert.Equal(t, "I1", lastLine(t, &buf)["incident_id"])
}
