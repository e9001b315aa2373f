package incidents

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/httputil"
)

func serve(t *testing.T, svc *Service, session domain.Session, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)

	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(httputil.WithSession(req.Context(), session))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_IncidentCarriesAllowedTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)
	inc := createLeak(t, svc)

	rec := serve(t, svc, reporter, http.MethodGet, "/incidents/"+inc.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data IncidentView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, inc.ID, body.Data.ID)
	assert.Equal(t, AllowedTransitions(domain.IncidentStatusOpen), body.Data.AllowedTransitions)

	_, err := svc.Transition(t.Context(), reviewer, inc.ID, domain.IncidentStatusClosed, "duplicate")
	require.NoError(t, err)

	rec = serve(t, svc, reviewer, http.MethodGet, "/incidents?scope=all")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw.Data, 1)
	assert.JSONEq(t, `[]`, string(raw.Data[0]["allowed_transitions"]))
}
