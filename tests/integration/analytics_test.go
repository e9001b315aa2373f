//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/analytics"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/testutil"
)

func TestAnalytics_Report(t *testing.T) {
	reviewer := registerAs(t, domain.RoleReviewer)
	reporter := registerAs(t, domain.RoleReporter)
	reportIncident(t, reporter, "Slippery stairs")

	resp, err := reviewer.GET("/api/v1/analytics?range=30d")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report analytics.Report
	testutil.DecodeData(t, resp, &report)
	assert.Equal(t, analytics.Range30Days, report.Range)
	assert.GreaterOrEqual(t, report.Total, 1)
	assert.Len(t, report.Trend, analytics.TrendDays)

	var safety bool
	for _, it := range report.IssueTypes {
		if it.Category == "Safety" {
			safety = true
			assert.GreaterOrEqual(t, it.Count, 1)
		}
	}
	assert.True(t, safety)

	resp, err = reporter.GET("/api/v1/analytics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = reviewer.WithoutValidation().GET("/api/v1/analytics?range=decade")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
