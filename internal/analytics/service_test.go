package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/access"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
)

type stubSource struct {
	incidents []*domain.Incident
	filter    incidents.Filter
}

func (s *stubSource) Query(_ context.Context, filter incidents.Filter) ([]*domain.Incident, error) {
	s.filter = filter
	var out []*domain.Incident
	for _, inc := range s.incidents {
		if filter.CreatedSince == nil || !inc.CreatedAt.Before(*filter.CreatedSince) {
			out = append(out, inc)
		}
	}
	return out, nil
}

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func incident(category string, status domain.IncidentStatus, age time.Duration, assignee string) *domain.Incident {
	inc := &domain.Incident{
		Category:  category,
		Status:    status,
		CreatedAt: now.Add(-age),
	}
	if assignee != "" {
		id := assignee
		name := "Responder " + assignee
		inc.AssignedTo = &id
		inc.AssignedToName = &name
	}
	return inc
}

func resolvedAfter(inc *domain.Incident, d time.Duration) *domain.Incident {
	at := inc.CreatedAt.Add(d)
	inc.ResolvedAt = &at
	return inc
}

func TestRangeStart(t *testing.T) {
	tests := []struct {
		r    Range
		want time.Time
	}{
		{Range7Days, time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
		{Range30Days, time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)},
		{RangeMonth, time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)},
		{RangeYear, time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			got, err := tt.r.Start(now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Range("decade").Start(now)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestReport(t *testing.T) {
	day := 24 * time.Hour
	source := &stubSource{incidents: []*domain.Incident{
		resolvedAfter(incident("Safety", domain.IncidentStatusResolved, 2*time.Hour, "R1"), 90*time.Minute),
		resolvedAfter(incident("Safety", domain.IncidentStatusResolved, 2*day, "R1"), 150*time.Minute),
		incident("Safety", domain.IncidentStatusInProgress, 3*day, "R2"),
		incident("Workplace", domain.IncidentStatusOpen, 6*day+time.Hour, ""),
		incident("Workplace", domain.IncidentStatusOpen, 20*day, ""),
	}}
	svc := NewService(source, access.MustNewPolicy())
	svc.now = func() time.Time { return now }

	report, err := svc.Report(context.Background(), domain.Session{UserID: "V1", Role: domain.RoleReviewer}, Range7Days)
	require.NoError(t, err)

	require.NotNil(t, source.filter.CreatedSince)
	assert.Equal(t, now.AddDate(0, 0, -7), *source.filter.CreatedSince)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, "2h 0m", report.AvgResolution)
	assert.Equal(t, int64(7200), report.AvgResolutionSeconds)

	assert.Equal(t, []IssueType{
		{Category: "Safety", Count: 3, Percentage: 75},
		{Category: "Workplace", Count: 1, Percentage: 25},
	}, report.IssueTypes)

	require.Len(t, report.TopResponders, 2)
	assert.Equal(t, ResponderStat{ID: "R1", Name: "Responder R1", Tickets: 2, Resolved: 2, Efficiency: 100, Rating: "High"}, report.TopResponders[0])
	assert.Equal(t, ResponderStat{ID: "R2", Name: "Responder R2", Tickets: 1, Resolved: 0, Efficiency: 0, Rating: "Good"}, report.TopResponders[1])

	assert.Equal(t, []int{1, 0, 0, 1, 1, 0, 1}, report.Trend)
}

func TestReport_RequiresCapability(t *testing.T) {
	svc := NewService(&stubSource{}, access.MustNewPolicy())

	_, err := svc.Report(context.Background(), domain.Session{UserID: "R1", Role: domain.RoleResponder}, Range7Days)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	_, err = svc.Report(context.Background(), domain.Session{UserID: "A1", Role: domain.RoleAdmin}, "forever")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestBuild_Empty(t *testing.T) {
	report := Build(Range30Days, now.AddDate(0, 0, -30), now, nil)

	assert.Zero(t, report.Total)
	assert.Equal(t, "0h 0m", report.AvgResolution)
	assert.Empty(t, report.IssueTypes)
	assert.Empty(t, report.TopResponders)
	assert.Equal(t, make([]int, TrendDays), report.Trend)
}

func TestBuild_TopRespondersLimit(t *testing.T) {
	var list []*domain.Incident
	for i := 0; i < 8; i++ {
		list = append(list, incident("Safety", domain.IncidentStatusInProgress, time.Hour, fmt.Sprintf("R%d", i)))
	}

	report := Build(Range7Days, now.AddDate(0, 0, -7), now, list)
	assert.Len(t, report.TopResponders, TopRespondersLimit)
	assert.Equal(t, "R0", report.TopResponders[0].ID)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h 0m", FormatDuration(0))
	assert.Equal(t, "1h 30m", FormatDuration(90*time.Minute))
	assert.Equal(t, "2h 0m", FormatDuration(119*time.Minute+50*time.Second))
	assert.Equal(t, "26h 5m", FormatDuration(26*time.Hour+5*time.Minute))
}
