// Package analytics computes reporting KPIs over incidents.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/incidents"
)

// Range selects the reporting window.
type Range string

// Ranges.
const (
	Range7Days  Range = "7d"
	Range30Days Range = "30d"
	RangeMonth  Range = "month"
	RangeYear   Range = "year"
)

// Report limits.
const (
	TopRespondersLimit = 5
	TrendDays          = 7
	highRatingRatio    = 0.95
)

// Start returns the beginning of the window ending at now.
func (r Range) Start(now time.Time) (time.Time, error) {
	switch r {
	case Range7Days:
		return now.AddDate(0, 0, -7), nil
	case Range30Days:
		return now.AddDate(0, 0, -30), nil
	case RangeMonth:
		return now.AddDate(0, -1, 0), nil
	case RangeYear:
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRange, r)
}

// IncidentSource runs store queries.
type IncidentSource interface {
	Query(ctx context.Context, filter incidents.Filter) ([]*domain.Incident, error)
}

// Authorizer checks role capabilities.
type Authorizer interface {
	Authorize(session domain.Session, capability domain.Capability) error
}

// IssueType is the share of one category.
type IssueType struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ResponderStat summarizes one assignee.
type ResponderStat struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Tickets    int    `json:"tickets"`
	Resolved   int    `json:"resolved"`
	Efficiency int    `json:"efficiency"`
	Rating     string `json:"rating"`
}

// Report holds KPIs for a window.
type Report struct {
	Range                Range           `json:"range"`
	From                 time.Time       `json:"from"`
	To                   time.Time       `json:"to"`
	Total                int             `json:"total"`
	Resolved             int             `json:"resolved"`
	AvgResolution        string          `json:"avg_resolution"`
	AvgResolutionSeconds int64           `json:"avg_resolution_seconds"`
	IssueTypes           []IssueType     `json:"issue_types"`
	TopResponders        []ResponderStat `json:"top_responders"`
	Trend                []int           `json:"trend"`
}

// Service builds analytics reports.
type Service struct {
	source IncidentSource
	policy Authorizer
	now    func() time.Time
}

// NewService creates a new analytics service.
func NewService(source IncidentSource, policy Authorizer) *Service {
	return &Service{
		source: source,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Report computes KPIs over incidents created within the range.
func (s *Service) Report(ctx context.Context, session domain.Session, r Range) (*Report, error) {
	if err := s.policy.Authorize(session, domain.CapViewAnalytics); err != nil {
		return nil, err
	}

	now := s.now()
	start, err := r.Start(now)
	if err != nil {
		return nil, err
	}

	list, err := s.source.Query(ctx, incidents.Filter{CreatedSince: &start})
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}

	return Build(r, start, now, list), nil
}

// Build aggregates list into a report.
func Build(r Range, from, to time.Time, list []*domain.Incident) *Report {
	report := &Report{
		Range:         r,
		From:          from,
		To:            to,
		Total:         len(list),
		IssueTypes:    []IssueType{},
		TopResponders: []ResponderStat{},
		Trend:         make([]int, TrendDays),
	}

	var resolutionTotal time.Duration
	var resolutionCount int
	categories := make(map[string]int)
	responders := make(map[string]*ResponderStat)

	for _, inc := range list {
		resolved := inc.Status == domain.IncidentStatusResolved
		if resolved {
			report.Resolved++
			if inc.ResolvedAt != nil && inc.ResolvedAt.After(inc.CreatedAt) {
				resolutionTotal += inc.ResolvedAt.Sub(inc.CreatedAt)
				resolutionCount++
			}
		}

		categories[inc.Category]++

		if inc.IsAssigned() {
			stat, ok := responders[*inc.AssignedTo]
			if !ok {
				stat = &ResponderStat{ID: *inc.AssignedTo, Name: "Unknown"}
				if inc.AssignedToName != nil && *inc.AssignedToName != "" {
					stat.Name = *inc.AssignedToName
				}
				responders[*inc.AssignedTo] = stat
			}
			stat.Tickets++
			if resolved {
				stat.Resolved++
			}
		}

		days := int(to.Sub(inc.CreatedAt) / (24 * time.Hour))
		if days >= 0 && days < TrendDays {
			report.Trend[TrendDays-1-days]++
		}
	}

	var avg time.Duration
	if resolutionCount > 0 {
		avg = resolutionTotal / time.Duration(resolutionCount)
	}
	report.AvgResolution = FormatDuration(avg)
	report.AvgResolutionSeconds = int64(avg / time.Second)

	for name, count := range categories {
		report.IssueTypes = append(report.IssueTypes, IssueType{
			Category:   name,
			Count:      count,
			Percentage: percent(count, report.Total),
		})
	}
	sort.Slice(report.IssueTypes, func(i, j int) bool {
		a, b := report.IssueTypes[i], report.IssueTypes[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	for _, stat := range responders {
		stat.Efficiency = percent(stat.Resolved, stat.Tickets)
		stat.Rating = "Good"
		if float64(stat.Resolved)/float64(stat.Tickets) > highRatingRatio {
			stat.Rating = "High"
		}
		report.TopResponders = append(report.TopResponders, *stat)
	}
	sort.Slice(report.TopResponders, func(i, j int) bool {
		a, b := report.TopResponders[i], report.TopResponders[j]
		if a.Efficiency != b.Efficiency {
			return a.Efficiency > b.Efficiency
		}
		if a.Tickets != b.Tickets {
			return a.Tickets > b.Tickets
		}
		return a.ID < b.ID
	})
	if len(report.TopResponders) > TopRespondersLimit {
		report.TopResponders = report.TopResponders[:TopRespondersLimit]
	}

	return report
}

// FormatDuration renders d as "Xh Ym" with minutes rounded.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
