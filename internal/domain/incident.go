package domain

import "time"

// IncidentStatus represents the lifecycle state of an incident.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusOpen                IncidentStatus = "Open"
	IncidentStatusPendingReview       IncidentStatus = "Pending Review"
	IncidentStatusApproved            IncidentStatus = "Approved"
	IncidentStatusInProgress          IncidentStatus = "In Progress"
	IncidentStatusWaitingForResources IncidentStatus = "Waiting for Resources"
	IncidentStatusResolved            IncidentStatus = "Resolved"
	IncidentStatusRejected            IncidentStatus = "Rejected"
	IncidentStatusClosed              IncidentStatus = "Closed"
)

// AllIncidentStatuses lists every known status in lifecycle order.
var AllIncidentStatuses = []IncidentStatus{
	IncidentStatusOpen,
	IncidentStatusPendingReview,
	IncidentStatusApproved,
	IncidentStatusInProgress,
	IncidentStatusWaitingForResources,
	IncidentStatusResolved,
	IncidentStatusRejected,
	IncidentStatusClosed,
}

// IsValid checks if the status is a known value.
func (s IncidentStatus) IsValid() bool {
	for _, known := range AllIncidentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s IncidentStatus) IsTerminal() bool {
	switch s {
	case IncidentStatusResolved, IncidentStatusRejected, IncidentStatusClosed:
		return true
	}
	return false
}

// RequiresAssignee reports whether an incident in this status must have an assignee.
func (s IncidentStatus) RequiresAssignee() bool {
	switch s {
	case IncidentStatusInProgress, IncidentStatusApproved, IncidentStatusWaitingForResources:
		return true
	}
	return false
}

// Priority represents incident urgency.
type Priority string

// Priorities.
const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// IsValid checks if the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// NotSpecified is stored for optional location descriptors left empty by the reporter.
const NotSpecified = "Not specified"

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatusHistoryEntry is one append-only audit record of an incident.
type StatusHistoryEntry struct {
	Status    IncidentStatus `json:"status"`
	Note      string         `json:"note"`
	User      string         `json:"user"`
	Timestamp time.Time      `json:"timestamp"`
}

// Incident represents a reported issue tracked from creation to resolution.
type Incident struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Category        string               `json:"category"`
	SubcategoryID   *string              `json:"subcategory_id"`
	Department      string               `json:"department"`
	Office          string               `json:"office"`
	Area            string               `json:"area"`
	Location        *Location            `json:"location"`
	Priority        Priority             `json:"priority"`
	Status          IncidentStatus       `json:"status"`
	ReporterID      string               `json:"reporter_id"`
	ReporterName    string               `json:"reporter_name"`
	AssignedTo      *string              `json:"assigned_to"`
	AssignedToName  *string              `json:"assigned_to_name"`
	AssignedToRole  *Role                `json:"assigned_to_role"`
	ReviewedBy      *string              `json:"reviewed_by"`
	ReviewedAt      *time.Time           `json:"reviewed_at"`
	RejectionReason *string              `json:"rejection_reason"`
	EvidenceURLs    []string             `json:"evidence_urls"`
	StatusHistory   []StatusHistoryEntry `json:"status_history"`
	Version         int                  `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	ResolvedAt      *time.Time           `json:"resolved_at"`
}

// IsAssigned reports whether a responder is bound to the incident.
func (i *Incident) IsAssigned() bool {
	return i.AssignedTo != nil && *i.AssignedTo != ""
}

// IsAssignedTo reports whether the given user is the current assignee.
func (i *Incident) IsAssignedTo(userID string) bool {
	return i.IsAssigned() && *i.AssignedTo == userID
}

// LastEntry returns the most recent history entry, or nil for an empty history.
func (i *Incident) LastEntry() *StatusHistoryEntry {
	if len(i.StatusHistory) == 0 {
		return nil
	}
	return &i.StatusHistory[len(i.StatusHistory)-1]
}

// ClearAssignment removes the current assignee.
func (i *Incident) ClearAssignment() {
	i.AssignedTo = nil
	i.AssignedToName = nil
	i.AssignedToRole = nil
}
