package incidents

import (
	"context"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

// EventKind identifies what happened to an incident.
type EventKind string

// Event kinds.
const (
	EventCreated         EventKind = "created"
	EventTransitioned    EventKind = "transitioned"
	EventAssigned        EventKind = "assigned"
	EventApproved        EventKind = "approved"
	EventRejected        EventKind = "rejected"
	EventPriorityChanged EventKind = "priority_changed"
	EventUpdated         EventKind = "updated"
)

// Event describes a committed incident change.
type Event struct {
	Kind             EventKind
	Incident         *domain.Incident
	Actor            domain.Session
	PreviousStatus   domain.IncidentStatus
	PreviousPriority domain.Priority
	PreviousAssignee *string
	Note             string
}

// Observer reacts to committed incident changes. Implementations must not
// fail the caller: errors are theirs to log.
type Observer interface {
	OnIncidentEvent(ctx context.Context, event Event)
}
