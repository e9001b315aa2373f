package incidents

import "github.com/yasmineadnan/dev-mobile-react-native/internal/domain"

// transitions lists allowed targets per status. Terminal statuses have no entry.
var transitions = map[domain.IncidentStatus][]domain.IncidentStatus{
	domain.IncidentStatusOpen: {
		domain.IncidentStatusInProgress,
		domain.IncidentStatusPendingReview,
		domain.IncidentStatusApproved,
		domain.IncidentStatusRejected,
		domain.IncidentStatusClosed,
	},
	domain.IncidentStatusPendingReview: {
		domain.IncidentStatusApproved,
		domain.IncidentStatusInProgress,
		domain.IncidentStatusRejected,
		domain.IncidentStatusClosed,
	},
	domain.IncidentStatusApproved: {
		domain.IncidentStatusInProgress,
		domain.IncidentStatusRejected,
		domain.IncidentStatusClosed,
	},
	domain.IncidentStatusInProgress: {
		domain.IncidentStatusResolved,
		domain.IncidentStatusOpen,
		domain.IncidentStatusPendingReview,
		domain.IncidentStatusWaitingForResources,
		domain.IncidentStatusRejected,
		domain.IncidentStatusClosed,
	},
	domain.IncidentStatusWaitingForResources: {
		domain.IncidentStatusInProgress,
		domain.IncidentStatusResolved,
		domain.IncidentStatusRejected,
		domain.IncidentStatusClosed,
	},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to domain.IncidentStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the targets reachable from status.
func AllowedTransitions(from domain.IncidentStatus) []domain.IncidentStatus {
	allowed := transitions[from]
	out := make([]domain.IncidentStatus, len(allowed))
	copy(out, allowed)
	return out
}
