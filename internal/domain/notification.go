package domain

import "time"

// NotificationType classifies feed entries.
type NotificationType string

// Notification types.
const (
	NotificationIncidentCreated  NotificationType = "incident_created"
	NotificationIncidentAssigned NotificationType = "incident_assigned"
	NotificationStatusChanged    NotificationType = "status_changed"
	NotificationIncidentApproved NotificationType = "incident_approved"
	NotificationIncidentRejected NotificationType = "incident_rejected"
	NotificationPriorityChanged  NotificationType = "priority_changed"
	NotificationNewMessage       NotificationType = "new_message"
	NotificationGeneral          NotificationType = "general"
)

// Notification is an entry in a user's in-app feed.
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Type       NotificationType `json:"type"`
	IncidentID *string          `json:"incident_id"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
}
