package domain

import "time"

// MessageType distinguishes people from the system in an incident thread.
type MessageType string

// Message types.
const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

// Message is one entry of an incident discussion thread.
type Message struct {
	ID         string      `json:"id"`
	IncidentID string      `json:"incident_id"`
	UserID     string      `json:"user_id"`
	UserName   string      `json:"user_name"`
	UserRole   string      `json:"user_role"`
	Message    string      `json:"message"`
	Type       MessageType `json:"type"`
	Timestamp  time.Time   `json:"timestamp"`
}
