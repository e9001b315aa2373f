package domain

import "time"

// Role represents a user role.
type Role string

// User roles.
const (
	RoleReporter  Role = "Reporter"
	RoleReviewer  Role = "Reviewer"
	RoleResponder Role = "Responder"
	RoleAdmin     Role = "Admin"
)

// IsValid checks if the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleReporter, RoleReviewer, RoleResponder, RoleAdmin:
		return true
	}
	return false
}

// Availability is a responder's readiness to take work.
type Availability string

// Availability values.
const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

// IsValid checks if the availability is a known value.
func (a Availability) IsValid() bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// DefaultSkills is used for responders that declared no skills.
var DefaultSkills = []string{"General"}

// User is a registered person in any role.
type User struct {
	ID           string       `json:"id"`
	FullName     string       `json:"full_name"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	Department   string       `json:"department"`
	Skills       []string     `json:"skills"`
	Availability Availability `json:"availability"`
	PushToken    *string      `json:"-"`
	Location     *Location    `json:"location"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// DisplayName returns the full name, falling back to email.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// EffectiveSkills returns declared skills or DefaultSkills.
func (u *User) EffectiveSkills() []string {
	if len(u.Skills) == 0 {
		return DefaultSkills
	}
	return u.Skills
}

// Session is the authenticated actor passed into every core operation.
type Session struct {
	UserID string
	Name   string
	Role   Role
	// Email is the address verified by the auth provider, empty when the
	// token carries none.
	Email string
}

// Actor returns the name recorded in audit entries.
func (s Session) Actor() string {
	if s.Name != "" {
		return s.Name
	}
	if s.UserID != "" {
		return s.UserID
	}
	return "System"
}
