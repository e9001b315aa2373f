package domain

import "time"

// CategoryPriority is the default urgency of incidents in a category.
type CategoryPriority string

// Category priorities.
const (
	CategoryPriorityLow      CategoryPriority = "Low"
	CategoryPriorityNormal   CategoryPriority = "Normal"
	CategoryPriorityHigh     CategoryPriority = "High"
	CategoryPriorityCritical CategoryPriority = "Critical"
)

// IsValid checks if the priority is a known value.
func (p CategoryPriority) IsValid() bool {
	switch p {
	case CategoryPriorityLow, CategoryPriorityNormal, CategoryPriorityHigh, CategoryPriorityCritical:
		return true
	}
	return false
}

// CategoryStatus marks whether a category is offered to reporters.
type CategoryStatus string

// Category statuses.
const (
	CategoryStatusActive   CategoryStatus = "Active"
	CategoryStatusArchived CategoryStatus = "Archived"
)

// IsValid checks if the status is a known value.
func (s CategoryStatus) IsValid() bool {
	return s == CategoryStatusActive || s == CategoryStatusArchived
}

// Subcategory belongs to a category. ID is stable across renames.
type Subcategory struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Category groups incidents by kind.
type Category struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Priority      CategoryPriority `json:"priority"`
	Icon          string           `json:"icon"`
	Color         string           `json:"color"`
	Status        CategoryStatus   `json:"status"`
	Subcategories []Subcategory    `json:"subcategories"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
