package catalog

import "github.com/yasmineadnan/dev-mobile-react-native/internal/domain"

// DefaultCategories is the catalog installed by Seed on an empty store.
var DefaultCategories = []CreateInput{
	{
		Name:          "Safety",
		Priority:      domain.CategoryPriorityHigh,
		Icon:          "security",
		Color:         "red",
		Status:        domain.CategoryStatusActive,
		Subcategories: []string{"Slip, Trip & Fall", "Chemical Spill", "Fire Hazard"},
	},
	{
		Name:          "IT Infrastructure",
		Priority:      domain.CategoryPriorityNormal,
		Icon:          "dns",
		Color:         "blue",
		Status:        domain.CategoryStatusActive,
		Subcategories: []string{"Server Outage", "Network Issues", "Software Access"},
	},
	{
		Name:          "Workplace",
		Priority:      domain.CategoryPriorityCritical,
		Icon:          "apartment",
		Color:         "orange",
		Status:        domain.CategoryStatusActive,
		Subcategories: []string{"Lighting Issues", "Desk/Chair Repair", "Meeting Room Equipment"},
	},
	{
		Name:          "Public Facilities",
		Priority:      domain.CategoryPriorityLow,
		Icon:          "public",
		Color:         "gray",
		Status:        domain.CategoryStatusArchived,
		Subcategories: []string{"Restrooms", "Parking Lot", "Water Fountain"},
	},
}
