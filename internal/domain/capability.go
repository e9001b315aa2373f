package domain

// Capability names an action gated by role.
type Capability string

// Capabilities.
const (
	CapCreateIncident   Capability = "create_incident"
	CapTransition       Capability = "transition"
	CapTransitionAny    Capability = "transition_any"
	CapChangePriority   Capability = "change_priority"
	CapApprove          Capability = "approve"
	CapReject           Capability = "reject"
	CapAssign           Capability = "assign"
	CapViewAll          Capability = "view_all"
	CapViewAnalytics    Capability = "view_analytics"
	CapManageCategories Capability = "manage_categories"
	CapManageUsers      Capability = "manage_users"
	CapMessage          Capability = "message"
)
