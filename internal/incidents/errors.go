package incidents

import "errors"

// Incident errors.
var (
	ErrIncidentNotFound   = errors.New("incident not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrAssignmentRequired = errors.New("incident must be assigned first")
	ErrNotEditable        = errors.New("incident can no longer be edited")
	ErrInvalidScope       = errors.New("invalid incident scope")
	ErrResponderNotFound  = errors.New("responder not found")
)
