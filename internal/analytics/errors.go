package analytics

import "errors"

// Analytics errors.
var (
	ErrInvalidRange = errors.New("invalid date range")
)
