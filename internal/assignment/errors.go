package assignment

import "errors"

// Service errors.
var (
	ErrNotAvailable = errors.New("responder not available")
)
