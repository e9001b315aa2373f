package messages

import "errors"

// Message errors.
var (
	ErrValidation = errors.New("validation failed")
)
