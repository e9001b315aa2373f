package evidence

import "errors"

// Evidence errors.
var (
	ErrInvalidURL     = errors.New("invalid evidence url")
	ErrObjectNotFound = errors.New("evidence object not found")
)
