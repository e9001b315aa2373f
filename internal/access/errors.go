package access

import "errors"

// ErrPermissionDenied is returned when the actor's role lacks a capability.
var ErrPermissionDenied = errors.New("permission denied")
