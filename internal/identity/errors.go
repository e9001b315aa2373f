package identity

import "errors"

// Repository errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already registered")
	ErrEmailExists  = errors.New("email already in use")
)

// Service errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrValidation   = errors.New("validation error")
)
