package notifications

import "errors"

// Repository errors.
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// Service errors.
var (
	ErrInvalidNotification = errors.New("invalid notification")
)
