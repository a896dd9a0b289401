package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidAgent       = errors.New("agent_id must not be empty")
	ErrInvalidTitle       = errors.New("title must be between 1 and 256 characters")
	ErrInvalidBody        = errors.New("body must be between 1 and 4096 characters")
	ErrInvalidDeviceToken = errors.New("device_token must not be empty")
	ErrInvalidPlatform    = errors.New("invalid platform: must be ios or android")
	ErrDispatchBusy       = errors.New("dispatch already in progress")
)
