package service

import "errors"

// Sentinel kinds returned by Service. Callers map them with errors.Is.
var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrUserNotFound    = errors.New("user not found")
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrNotStarted      = errors.New("service not started")
	ErrBackpressure    = errors.New("scoring queue full")
	ErrUpstream        = errors.New("upstream failure")
)
