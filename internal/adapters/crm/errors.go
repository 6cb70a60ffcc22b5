package crm

import "errors"

var (
	// ErrUnknownPlatform is returned when a platform tag has no configured connector.
	ErrUnknownPlatform = errors.New("unknown crm platform")
	// ErrUpstream is returned when the CRM answers with a non-success status.
	ErrUpstream = errors.New("crm upstream error")
	// ErrDecode is returned when a CRM payload cannot be decoded.
	ErrDecode = errors.New("crm decode error")
	// ErrTruncated is returned when a paged result exceeds the page limit.
	ErrTruncated = errors.New("crm result truncated")
)
