package replay

import "errors"

// Sentinel kinds for replay errors.
var (
	ErrNoFixtures = errors.New("no fixtures found")
	ErrFixture    = errors.New("invalid fixture")
	ErrUnhealthy  = errors.New("service unhealthy")
	ErrMismatch   = errors.New("fixtures did not match expectations")
)
