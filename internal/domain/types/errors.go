package types

import "errors"

var (
	// ErrNotFound is returned when the requirement does not exist upstream.
	ErrNotFound = errors.New("requirement not found")
	// ErrUpstreamUnavailable is returned when a collaborator cannot be reached.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrComputation marks a candidate whose data could not be scored.
	ErrComputation = errors.New("computation failed")
)
