package routing

import "errors"

var (
	// ErrNoRoute means the bidirectional search exhausted both heaps
	// without a valid meeting point.
	ErrNoRoute = errors.New("routing: no route")

	// ErrNoSegment means snapping found no edge within the search
	// radius.
	ErrNoSegment = errors.New("routing: no segment near coordinate")

	// ErrTimeout means the query deadline expired mid-search.
	ErrTimeout = errors.New("routing: query timed out")

	// ErrTooFewWaypoints means fewer than two coordinates were given.
	ErrTooFewWaypoints = errors.New("routing: need at least two waypoints")

	// ErrInvalidHint means a location hint references another dataset.
	ErrInvalidHint = errors.New("routing: hint does not match dataset")

	// ErrInternalInvariant marks states that only a preprocessing bug
	// can produce, such as an unexpandable shortcut.
	ErrInternalInvariant = errors.New("routing: internal invariant violated")
)
