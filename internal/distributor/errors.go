package distributor

import "errors"

var (
	// ErrInvalidRequest is returned when a distribution request has non-positive counts or capacity.
	ErrInvalidRequest = errors.New("carrier count and per-carrier capacity must be positive and total must not be negative")
)
