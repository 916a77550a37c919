package placement

import "errors"

var (
	// ErrUnknownPolicy is returned for a policy name the engine does not implement.
	ErrUnknownPolicy = errors.New("unknown placement policy")
	// ErrNoCarriers is returned when a batch that requires a carrier has none.
	ErrNoCarriers = errors.New("placement batch has no carriers")
)
