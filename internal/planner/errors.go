package planner

import "errors"

var (
	// ErrNoCapacityTier is returned when no tier row covers the requested quantity.
	ErrNoCapacityTier = errors.New("no capacity tier matches the requested quantity")
	// ErrInvalidTotal is returned when the quantity to plan is not positive.
	ErrInvalidTotal = errors.New("total quantity must be a positive integer")
	// ErrUnknownCategory is returned for categories the planner has no type order for.
	ErrUnknownCategory = errors.New("unknown capacity category")
	// ErrMissingRule is returned when a carrier type has no usable capacity rule.
	ErrMissingRule = errors.New("carrier type has no capacity rule")
)
