package domain

import "errors"

var (
	// ErrMalformedRatio is returned when a footprint ratio cannot be parsed or is not positive.
	ErrMalformedRatio = errors.New("footprint ratio must be a positive decimal number")
	// ErrInvalidQuantity is returned when an order line carries a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrMissingProduct is returned when an order line has no product code.
	ErrMissingProduct = errors.New("product code is required")
	// ErrInvalidTiers is returned when a tier table violates validation rules.
	ErrInvalidTiers = errors.New("capacity tiers must have ordered, non-overlapping ranges and non-negative counts")
)
