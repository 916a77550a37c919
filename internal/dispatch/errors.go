package dispatch

import "errors"

var (
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("an allocation run is already in progress")
	// ErrNoEligibleDemand marks a run that started without any valid demand.
	ErrNoEligibleDemand = errors.New("no eligible demand")
)
