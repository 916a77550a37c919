package dispatch

import "github.com/eugenenazirov/pallet-allocator/internal/domain"

// Kind tags an Outcome.
type Kind string

const (
	Completed           Kind = "completed"
	EmptyInput          Kind = "empty_input"
	PartialWithUnplaced Kind = "partial"
	Fatal               Kind = "fatal"
)

// Reason explains why a record was not placed.
type Reason string

const (
	ReasonMalformedRatio      Reason = "malformed_ratio"
	ReasonInvalidRecord       Reason = "invalid_record"
	ReasonNoCapacityTier      Reason = "no_capacity_tier"
	ReasonImpossiblePlacement Reason = "impossible_placement"
	// ReasonAlreadySatisfied marks a repeat of a product code in a later
	// logistic group after the code was fully placed.
	ReasonAlreadySatisfied Reason = "already_satisfied"
)

// Unmet reports whether the reason leaves demand unserved. Satisfied
// repeats do not.
func (r Reason) Unmet() bool {
	return r != ReasonAlreadySatisfied
}

// Unplaced reports a record that is not on any carrier at the end of a run.
// Quantity is what is left of the record, after any partial placement.
type Unplaced struct {
	ProductCode string `json:"productCode"`
	LogisticKey string `json:"logisticKey,omitempty"`
	Quantity    int    `json:"quantity"`
	Ratio       string `json:"ratio,omitempty"`
	Reason      Reason `json:"reason"`
	Detail      string `json:"detail,omitempty"`
}

// Outcome is the result of one run. Rows and Unplaced are only set for
// Completed and PartialWithUnplaced (Unplaced may also list rejected input
// of an EmptyInput run). Cause is set for Fatal and EmptyInput.
type Outcome struct {
	RunID     string                `json:"runId"`
	Kind      Kind                  `json:"kind"`
	Rows      []domain.Row          `json:"rows"`
	Unplaced  []Unplaced            `json:"unplaced"`
	Numbering domain.NumberingState `json:"numbering"`
	Cause     error                 `json:"-"`
}

// Err returns the cause of a Fatal or EmptyInput outcome.
func (o Outcome) Err() error {
	return o.Cause
}

// Placed sums the quantity on every row.
func (o Outcome) Placed() int {
	total := 0
	for _, r := range o.Rows {
		total += r.Quantity
	}
	return total
}

func fatal(runID string, numbering domain.NumberingState, cause error) Outcome {
	return Outcome{RunID: runID, Kind: Fatal, Numbering: numbering, Cause: cause}
}
