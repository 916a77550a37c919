package planner

import "github.com/eugenenazirov/pallet-allocator/internal/domain"

// TierLookup answers range queries against the capacity reference store.
type TierLookup interface {
	LookupTier(category domain.Category, key domain.CarrierKey, total int) (domain.Tier, int, bool)
}

// Entry is the plan for one carrier type.
// Quantity is the share of the total this type is expected to cover.
type Entry struct {
	Type         domain.CarrierType  `json:"type"`
	Rule         domain.CapacityRule `json:"rule"`
	CarrierCount int                 `json:"carrierCount"`
	PerCarrier   int                 `json:"perCarrier"`
	Quantity     int                 `json:"quantity"`
}

// Capacity returns CarrierCount * PerCarrier.
func (e Entry) Capacity() int {
	return e.CarrierCount * e.PerCarrier
}

// CapacityPlan lists carrier types in the order they should be filled.
type CapacityPlan struct {
	Category domain.Category `json:"category"`
	Total    int             `json:"total"`
	Entries  []Entry         `json:"entries"`
}

// Empty reports whether the plan allocates nothing.
func (p CapacityPlan) Empty() bool {
	return len(p.Entries) == 0
}

// Capacity sums the capacity of every entry.
func (p CapacityPlan) Capacity() int {
	total := 0
	for _, e := range p.Entries {
		total += e.Capacity()
	}
	return total
}

// Planner describes the behaviour required from a capacity planner.
type Planner interface {
	Plan(tiers TierLookup, total int, category domain.Category, opts ...Option) (CapacityPlan, error)
}

// Option tweaks a single Plan call.
type Option func(*planOptions)

type planOptions struct {
	userMax int
}

// WithUserMax overrides the per-carrier capacity chosen by the tier rules.
func WithUserMax(max int) Option {
	return func(o *planOptions) {
		o.userMax = max
	}
}
