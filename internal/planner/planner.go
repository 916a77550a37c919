package planner

import (
	"fmt"
	"sort"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

type tierPlanner struct {
	rules Rules
}

// New creates a Planner driven by the given rules.
func New(rules Rules) Planner {
	return &tierPlanner{rules: rules}
}

func (p *tierPlanner) Plan(tiers TierLookup, total int, category domain.Category, opts ...Option) (CapacityPlan, error) {
	if total <= 0 {
		return CapacityPlan{}, ErrInvalidTotal
	}
	order := typeOrder(category)
	if len(order) == 0 {
		return CapacityPlan{}, fmt.Errorf("%q: %w", category, ErrUnknownCategory)
	}

	var o planOptions
	for _, opt := range opts {
		opt(&o)
	}

	plan := CapacityPlan{Category: category, Total: total}

	lookupKeys := order
	if category == domain.CategoryDefault {
		lookupKeys = append([]domain.CarrierKey{domain.CarrierAlternativeEuro}, order...)
	}
	counts := make(map[domain.CarrierKey]int, len(lookupKeys))
	found := false
	for _, key := range lookupKeys {
		_, count, ok := tiers.LookupTier(category, key, total)
		if ok && count > 0 {
			found = true
		}
		counts[key] = count
	}
	if !found {
		return plan, fmt.Errorf("%s, total %d: %w", category, total, ErrNoCapacityTier)
	}

	if category == domain.CategoryDefault && counts[domain.CarrierAlternativeEuro] > 0 {
		entry, err := p.entry(category, domain.CarrierAlternativeEuro, counts[domain.CarrierAlternativeEuro], total, o.userMax)
		if err != nil {
			return CapacityPlan{Category: category, Total: total}, err
		}
		entry.Quantity = total
		plan.Entries = []Entry{p.cover(entry, 0)}
		return plan, nil
	}

	remaining := total
	for _, key := range order {
		if remaining <= 0 {
			break
		}
		if counts[key] == 0 {
			continue
		}
		entry, err := p.entry(category, key, counts[key], remaining, o.userMax)
		if err != nil {
			return CapacityPlan{Category: category, Total: total}, err
		}
		entry.Quantity = min(remaining, entry.Capacity())
		remaining -= entry.Capacity()
		plan.Entries = append(plan.Entries, entry)
	}

	if remaining > 0 {
		last := len(plan.Entries) - 1
		plan.Entries[last] = p.cover(plan.Entries[last], remaining)
	}

	if category == domain.CategoryKievit {
		sort.SliceStable(plan.Entries, func(i, j int) bool {
			return plan.Entries[i].Capacity() > plan.Entries[j].Capacity()
		})
	}

	return plan, nil
}

func (p *tierPlanner) entry(category domain.Category, key domain.CarrierKey, tierCount, total, userMax int) (Entry, error) {
	typ, ok := p.rules.Type(key)
	if !ok {
		return Entry{}, fmt.Errorf("%s: unknown carrier type: %w", key, ErrMissingRule)
	}
	rule, err := p.rules.Rule(category, key)
	if err != nil {
		return Entry{}, err
	}
	count, per := resolveCapacity(total, tierCount, rule, userMax)
	return Entry{
		Type:         typ,
		Rule:         rule,
		CarrierCount: count,
		PerCarrier:   per,
	}, nil
}

// cover extends an entry with enough extra carriers to hold rest more units
// and makes sure the entry alone is large enough for its own quantity.
func (p *tierPlanner) cover(e Entry, rest int) Entry {
	e.Quantity += rest
	if short := e.Quantity - e.Capacity(); short > 0 {
		e.CarrierCount += ceilDiv(short, e.PerCarrier)
	}
	return e
}
