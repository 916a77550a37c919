package planner

import (
	"fmt"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

// Rules carries the carrier types and their capacity bounds per category.
type Rules struct {
	Types    map[domain.CarrierKey]domain.CarrierType
	Capacity map[domain.Category]map[domain.CarrierKey]domain.CapacityRule
}

// DefaultRules returns the limits used by the warehouse: Euro pallets hold
// 56..64 boxes, Industrial 70..80, with tighter limits for Kievit orders.
func DefaultRules() Rules {
	euro := domain.CapacityRule{Min: 56, Max: 64, LimitChangeFrom: 10}
	industrial := domain.CapacityRule{Min: 70, Max: 80, LimitChangeFrom: 14}

	return Rules{
		Types: map[domain.CarrierKey]domain.CarrierType{
			domain.CarrierEuro:            {Key: domain.CarrierEuro, CodeName: "Euro", BaseUnit: 8},
			domain.CarrierIndustrial:      {Key: domain.CarrierIndustrial, CodeName: "Industrial", BaseUnit: 10},
			domain.CarrierAlternativeEuro: {Key: domain.CarrierAlternativeEuro, CodeName: "Euro", BaseUnit: 8},
		},
		Capacity: map[domain.Category]map[domain.CarrierKey]domain.CapacityRule{
			domain.CategoryDefault: {
				domain.CarrierEuro:       euro,
				domain.CarrierIndustrial: industrial,
			},
			domain.CategoryPoland: {
				domain.CarrierEuro: euro,
			},
			domain.CategoryKievit: {
				domain.CarrierEuro:       {Min: 48, Max: 56, LimitChangeFrom: 10},
				domain.CarrierIndustrial: {Min: 60, Max: 70, LimitChangeFrom: 14},
			},
		},
	}
}

// Type returns the carrier type registered for key.
func (r Rules) Type(key domain.CarrierKey) (domain.CarrierType, bool) {
	t, ok := r.Types[key]
	if ok && t.Key == "" {
		t.Key = key
	}
	return t, ok
}

// Rule resolves the capacity rule of a type within a category. The
// alternative Euro type shares the Euro limits, and categories without an
// explicit rule for a type fall back to the default category.
func (r Rules) Rule(category domain.Category, key domain.CarrierKey) (domain.CapacityRule, error) {
	candidates := []domain.CarrierKey{key}
	if key == domain.CarrierAlternativeEuro {
		candidates = append(candidates, domain.CarrierEuro)
	}
	for _, cat := range []domain.Category{category, domain.CategoryDefault} {
		for _, k := range candidates {
			if rule, ok := r.Capacity[cat][k]; ok && rule.Min > 0 && rule.Max >= rule.Min {
				return rule, nil
			}
		}
	}
	return domain.CapacityRule{}, fmt.Errorf("%s/%s: %w", category, key, ErrMissingRule)
}

// Validate checks every registered type and rule.
func (r Rules) Validate() error {
	for key, t := range r.Types {
		if t.BaseUnit <= 0 || t.CodeName == "" {
			return fmt.Errorf("carrier type %s: code name and positive base unit required", key)
		}
	}
	for category, rules := range r.Capacity {
		for key, rule := range rules {
			if rule.Min <= 0 || rule.Max < rule.Min || rule.LimitChangeFrom < 0 {
				return fmt.Errorf("%s/%s: invalid capacity bounds %d..%d", category, key, rule.Min, rule.Max)
			}
		}
	}
	return nil
}

// typeOrder is the fixed fill priority of each category.
func typeOrder(category domain.Category) []domain.CarrierKey {
	switch category {
	case domain.CategoryPoland:
		return []domain.CarrierKey{domain.CarrierEuro}
	case domain.CategoryKievit:
		return []domain.CarrierKey{domain.CarrierEuro, domain.CarrierIndustrial}
	case domain.CategoryDefault:
		return []domain.CarrierKey{domain.CarrierEuro, domain.CarrierIndustrial}
	}
	return nil
}

// resolveCapacity converts a tier count into (carrierCount, perCarrier).
// When the chosen limit is the ceiling of the type, the tier count stands;
// otherwise the count is recomputed from the chosen limit.
func resolveCapacity(total, tierCount int, rule domain.CapacityRule, userMax int) (int, int) {
	if tierCount <= 0 || total <= 0 {
		return 0, 0
	}

	maxPer := rule.Min
	switch {
	case userMax > 0:
		maxPer = userMax
	case tierCount >= rule.LimitChangeFrom:
		maxPer = rule.Max
	}

	if maxPer == rule.Max {
		return tierCount, maxPer
	}
	return ceilDiv(total, maxPer), maxPer
}

func ceilDiv(a, b int) int {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
