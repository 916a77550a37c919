package domain

import (
	"fmt"
	"sort"
)

// Tier maps a quantity range to suggested carrier counts per type.
type Tier struct {
	Category Category           `json:"category"`
	MinValue int                `json:"minValue"`
	MaxValue int                `json:"maxValue"`
	Counts   map[CarrierKey]int `json:"counts"`
}

// Count returns the suggested number of carriers of the given type.
func (t Tier) Count(key CarrierKey) int {
	return t.Counts[key]
}

// Contains reports whether total falls within the tier range, bounds included.
func (t Tier) Contains(total int) bool {
	return t.MinValue <= total && total <= t.MaxValue
}

func (t Tier) clone() Tier {
	counts := make(map[CarrierKey]int, len(t.Counts))
	for k, v := range t.Counts {
		counts[k] = v
	}
	t.Counts = counts
	return t
}

// TierTable is an in-memory snapshot of the capacity reference store.
type TierTable []Tier

// LookupTier returns the tier row covering total for the category and the
// suggested count for key. ok is false when no row matches.
func (tt TierTable) LookupTier(category Category, key CarrierKey, total int) (Tier, int, bool) {
	for _, t := range tt {
		if t.Category == category && t.Contains(total) {
			return t, t.Count(key), true
		}
	}
	return Tier{}, 0, false
}

// ForCategory returns the rows of one category sorted by MinValue.
func (tt TierTable) ForCategory(category Category) TierTable {
	out := make(TierTable, 0, len(tt))
	for _, t := range tt {
		if t.Category == category {
			out = append(out, t.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinValue < out[j].MinValue })
	return out
}

// Clone returns a deep copy of the table.
func (tt TierTable) Clone() TierTable {
	out := make(TierTable, len(tt))
	for i, t := range tt {
		out[i] = t.clone()
	}
	return out
}

// Validate checks ranges and counts and rejects overlapping rows within a category.
func (tt TierTable) Validate() error {
	byCategory := make(map[Category]TierTable)
	for i, t := range tt {
		if !t.Category.Valid() {
			return fmt.Errorf("row %d: unknown category %q: %w", i+1, t.Category, ErrInvalidTiers)
		}
		if t.MinValue < 0 || t.MaxValue < t.MinValue {
			return fmt.Errorf("row %d: range %d-%d: %w", i+1, t.MinValue, t.MaxValue, ErrInvalidTiers)
		}
		for key, count := range t.Counts {
			if count < 0 {
				return fmt.Errorf("row %d: %s count %d: %w", i+1, key, count, ErrInvalidTiers)
			}
		}
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	for category, rows := range byCategory {
		sort.Slice(rows, func(i, j int) bool { return rows[i].MinValue < rows[j].MinValue })
		for i := 1; i < len(rows); i++ {
			if rows[i].MinValue <= rows[i-1].MaxValue {
				return fmt.Errorf("%s: ranges %d-%d and %d-%d overlap: %w", category,
					rows[i-1].MinValue, rows[i-1].MaxValue, rows[i].MinValue, rows[i].MaxValue, ErrInvalidTiers)
			}
		}
	}
	return nil
}
