package domain

import "github.com/shopspring/decimal"

// ProcessedSet holds the product codes fully placed during a run.
type ProcessedSet struct {
	codes map[string]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{codes: make(map[string]struct{})}
}

// Add marks code as processed. It reports false if code was already present.
func (s *ProcessedSet) Add(code string) bool {
	if _, ok := s.codes[code]; ok {
		return false
	}
	s.codes[code] = struct{}{}
	return true
}

// Has reports whether code was fully placed earlier in the run.
func (s *ProcessedSet) Has(code string) bool {
	_, ok := s.codes[code]
	return ok
}

// Len returns the number of fully placed product codes.
func (s *ProcessedSet) Len() int {
	return len(s.codes)
}

// Pool keeps the pending demand of a run in input order.
type Pool struct {
	records []*DemandRecord
}

// NewPool takes ownership of records.
func NewPool(records []*DemandRecord) *Pool {
	return &Pool{records: records}
}

// Records returns the pending records in input order.
func (p *Pool) Records() []*DemandRecord {
	out := make([]*DemandRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Len returns the number of pending records.
func (p *Pool) Len() int {
	return len(p.records)
}

// Eligible returns pending records of a logistic group that are not processed.
func (p *Pool) Eligible(logisticKey string, processed *ProcessedSet) []*DemandRecord {
	var out []*DemandRecord
	for _, r := range p.records {
		if r.LogisticKey != logisticKey || processed.Has(r.ProductCode) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Satisfied returns pending records of a logistic group whose product code
// was already fully placed, typically by an earlier group of the run.
func (p *Pool) Satisfied(logisticKey string, processed *ProcessedSet) []*DemandRecord {
	var out []*DemandRecord
	for _, r := range p.records {
		if r.LogisticKey == logisticKey && processed.Has(r.ProductCode) {
			out = append(out, r)
		}
	}
	return out
}

// Remove drops record from the pool.
func (p *Pool) Remove(record *DemandRecord) {
	for i, r := range p.records {
		if r == record {
			p.records = append(p.records[:i], p.records[i+1:]...)
			return
		}
	}
}

// TotalRatio sums the footprint of records.
func TotalRatio(records []*DemandRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.Ratio)
	}
	return total
}
