package placement

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

// DefaultMixedVariety is the variety label placed first by VarietyFirst.
const DefaultMixedVariety = "MIX"

// Batch is the input of one placement pass over a logistic group.
type Batch struct {
	Carriers    []*domain.Carrier
	Pool        *domain.Pool
	Processed   *domain.ProcessedSet
	LogisticKey string
	Policy      Policy
}

// Engine places demand records onto carriers.
type Engine struct {
	mixedVariety string
	logger       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMixedVariety overrides the variety bucket that is always filled first.
func WithMixedVariety(label string) Option {
	return func(e *Engine) {
		e.mixedVariety = label
	}
}

// New constructs an Engine.
func New(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{mixedVariety: DefaultMixedVariety, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Place fills b.Carriers in order and returns the allocation rows. Records
// placed whole are marked processed and removed from the pool; partially
// placed records are shrunk in place.
func (e *Engine) Place(b Batch) ([]domain.Row, error) {
	if b.Pool == nil || b.Processed == nil {
		return nil, fmt.Errorf("place %s: pool and processed set are required", b.LogisticKey)
	}

	var rows []domain.Row
	switch b.Policy {
	case VarietyFirst, "":
		for _, c := range b.Carriers {
			ordered := e.byVariety(b.Pool.Eligible(b.LogisticKey, b.Processed))
			rows = append(rows, e.fill(c, ordered, b)...)
		}
	case PriorityOrdered:
		ordered := byPriority(b.Pool.Eligible(b.LogisticKey, b.Processed))
		for _, c := range b.Carriers {
			rows = append(rows, e.fill(c, ordered, b)...)
		}
	case ClientBlock:
		for _, c := range b.Carriers {
			rows = append(rows, e.fillClients(c, b)...)
		}
	case Direct:
		if len(b.Carriers) == 0 {
			return nil, fmt.Errorf("place %s: %w", b.LogisticKey, ErrNoCarriers)
		}
		rows = e.fillDirect(b.Carriers[0], b)
	default:
		return nil, fmt.Errorf("place %s: %q: %w", b.LogisticKey, b.Policy, ErrUnknownPolicy)
	}

	for _, c := range b.Carriers {
		e.logger.Debug("carrier filled",
			zap.String("carrier", c.Name),
			zap.Int("capacity", c.Capacity),
			zap.String("remaining", c.Remaining.String()),
		)
	}
	return rows, nil
}

// fill runs the per-record loop for one carrier over records in the given order.
func (e *Engine) fill(c *domain.Carrier, records []*domain.DemandRecord, b Batch) []domain.Row {
	var rows []domain.Row
	for _, r := range records {
		if !c.Remaining.IsPositive() {
			break
		}
		if row, ok := placeRecord(c, r, b); ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// fillClients places whole client blocks that fit the current remaining capacity.
func (e *Engine) fillClients(c *domain.Carrier, b Batch) []domain.Row {
	var rows []domain.Row
	for _, block := range byClient(b.Pool.Eligible(b.LogisticKey, b.Processed)) {
		if !c.Remaining.IsPositive() {
			break
		}
		if block.ratio.GreaterThan(c.Remaining) {
			continue
		}
		for _, r := range block.records {
			rows = append(rows, placeWhole(c, r, b))
		}
	}
	return rows
}

func (e *Engine) fillDirect(c *domain.Carrier, b Batch) []domain.Row {
	var rows []domain.Row
	for _, r := range b.Pool.Eligible(b.LogisticKey, b.Processed) {
		rows = append(rows, placeWhole(c, r, b))
	}
	return rows
}

// placeRecord places r whole when its ratio fits the rounded remaining
// capacity, otherwise the largest proportional share that fits.
func placeRecord(c *domain.Carrier, r *domain.DemandRecord, b Batch) (domain.Row, bool) {
	if b.Processed.Has(r.ProductCode) {
		return domain.Row{}, false
	}
	if r.Ratio.LessThanOrEqual(c.Remaining.Round(0)) {
		return placeWhole(c, r, b), true
	}

	qty := partialQuantity(c.Remaining, r)
	if qty <= 0 {
		return domain.Row{}, false
	}
	if qty >= r.Quantity {
		return placeWhole(c, r, b), true
	}

	consumed := r.Ratio.Mul(decimal.NewFromInt(int64(qty))).Div(decimal.NewFromInt(int64(r.Quantity)))
	c.Remaining = c.Remaining.Sub(consumed)
	r.Quantity -= qty
	r.Ratio = r.Ratio.Sub(consumed)
	return newRow(c, r, qty), true
}

func placeWhole(c *domain.Carrier, r *domain.DemandRecord, b Batch) domain.Row {
	row := newRow(c, r, r.Quantity)
	c.Remaining = c.Remaining.Sub(r.Ratio)
	b.Processed.Add(r.ProductCode)
	b.Pool.Remove(r)
	return row
}

// partialQuantity is the number of units of r whose footprint fits in remaining.
// The share is floored, not rounded: rounding up could overfill the carrier.
func partialQuantity(remaining decimal.Decimal, r *domain.DemandRecord) int {
	if !remaining.IsPositive() || !r.Ratio.IsPositive() {
		return 0
	}
	share := decimal.NewFromInt(int64(r.Quantity)).Mul(remaining).Div(r.Ratio)
	return int(share.Floor().IntPart())
}

func newRow(c *domain.Carrier, r *domain.DemandRecord, qty int) domain.Row {
	return domain.Row{
		ProductCode:   r.ProductCode,
		Quantity:      qty,
		CarrierName:   c.Name,
		CarrierType:   c.Type.CodeName,
		Letter:        c.Letter,
		CarrierNumber: c.Number,
		LogisticKey:   r.LogisticKey,
	}
}

// byVariety orders records bucket by bucket: the mixed variety first, then by
// descending bucket footprint. Inside a bucket records go by descending
// quantity, logistic key and shipping date.
func (e *Engine) byVariety(records []*domain.DemandRecord) []*domain.DemandRecord {
	type bucket struct {
		variety string
		ratio   decimal.Decimal
		records []*domain.DemandRecord
	}

	index := make(map[string]int)
	var buckets []*bucket
	for _, r := range records {
		i, ok := index[r.Variety]
		if !ok {
			i = len(buckets)
			index[r.Variety] = i
			buckets = append(buckets, &bucket{variety: r.Variety, ratio: decimal.Zero})
		}
		buckets[i].records = append(buckets[i].records, r)
		buckets[i].ratio = buckets[i].ratio.Add(r.Ratio)
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		if mixedA, mixedB := a.variety == e.mixedVariety, b.variety == e.mixedVariety; mixedA != mixedB {
			return mixedA
		}
		if c := a.ratio.Cmp(b.ratio); c != 0 {
			return c > 0
		}
		return a.variety < b.variety
	})

	out := make([]*domain.DemandRecord, 0, len(records))
	for _, bk := range buckets {
		sort.SliceStable(bk.records, func(i, j int) bool {
			a, b := bk.records[i], bk.records[j]
			if a.Quantity != b.Quantity {
				return a.Quantity > b.Quantity
			}
			if a.LogisticKey != b.LogisticKey {
				return a.LogisticKey > b.LogisticKey
			}
			return a.ShippingDate.After(b.ShippingDate)
		})
		out = append(out, bk.records...)
	}
	return out
}

func byPriority(records []*domain.DemandRecord) []*domain.DemandRecord {
	out := make([]*domain.DemandRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

type clientBlock struct {
	client  string
	ratio   decimal.Decimal
	records []*domain.DemandRecord
}

// byClient groups records per client, largest aggregate footprint first.
func byClient(records []*domain.DemandRecord) []*clientBlock {
	index := make(map[string]int)
	var blocks []*clientBlock
	for _, r := range records {
		i, ok := index[r.ClientID]
		if !ok {
			i = len(blocks)
			index[r.ClientID] = i
			blocks = append(blocks, &clientBlock{client: r.ClientID, ratio: decimal.Zero})
		}
		blocks[i].records = append(blocks[i].records, r)
		blocks[i].ratio = blocks[i].ratio.Add(r.Ratio)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].ratio.GreaterThan(blocks[j].ratio)
	})
	return blocks
}
