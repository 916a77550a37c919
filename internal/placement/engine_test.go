package placement

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

var euro = domain.CarrierType{Key: domain.CarrierEuro, CodeName: "Euro", BaseUnit: 8}

func record(code string, qty int, ratio string) *domain.DemandRecord {
	return &domain.DemandRecord{
		ProductCode: code,
		Quantity:    qty,
		Ratio:       decimal.RequireFromString(ratio),
		LogisticKey: "L1",
		ChannelCode: "B2C",
	}
}

func carriers(capacities ...int) []*domain.Carrier {
	out := make([]*domain.Carrier, len(capacities))
	for i, c := range capacities {
		out[i] = domain.NewCarrier(fmt.Sprintf("PED %d", i+1), euro, c, i+1, "", domain.SplitFull)
	}
	return out
}

func newBatch(policy Policy, cs []*domain.Carrier, records ...*domain.DemandRecord) Batch {
	return Batch{
		Carriers:    cs,
		Pool:        domain.NewPool(records),
		Processed:   domain.NewProcessedSet(),
		LogisticKey: "L1",
		Policy:      policy,
	}
}

func summary(rows []domain.Row) string {
	out := ""
	for _, r := range rows {
		out += fmt.Sprintf("%s:%d@%s;", r.ProductCode, r.Quantity, r.CarrierName)
	}
	return out
}

func place(t *testing.T, b Batch, opts ...Option) []domain.Row {
	t.Helper()
	rows, err := New(zaptest.NewLogger(t), opts...).Place(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rows
}

func TestPlaceWholeRecords(t *testing.T) {
	t.Parallel()

	cs := carriers(64)
	b := newBatch(VarietyFirst, cs, record("A", 10, "10"), record("B", 30, "20"))

	rows := place(t, b)

	if got := summary(rows); got != "B:30@PED 1;A:10@PED 1;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if b.Pool.Len() != 0 || b.Processed.Len() != 2 {
		t.Fatalf("expected all records consumed, pool=%d processed=%d", b.Pool.Len(), b.Processed.Len())
	}
	if !cs[0].Remaining.Equal(decimal.NewFromInt(34)) {
		t.Fatalf("expected remaining 34, got %s", cs[0].Remaining)
	}
	if rows[0].CarrierType != "Euro" || rows[0].CarrierNumber != 1 {
		t.Fatalf("unexpected carrier details in row %+v", rows[0])
	}
}

func TestPlaceSplitsRecordAcrossCarriers(t *testing.T) {
	t.Parallel()

	cs := carriers(10, 10)
	rec := record("P", 20, "16")
	b := newBatch(VarietyFirst, cs, rec)

	rows := place(t, b)

	if got := summary(rows); got != "P:12@PED 1;P:8@PED 2;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if !cs[0].Remaining.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("expected first carrier remaining 0.4, got %s", cs[0].Remaining)
	}
	if !cs[1].Remaining.Equal(decimal.RequireFromString("3.6")) {
		t.Fatalf("expected second carrier remaining 3.6, got %s", cs[1].Remaining)
	}
	if b.Pool.Len() != 0 || !b.Processed.Has("P") {
		t.Fatalf("expected record to be consumed after second carrier")
	}
}

func TestPlaceLeavesPartialRecordInPool(t *testing.T) {
	t.Parallel()

	cs := carriers(10)
	rec := record("P", 20, "16")
	b := newBatch(VarietyFirst, cs, rec)

	rows := place(t, b)

	if len(rows) != 1 || rows[0].Quantity != 12 {
		t.Fatalf("unexpected rows %s", summary(rows))
	}
	if b.Pool.Len() != 1 || b.Processed.Has("P") {
		t.Fatalf("expected partially placed record to stay pending")
	}
	if rec.Quantity != 8 || !rec.Ratio.Equal(decimal.RequireFromString("6.4")) {
		t.Fatalf("expected record to shrink in place, got qty=%d ratio=%s", rec.Quantity, rec.Ratio)
	}
}

func TestPlaceSkipsRecordsWithoutAFittingShare(t *testing.T) {
	t.Parallel()

	cs := carriers(10)
	big := record("BIG", 2, "50")
	small := record("S", 1, "3")
	small.Variety = "Z"
	b := newBatch(VarietyFirst, cs, big, small)

	rows := place(t, b)

	if got := summary(rows); got != "S:1@PED 1;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if big.Quantity != 2 || !big.Ratio.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("skipped record must not be modified")
	}
	if !cs[0].Remaining.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("skipping must not consume capacity, remaining %s", cs[0].Remaining)
	}
}

func TestPlaceFitUsesRoundedCapacity(t *testing.T) {
	t.Parallel()

	cs := carriers(4)
	cs[0].Remaining = decimal.RequireFromString("3.6")
	b := newBatch(VarietyFirst, cs, record("A", 3, "3.9"))

	rows := place(t, b)

	if got := summary(rows); got != "A:3@PED 1;" {
		t.Fatalf("expected record to fit whole, got %s", got)
	}
	if cs[0].Used().GreaterThan(decimal.NewFromInt(int64(cs[0].Capacity + 1))) {
		t.Fatalf("capacity exceeded beyond tolerance: used %s", cs[0].Used())
	}
}

func TestPartialQuantityFloorsTheShare(t *testing.T) {
	testCases := []struct {
		remaining string
		qty       int
		ratio     string
		want      int
	}{
		{remaining: "10", qty: 10, ratio: "20", want: 5},
		{remaining: "9.9", qty: 10, ratio: "20", want: 4},
		{remaining: "0.99", qty: 1, ratio: "1.5", want: 0},
		{remaining: "0", qty: 10, ratio: "20", want: 0},
	}

	for _, tc := range testCases {
		got := partialQuantity(decimal.RequireFromString(tc.remaining), record("A", tc.qty, tc.ratio))
		if got != tc.want {
			t.Fatalf("partialQuantity(%s, %d x %s) = %d, want %d", tc.remaining, tc.qty, tc.ratio, got, tc.want)
		}
	}
}

func TestVarietyFirstOrdering(t *testing.T) {
	t.Parallel()

	a := record("A", 5, "5")
	a.Variety = "Agria"
	mix := record("M", 2, "2")
	mix.Variety = "MIX"
	b1 := record("B1", 4, "4")
	b1.Variety = "Bintje"
	b2 := record("B2", 6, "6")
	b2.Variety = "Bintje"

	b := newBatch(VarietyFirst, carriers(100), a, mix, b1, b2)
	rows := place(t, b)

	if got := summary(rows); got != "M:2@PED 1;B2:6@PED 1;B1:4@PED 1;A:5@PED 1;" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestVarietyFirstCustomMixedLabel(t *testing.T) {
	t.Parallel()

	big := record("BIG", 10, "10")
	big.Variety = "Agria"
	mixed := record("MX", 1, "1")
	mixed.Variety = "Misto"

	b := newBatch(VarietyFirst, carriers(100), big, mixed)
	rows := place(t, b, WithMixedVariety("Misto"))

	if got := summary(rows); got != "MX:1@PED 1;BIG:10@PED 1;" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestVarietyBucketRecordOrdering(t *testing.T) {
	t.Parallel()

	early := record("E", 5, "1")
	early.ShippingDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := record("L", 5, "1")
	late.ShippingDate = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	large := record("X", 9, "1")

	b := newBatch(VarietyFirst, carriers(100), early, late, large)
	rows := place(t, b)

	if got := summary(rows); got != "X:9@PED 1;L:5@PED 1;E:5@PED 1;" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestClientBlockPlacesWholeClientsOnly(t *testing.T) {
	t.Parallel()

	small1 := record("S1", 2, "2")
	small1.ClientID = "small"
	small2 := record("S2", 3, "3")
	small2.ClientID = "small"
	big1 := record("B1", 4, "4")
	big1.ClientID = "big"
	big2 := record("B2", 5, "5")
	big2.ClientID = "big"

	cs := carriers(8, 10)
	b := newBatch(ClientBlock, cs, small1, big1, small2, big2)
	rows := place(t, b)

	if got := summary(rows); got != "S1:2@PED 1;S2:3@PED 1;B1:4@PED 2;B2:5@PED 2;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if b.Pool.Len() != 0 {
		t.Fatalf("expected every client to be placed")
	}
}

func TestClientBlockSkipsClientThatNeverFits(t *testing.T) {
	t.Parallel()

	huge := record("H", 20, "20")
	huge.ClientID = "huge"
	tiny := record("T", 1, "1")
	tiny.ClientID = "tiny"

	b := newBatch(ClientBlock, carriers(8), huge, tiny)
	rows := place(t, b)

	if got := summary(rows); got != "T:1@PED 1;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if b.Pool.Len() != 1 || huge.Quantity != 20 {
		t.Fatalf("client that does not fit must stay untouched in the pool")
	}
}

func TestPriorityOrdered(t *testing.T) {
	t.Parallel()

	low := record("LOW", 4, "4")
	low.Priority = 1
	high := record("HIGH", 4, "4")
	high.Priority = 5
	mid := record("MID", 4, "4")
	mid.Priority = 3

	b := newBatch(PriorityOrdered, carriers(4, 4), low, high, mid)
	rows := place(t, b)

	if got := summary(rows); got != "HIGH:4@PED 1;MID:4@PED 2;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if remaining := b.Pool.Records(); len(remaining) != 1 || remaining[0] != low {
		t.Fatalf("expected lowest priority to remain pending")
	}
}

func TestDirectIgnoresCapacity(t *testing.T) {
	t.Parallel()

	cs := carriers(5)
	b := newBatch(Direct, cs, record("A", 10, "4"), record("B", 10, "4"))
	rows := place(t, b)

	if got := summary(rows); got != "A:10@PED 1;B:10@PED 1;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if !cs[0].Remaining.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("expected capacity to go negative, got %s", cs[0].Remaining)
	}
}

func TestPlaceOnlyTouchesItsLogisticGroup(t *testing.T) {
	t.Parallel()

	other := record("O", 1, "1")
	other.LogisticKey = "L2"
	b := newBatch(VarietyFirst, carriers(10), record("A", 1, "1"), other)
	rows := place(t, b)

	if got := summary(rows); got != "A:1@PED 1;" {
		t.Fatalf("unexpected rows %s", got)
	}
	if b.Pool.Len() != 1 {
		t.Fatalf("expected other group's record to stay pending")
	}
}

func TestPlaceErrors(t *testing.T) {
	t.Parallel()

	e := New(nil)
	if _, err := e.Place(newBatch("random", carriers(1))); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
	if _, err := e.Place(newBatch(Direct, nil, record("A", 1, "1"))); !errors.Is(err, ErrNoCarriers) {
		t.Fatalf("expected ErrNoCarriers, got %v", err)
	}
	if _, err := e.Place(Batch{Policy: VarietyFirst}); err == nil {
		t.Fatalf("expected error for missing pool")
	}
}

func TestPlaceConservesQuantityAndCapacity(t *testing.T) {
	t.Parallel()

	var records []*domain.DemandRecord
	ordered := 0
	for i := 1; i <= 25; i++ {
		qty := 3 + i%7
		ratio := decimal.NewFromInt(int64(qty)).Mul(decimal.RequireFromString("0.75"))
		r := record(fmt.Sprintf("P%02d", i), qty, ratio.String())
		r.Variety = []string{"MIX", "Agria", "Bintje"}[i%3]
		records = append(records, r)
		ordered += qty
	}

	cs := carriers(16, 16, 16, 16, 16, 16, 16, 16)
	b := newBatch(VarietyFirst, cs, records...)
	rows := place(t, b)

	placed := 0
	for _, r := range rows {
		placed += r.Quantity
	}
	pending := 0
	for _, r := range b.Pool.Records() {
		pending += r.Quantity
	}
	if placed+pending != ordered {
		t.Fatalf("conservation violated: placed %d + pending %d != ordered %d", placed, pending, ordered)
	}
	for _, c := range cs {
		if c.Used().GreaterThan(decimal.NewFromInt(int64(c.Capacity + 1))) {
			t.Fatalf("carrier %s over capacity: used %s of %d", c.Name, c.Used(), c.Capacity)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	cases := map[string]Policy{
		"":              VarietyFirst,
		"client_block":  ClientBlock,
		" PRIORITY ":    PriorityOrdered,
		"direct":        Direct,
		"variety_first": VarietyFirst,
	}
	for raw, want := range cases {
		got, err := ParsePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q): expected %s, got %s (%v)", raw, want, got, err)
		}
	}
	if _, err := ParsePolicy("best_fit"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}
