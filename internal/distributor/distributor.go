// Package distributor splits a quantity over the carriers of a capacity plan
// entry and names each carrier from the run's numbering sequence.
package distributor

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
)

const namePrefix = "PED"

// Logistic carries the details printed on every carrier of a logistic group.
type Logistic struct {
	ChannelCode string
	Label       string
	Date        time.Time
}

// Request describes one distribution.
type Request struct {
	Type         domain.CarrierType
	CarrierCount int
	PerCarrier   int
	Total        int
	Logistic     Logistic
}

// Distribution is the result of splitting Request.Total.
// Remainder is what did not fit on the requested carriers.
type Distribution struct {
	Carriers  []*domain.Carrier
	Remainder int
	Numbering domain.NumberingState
}

// Allotted sums the quantity given to the carriers.
func (d Distribution) Allotted() int {
	total := 0
	for _, c := range d.Carriers {
		total += c.Capacity
	}
	return total
}

// Distributor builds carriers for plan entries.
type Distributor struct {
	alphaChannel string
	logger       *zap.Logger
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithAlphaChannel sets the channel whose carriers get a letter suffix.
func WithAlphaChannel(code string) Option {
	return func(d *Distributor) {
		d.alphaChannel = strings.TrimSpace(code)
	}
}

// New constructs a Distributor.
func New(logger *zap.Logger, opts ...Option) *Distributor {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Distributor{logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Distribute splits req.Total over at most req.CarrierCount carriers starting
// from numbering. The input state is not modified; the advanced state is
// returned in the Distribution for the caller to commit.
func (d *Distributor) Distribute(req Request, numbering domain.NumberingState) (Distribution, error) {
	if req.CarrierCount <= 0 || req.PerCarrier <= 0 || req.Total < 0 || req.Type.BaseUnit <= 0 {
		return Distribution{Remainder: req.Total, Numbering: numbering}, fmt.Errorf(
			"distribute %s: count=%d per=%d total=%d: %w",
			req.Type.CodeName, req.CarrierCount, req.PerCarrier, req.Total, ErrInvalidRequest)
	}

	state := numbering
	remaining := req.Total
	toFill := req.CarrierCount
	carriers := make([]*domain.Carrier, 0, req.CarrierCount)

	for i := 1; i <= req.CarrierCount && remaining > 0; i++ {
		state.LastNumber++
		letter := ""
		if d.alphaChannel != "" && req.Logistic.ChannelCode == d.alphaChannel {
			state.LastLetter = domain.NextLetter(state.LastLetter)
			letter = state.LastLetter
		}
		name := carrierName(state.LastNumber, letter, req.Logistic)

		quantity, split := allotment(remaining, toFill, req.PerCarrier, req.Type.BaseUnit)
		if split == domain.SplitRaw {
			d.logger.Warn("no base unit multiple within carrier capacity, using raw split",
				zap.String("carrier", name),
				zap.String("type", req.Type.CodeName),
				zap.Int("quantity", quantity),
				zap.Int("base_unit", req.Type.BaseUnit),
				zap.Int("per_carrier", req.PerCarrier),
			)
		}

		carriers = append(carriers, domain.NewCarrier(name, req.Type, quantity, state.LastNumber, letter, split))
		remaining -= quantity
		toFill--
	}

	d.logger.Debug("carriers distributed",
		zap.String("type", req.Type.CodeName),
		zap.Int("requested", req.CarrierCount),
		zap.Int("built", len(carriers)),
		zap.Int("total", req.Total),
		zap.Int("remainder", remaining),
		zap.Int("last_number", state.LastNumber),
	)

	return Distribution{Carriers: carriers, Remainder: remaining, Numbering: state}, nil
}

// allotment decides how much of remaining goes to the next carrier.
func allotment(remaining, toFill, per, baseUnit int) (int, domain.SplitKind) {
	if remaining < per {
		return remaining, domain.SplitRemainder
	}
	if per*toFill <= remaining {
		return per, domain.SplitFull
	}

	// more carriers than units left: never hand out an empty carrier
	raw := max(remaining/toFill, 1)
	if raw%baseUnit == 0 {
		return raw, domain.SplitEven
	}
	if multiple, ok := nextMultiple(raw, per, baseUnit); ok {
		return multiple, domain.SplitRounded
	}
	return raw, domain.SplitRaw
}

// nextMultiple returns the smallest multiple of base in [from, limit].
func nextMultiple(from, limit, base int) (int, bool) {
	candidate := (from + base - 1) / base * base
	if candidate > limit {
		return 0, false
	}
	return candidate, true
}

func carrierName(number int, letter string, logistic Logistic) string {
	date := ""
	if !logistic.Date.IsZero() {
		date = logistic.Date.Format(domain.DateLayout)
	}
	label := logistic.Label
	if label == "" {
		label = logistic.ChannelCode
	}
	return strings.TrimSpace(fmt.Sprintf("%s %d%s %s del %s", namePrefix, number, letter, label, date))
}
