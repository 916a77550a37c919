package domain

import "github.com/shopspring/decimal"

// Category selects the capacity table and carrier types used for a logistic group.
type Category string

const (
	CategoryDefault Category = "default"
	CategoryPoland  Category = "poland"
	CategoryKievit  Category = "kievit"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryDefault, CategoryPoland, CategoryKievit:
		return true
	}
	return false
}

// CarrierKey identifies a carrier type in tiers, plans and configuration.
type CarrierKey string

const (
	CarrierEuro            CarrierKey = "euro"
	CarrierIndustrial      CarrierKey = "industrial"
	CarrierAlternativeEuro CarrierKey = "alternative_euro"
)

// CarrierKeys lists every known key in declaration order.
var CarrierKeys = []CarrierKey{CarrierEuro, CarrierIndustrial, CarrierAlternativeEuro}

// CarrierType is the immutable description of a carrier class.
type CarrierType struct {
	Key      CarrierKey `json:"key" yaml:"-"`
	CodeName string     `json:"codeName" yaml:"code_name"`
	BaseUnit int        `json:"baseUnit" yaml:"base_unit"`
}

// CapacityRule bounds the per-carrier capacity of a type. Max applies once the
// tier suggests at least LimitChangeFrom carriers, Min below that.
type CapacityRule struct {
	Min             int `json:"min" yaml:"min"`
	Max             int `json:"max" yaml:"max"`
	LimitChangeFrom int `json:"limitChangeFrom" yaml:"limit_change_from"`
}

// SplitKind records which branch of the distribution produced an allotment.
type SplitKind string

const (
	SplitRemainder SplitKind = "remainder"
	SplitFull      SplitKind = "full"
	SplitEven      SplitKind = "even"
	SplitRounded   SplitKind = "rounded"
	SplitRaw       SplitKind = "raw"
)

// Carrier is one physical pallet built for a logistic group.
type Carrier struct {
	Name      string
	Type      CarrierType
	Capacity  int
	Remaining decimal.Decimal
	Number    int
	Letter    string
	Split     SplitKind
}

// NewCarrier returns a carrier whose remaining capacity equals its allotment.
func NewCarrier(name string, typ CarrierType, capacity, number int, letter string, split SplitKind) *Carrier {
	return &Carrier{
		Name:      name,
		Type:      typ,
		Capacity:  capacity,
		Remaining: decimal.NewFromInt(int64(capacity)),
		Number:    number,
		Letter:    letter,
		Split:     split,
	}
}

// Used returns the capacity consumed so far.
func (c *Carrier) Used() decimal.Decimal {
	return decimal.NewFromInt(int64(c.Capacity)).Sub(c.Remaining)
}
