package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used for shipping dates on the wire and in carrier names.
const DateLayout = "02/01/2006"

// OrderLine is a row as delivered by an order source, before numeric parsing.
type OrderLine struct {
	ProductCode  string    `json:"productCode"`
	Quantity     int       `json:"quantity"`
	Ratio        string    `json:"ratio"`
	LogisticKey  string    `json:"logisticKey"`
	ChannelCode  string    `json:"channelCode"`
	Label        string    `json:"label,omitempty"`
	Variety      string    `json:"variety,omitempty"`
	ClientID     string    `json:"clientId,omitempty"`
	ShippingDate time.Time `json:"shippingDate"`
	Priority     int       `json:"priority,omitempty"`
}

// DemandRecord is one parsed order line. Quantity and Ratio shrink in place
// when the record is partially placed.
type DemandRecord struct {
	ProductCode  string
	Quantity     int
	Ratio        decimal.Decimal
	LogisticKey  string
	ChannelCode  string
	Label        string
	Variety      string
	ClientID     string
	ShippingDate time.Time
	Priority     int
}

// NewDemandRecord validates an order line and parses its ratio.
func NewDemandRecord(line OrderLine) (*DemandRecord, error) {
	code := strings.TrimSpace(line.ProductCode)
	if code == "" {
		return nil, ErrMissingProduct
	}
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("product %s: %w", code, ErrInvalidQuantity)
	}
	ratio, err := ParseRatio(line.Ratio)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", code, err)
	}

	label := strings.TrimSpace(line.Label)
	if label == "" {
		label = strings.TrimSpace(line.ChannelCode)
	}

	return &DemandRecord{
		ProductCode:  code,
		Quantity:     line.Quantity,
		Ratio:        ratio,
		LogisticKey:  strings.TrimSpace(line.LogisticKey),
		ChannelCode:  strings.TrimSpace(line.ChannelCode),
		Label:        label,
		Variety:      strings.TrimSpace(line.Variety),
		ClientID:     strings.TrimSpace(line.ClientID),
		ShippingDate: line.ShippingDate,
		Priority:     line.Priority,
	}, nil
}

// Line converts the record back to its wire form, reflecting any in-place edits.
func (r *DemandRecord) Line() OrderLine {
	return OrderLine{
		ProductCode:  r.ProductCode,
		Quantity:     r.Quantity,
		Ratio:        r.Ratio.String(),
		LogisticKey:  r.LogisticKey,
		ChannelCode:  r.ChannelCode,
		Label:        r.Label,
		Variety:      r.Variety,
		ClientID:     r.ClientID,
		ShippingDate: r.ShippingDate,
		Priority:     r.Priority,
	}
}

// ParseRatio parses a footprint ratio that may use a decimal comma.
// "1,5" and "1.5" are equivalent; in "1.234,5" the dot is a thousands separator.
func ParseRatio(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty value: %w", ErrMalformedRatio)
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %q: %w", raw, ErrMalformedRatio)
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("value %q: %w", raw, ErrMalformedRatio)
	}
	return value, nil
}
