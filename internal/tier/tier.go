// Package tier classifies accounts into ordered wealth tiers from
// observed account equity. Classification is pure and total: every
// non-negative equity value maps to exactly one tier.
package tier

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Tier is one of four ordered wealth classifications.
type Tier string

const (
	Shrimp Tier = "SHRIMP"
	Retail Tier = "RETAIL"
	Fish   Tier = "FISH"
	Whale  Tier = "WHALE"
)

// All lists the tiers in ascending wealth order.
var All = []Tier{Shrimp, Retail, Fish, Whale}

// ErrInvalidThresholds is returned when the tier boundaries are not
// strictly ascending and positive.
var ErrInvalidThresholds = errors.New("tier: thresholds must satisfy 0 < shrimpMax < retailMax < whaleMin")

// Thresholds defines the tier boundaries. Boundaries are contiguous and
// non-overlapping:
//
//	equity <= ShrimpMax             → Shrimp
//	ShrimpMax < equity <= RetailMax → Retail
//	RetailMax < equity <  WhaleMin  → Fish
//	equity >= WhaleMin              → Whale
type Thresholds struct {
	ShrimpMax decimal.Decimal
	RetailMax decimal.Decimal
	WhaleMin  decimal.Decimal
}

// DefaultThresholds returns the standard boundaries:
// $5,000 / $50,000 / $1,000,000.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ShrimpMax: decimal.NewFromInt(5_000),
		RetailMax: decimal.NewFromInt(50_000),
		WhaleMin:  decimal.NewFromInt(1_000_000),
	}
}

// Validate checks that the boundaries are strictly ascending.
func (t Thresholds) Validate() error {
	if t.ShrimpMax.LessThanOrEqual(decimal.Zero) ||
		t.RetailMax.LessThanOrEqual(t.ShrimpMax) ||
		t.WhaleMin.LessThanOrEqual(t.RetailMax) {
		return ErrInvalidThresholds
	}
	return nil
}

// Classify maps account equity to its wealth tier.
func (t Thresholds) Classify(equity decimal.Decimal) Tier {
	switch {
	case equity.LessThanOrEqual(t.ShrimpMax):
		return Shrimp
	case equity.LessThanOrEqual(t.RetailMax):
		return Retail
	case equity.LessThan(t.WhaleMin):
		return Fish
	default:
		return Whale
	}
}

// Classify maps equity to a tier using the default thresholds.
func Classify(equity decimal.Decimal) Tier {
	return DefaultThresholds().Classify(equity)
}
