package strategy

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// ErrBelowPrecision is returned when a range around a very small price cannot be told apart
// at clmm.Precision decimal places.
var ErrBelowPrecision = fmt.Errorf("%w: price too small for the decimal precision", types.ErrValidation)

// RangeSpec describes a range relative to a reference price.
//
//	center = price * (1 + OffsetPct)
//	bounds = center -/+ price * WidthPct / 2
//
// A zero offset centers the range on the price. The range only contains the price when
// |OffsetPct| < WidthPct/2.
type RangeSpec struct {
	WidthPct  decimal.Decimal `yaml:"range_width_pct" json:"range_width_pct"`
	OffsetPct decimal.Decimal `yaml:"range_offset_pct" json:"range_offset_pct"`
}

// Validate rejects widths that cannot produce a positive, non-empty range.
func (r RangeSpec) Validate() error {
	if !r.WidthPct.IsPositive() {
		return fmt.Errorf("%w: range width must be positive, got %s", types.ErrInvalidRange, r.WidthPct)
	}
	// lower = price * (1 + offset - width/2) must stay positive
	if !decimal.NewFromInt(1).Add(r.OffsetPct).Sub(r.WidthPct.Div(two)).IsPositive() {
		return fmt.Errorf("%w: width %s with offset %s puts the lower bound at or below zero",
			types.ErrInvalidRange, r.WidthPct, r.OffsetPct)
	}
	return nil
}

// ContainsReference reports whether ranges built by r contain their reference price,
// which holds when |OffsetPct| < WidthPct/2.
func (r RangeSpec) ContainsReference() bool {
	return r.OffsetPct.Abs().LessThan(r.WidthPct.Div(two))
}

// Around returns the range for a reference price.
func (r RangeSpec) Around(price decimal.Decimal) (types.PriceRange, error) {
	if err := r.Validate(); err != nil {
		return types.PriceRange{}, err
	}
	if !price.IsPositive() {
		return types.PriceRange{}, fmt.Errorf("%w: reference price must be positive, got %s", types.ErrValidation, price)
	}
	center := price.Mul(decimal.NewFromInt(1).Add(r.OffsetPct))
	half := price.Mul(r.WidthPct).Div(two)
	lower := center.Sub(half).Truncate(clmm.Precision)
	upper := center.Add(half).Truncate(clmm.Precision)
	if !lower.IsPositive() || !lower.LessThan(upper) {
		return types.PriceRange{}, fmt.Errorf("%w: range %s around %s collapses at %d decimal places",
			ErrBelowPrecision, r, price, clmm.Precision)
	}
	return types.NewPriceRange(lower, upper)
}

func (r RangeSpec) String() string {
	return fmt.Sprintf("width=%s,offset=%s", r.WidthPct.String(), r.OffsetPct.String())
}
