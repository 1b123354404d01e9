/*

This file contains the price types consumed by the simulator: samples of a price path and price ranges.

*/

package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricePathSample is one observation of a price path.
type PricePathSample struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`  // Token B per token A
	Volume    decimal.Decimal `json:"volume"` // Pool volume traded during the step, in token B
}

// ValidateSamples checks strictly increasing timestamps, positive prices and non-negative volumes.
func ValidateSamples(samples []PricePathSample) error {
	for i, s := range samples {
		if err := ValidateSample(s); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if i > 0 && !s.Timestamp.After(samples[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps must be strictly increasing, sample %d at %s follows %s",
				ErrValidation, i, s.Timestamp.Format(time.RFC3339), samples[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// ValidateSample checks a single sample in isolation.
func ValidateSample(s PricePathSample) error {
	if !s.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrValidation, s.Price)
	}
	if s.Volume.IsNegative() {
		return fmt.Errorf("%w: volume cannot be negative, got %s", ErrValidation, s.Volume)
	}
	return nil
}

// PriceRange is the [Lower, Upper] price interval of a position.
type PriceRange struct {
	Lower decimal.Decimal `json:"lower"`
	Upper decimal.Decimal `json:"upper"`
}

// NewPriceRange builds a validated range.
func NewPriceRange(lower, upper decimal.Decimal) (PriceRange, error) {
	r := PriceRange{Lower: lower, Upper: upper}
	if err := r.Validate(); err != nil {
		return PriceRange{}, err
	}
	return r, nil
}

// Validate rejects zero-width, inverted and non-positive ranges.
func (r PriceRange) Validate() error {
	if !r.Lower.IsPositive() {
		return fmt.Errorf("%w: lower bound must be positive, got %s", ErrInvalidRange, r.Lower)
	}
	if r.Lower.GreaterThanOrEqual(r.Upper) {
		return fmt.Errorf("%w: lower %s must be below upper %s", ErrInvalidRange, r.Lower, r.Upper)
	}
	return nil
}

// Contains reports whether p lies in the range. Both bounds are inclusive: a price sitting
// exactly on a bound is in range and earns fees.
func (r PriceRange) Contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(r.Lower) && p.LessThanOrEqual(r.Upper)
}

// StrictlyContains reports whether p lies strictly inside the range.
func (r PriceRange) StrictlyContains(p decimal.Decimal) bool {
	return p.GreaterThan(r.Lower) && p.LessThan(r.Upper)
}

// Clamp returns p limited to the range bounds.
func (r PriceRange) Clamp(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(r.Lower) {
		return r.Lower
	}
	if p.GreaterThan(r.Upper) {
		return r.Upper
	}
	return p
}

// Midpoint returns the arithmetic centre of the range.
func (r PriceRange) Midpoint() decimal.Decimal {
	return r.Lower.Add(r.Upper).Div(decimal.NewFromInt(2))
}

// WidthPct returns (upper - lower) / midpoint.
func (r PriceRange) WidthPct() decimal.Decimal {
	mid := r.Midpoint()
	if mid.IsZero() {
		return decimal.Zero
	}
	return r.Upper.Sub(r.Lower).DivRound(mid, 18)
}

func (r PriceRange) String() string {
	return "[" + r.Lower.String() + ", " + r.Upper.String() + "]"
}
