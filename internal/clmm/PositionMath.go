package clmm

import (
	"fmt"
	"math/big"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept by the value-space helpers.
// Quotients and square roots are rounded down at this scale.
const Precision int32 = 28

// Sqrt returns floor(sqrt(d)) at Precision decimal places.
func Sqrt(d decimal.Decimal) (decimal.Decimal, error) {
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: square root of negative value %s", types.ErrValidation, d)
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	scaled := d.Shift(2 * Precision).BigInt()
	return decimal.NewFromBigInt(new(big.Int).Sqrt(scaled), -Precision), nil
}

// QuoDown divides a by b and rounds toward zero at Precision places.
func QuoDown(a, b decimal.Decimal) decimal.Decimal {
	q, _ := a.QuoRem(b, Precision)
	return q
}

// AmountsForLiquidity returns the token A and token B held by value-space liquidity at price.
//
//	price <= lower:        a = L*(sb-sa)/(sa*sb), b = 0
//	lower < price < upper: a = L*(sb-sp)/(sp*sb), b = L*(sp-sa)
//	price >= upper:        a = 0,                 b = L*(sb-sa)
func AmountsForLiquidity(liquidity, price decimal.Decimal, r types.PriceRange) (decimal.Decimal, decimal.Decimal, error) {
	if liquidity.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: liquidity cannot be negative, got %s", types.ErrValidation, liquidity)
	}
	sp, sa, sb, err := sqrtTriple(price, r)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	switch {
	case price.LessThanOrEqual(r.Lower):
		return QuoDown(liquidity.Mul(sb.Sub(sa)), sa.Mul(sb)), decimal.Zero, nil
	case price.LessThan(r.Upper):
		a := QuoDown(liquidity.Mul(sb.Sub(sp)), sp.Mul(sb))
		b := liquidity.Mul(sp.Sub(sa)).Truncate(Precision)
		return a, b, nil
	default:
		return decimal.Zero, liquidity.Mul(sb.Sub(sa)).Truncate(Precision), nil
	}
}

// PositionValue returns a*price + b in token B.
func PositionValue(liquidity, price decimal.Decimal, r types.PriceRange) (decimal.Decimal, error) {
	a, b, err := AmountsForLiquidity(liquidity, price, r)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Mul(price).Add(b).Truncate(Precision), nil
}

// LiquidityForCapital returns the liquidity bought with capital (token B) at price,
// rounded down at Precision places.
func LiquidityForCapital(capital, price decimal.Decimal, r types.PriceRange) (decimal.Decimal, error) {
	if capital.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: capital cannot be negative, got %s", types.ErrValidation, capital)
	}
	if capital.IsZero() {
		return decimal.Zero, nil
	}
	unitValue, err := PositionValue(decimal.NewFromInt(1), price, r)
	if err != nil {
		return decimal.Zero, err
	}
	if !unitValue.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: unit liquidity has no value at price %s in %s", types.ErrNumericOverflow, price, r)
	}
	return QuoDown(capital, unitValue), nil
}

func sqrtTriple(price decimal.Decimal, r types.PriceRange) (sp, sa, sb decimal.Decimal, err error) {
	if !price.IsPositive() {
		return sp, sa, sb, fmt.Errorf("%w: price must be positive, got %s", types.ErrValidation, price)
	}
	if err = r.Validate(); err != nil {
		return sp, sa, sb, err
	}
	if sp, err = Sqrt(price); err != nil {
		return
	}
	if sa, err = Sqrt(r.Lower); err != nil {
		return
	}
	if sb, err = Sqrt(r.Upper); err != nil {
		return
	}
	if !sa.IsPositive() || !sp.IsPositive() {
		err = fmt.Errorf("%w: prices %s / %s are below the representable precision", types.ErrNumericOverflow, price, r.Lower)
	}
	return
}
