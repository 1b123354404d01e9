/*
This file contains the tick <-> sqrt price <-> price conversions of a Whirlpool-style CLMM.

Sqrt prices are Q64.64 fixed point numbers carried in sdkmath.Int. Every conversion is
integer arithmetic: the sqrt price of a tick is a product of precomputed Q128 powers of
sqrt(1.0001), one per set bit of |tick|, exactly like the on-chain implementation.

Rounding policy:
  - TickToSqrtPriceX64 floors to Q64.64.
  - SqrtPriceX64ToTick and PriceToTick floor to the largest tick at or below the input.
  - TickToPrice rounds up at PriceDecimals places, so PriceToTick(TickToPrice(t)) == t.
*/

package clmm

import (
	"fmt"
	"math/big"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// MinTick and MaxTick are the Whirlpool tick bounds.
	MinTick int32 = -443636
	MaxTick int32 = 443636

	// PriceDecimals is the number of decimal places kept by TickToPrice.
	PriceDecimals int32 = 40
)

var (
	bigOne  = big.NewInt(1)
	q64     = new(big.Int).Lsh(bigOne, 64)
	q128    = new(big.Int).Lsh(bigOne, 128)
	q256    = new(big.Int).Lsh(bigOne, 256)
	maxU64  = new(big.Int).Sub(q64, bigOne)
	maxU128 = new(big.Int).Sub(q128, bigOne)

	// sqrtFactorsX128[i] = floor(sqrt(1.0001)^(2^i) * 2^128)
	sqrtFactorsX128 [20]*big.Int

	// MinSqrtPriceX64 and MaxSqrtPriceX64 are the sqrt prices of MinTick and MaxTick.
	MinSqrtPriceX64 sdkmath.Int
	MaxSqrtPriceX64 sdkmath.Int

	minSqrtX64 *big.Int
	maxSqrtX64 *big.Int
)

func init() {
	f0 := new(big.Int).Mul(q256, big.NewInt(10001))
	f0.Quo(f0, big.NewInt(10000))
	sqrtFactorsX128[0] = f0.Sqrt(f0)
	for i := 1; i < len(sqrtFactorsX128); i++ {
		f := new(big.Int).Mul(sqrtFactorsX128[i-1], sqrtFactorsX128[i-1])
		sqrtFactorsX128[i] = f.Rsh(f, 128)
	}

	minSqrtX64 = tickToSqrtX64(MinTick)
	maxSqrtX64 = tickToSqrtX64(MaxTick)
	MinSqrtPriceX64 = sdkmath.NewIntFromBigInt(minSqrtX64)
	MaxSqrtPriceX64 = sdkmath.NewIntFromBigInt(maxSqrtX64)
}

// TickToSqrtPriceX64 returns the Q64.64 sqrt price of a tick.
func TickToSqrtPriceX64(tick int32) (sdkmath.Int, error) {
	if err := checkTick(tick); err != nil {
		return sdkmath.Int{}, err
	}
	return sdkmath.NewIntFromBigInt(tickToSqrtX64(tick)), nil
}

// SqrtPriceX64ToTick returns the largest tick whose sqrt price is <= sqrtPriceX64.
func SqrtPriceX64ToTick(sqrtPriceX64 sdkmath.Int) (int32, error) {
	if sqrtPriceX64.IsNil() {
		return 0, fmt.Errorf("%w: sqrt price is nil", types.ErrValidation)
	}
	return sqrtX64ToTick(sqrtPriceX64.BigInt())
}

// TickToPrice returns 1.0001^tick as derived from the Q64.64 sqrt price.
func TickToPrice(tick int32) (decimal.Decimal, error) {
	if err := checkTick(tick); err != nil {
		return decimal.Zero, err
	}
	return sqrtX64ToPrice(tickToSqrtX64(tick)), nil
}

// PriceToTick returns the largest tick whose price is <= price.
func PriceToTick(price decimal.Decimal) (int32, error) {
	sqrtX64, err := priceToSqrtX64(price)
	if err != nil {
		return 0, err
	}
	return sqrtX64ToTick(sqrtX64)
}

// PriceToSqrtPriceX64 returns floor(sqrt(price) * 2^64).
func PriceToSqrtPriceX64(price decimal.Decimal) (sdkmath.Int, error) {
	sqrtX64, err := priceToSqrtX64(price)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if sqrtX64.Cmp(minSqrtX64) < 0 || sqrtX64.Cmp(maxSqrtX64) > 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: price %s is outside the tick price bounds", types.ErrOutOfRange, price)
	}
	return sdkmath.NewIntFromBigInt(sqrtX64), nil
}

// SqrtPriceX64ToPrice converts a Q64.64 sqrt price back to a price, rounding up at PriceDecimals places.
func SqrtPriceX64ToPrice(sqrtPriceX64 sdkmath.Int) (decimal.Decimal, error) {
	if sqrtPriceX64.IsNil() || !sqrtPriceX64.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: sqrt price must be positive", types.ErrValidation)
	}
	return sqrtX64ToPrice(sqrtPriceX64.BigInt()), nil
}

// AlignTickDown rounds tick down to the nearest multiple of spacing that is still a valid tick.
func AlignTickDown(tick, spacing int32) (int32, error) {
	if err := checkSpacing(spacing); err != nil {
		return 0, err
	}
	aligned := tick - floorMod(tick, spacing)
	if aligned < MinTick {
		aligned += spacing
	}
	if err := checkTick(aligned); err != nil {
		return 0, err
	}
	return aligned, nil
}

// AlignTickUp rounds tick up to the nearest multiple of spacing that is still a valid tick.
func AlignTickUp(tick, spacing int32) (int32, error) {
	if err := checkSpacing(spacing); err != nil {
		return 0, err
	}
	aligned := tick
	if m := floorMod(tick, spacing); m != 0 {
		aligned = tick + spacing - m
	}
	if aligned > MaxTick {
		aligned -= spacing
	}
	if err := checkTick(aligned); err != nil {
		return 0, err
	}
	return aligned, nil
}

// ValidateTickRange checks bounds, ordering and spacing of a tick range.
func ValidateTickRange(lower, upper, spacing int32) error {
	if err := checkTick(lower); err != nil {
		return err
	}
	if err := checkTick(upper); err != nil {
		return err
	}
	if lower >= upper {
		return fmt.Errorf("%w: lower tick %d must be below upper tick %d", types.ErrInvalidRange, lower, upper)
	}
	if spacing > 0 && (floorMod(lower, spacing) != 0 || floorMod(upper, spacing) != 0) {
		return fmt.Errorf("%w: ticks %d/%d are not multiples of spacing %d", types.ErrValidation, lower, upper, spacing)
	}
	return nil
}

func checkTick(tick int32) error {
	if tick < MinTick || tick > MaxTick {
		return fmt.Errorf("%w: tick %d outside [%d, %d]", types.ErrOutOfRange, tick, MinTick, MaxTick)
	}
	return nil
}

func checkSpacing(spacing int32) error {
	if spacing <= 0 {
		return fmt.Errorf("%w: tick spacing must be positive, got %d", types.ErrValidation, spacing)
	}
	return nil
}

func floorMod(a, b int32) int32 {
	return ((a % b) + b) % b
}

// tickToSqrtX64 assumes tick is within bounds.
func tickToSqrtX64(tick int32) *big.Int {
	abs := tick
	if abs < 0 {
		abs = -abs
	}

	ratio := new(big.Int).Set(q128)
	for i := range sqrtFactorsX128 {
		if abs&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, sqrtFactorsX128[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick < 0 {
		ratio = new(big.Int).Quo(q256, ratio)
	}
	return ratio.Rsh(ratio, 64)
}

func sqrtX64ToTick(sqrtX64 *big.Int) (int32, error) {
	if sqrtX64.Cmp(minSqrtX64) < 0 || sqrtX64.Cmp(maxSqrtX64) > 0 {
		return 0, fmt.Errorf("%w: sqrt price %s outside [%s, %s]", types.ErrOutOfRange, sqrtX64, minSqrtX64, maxSqrtX64)
	}
	n := int(MaxTick-MinTick) + 1
	// First tick whose sqrt price exceeds the input; the answer is the one before it.
	idx := sort.Search(n, func(i int) bool {
		return tickToSqrtX64(MinTick+int32(i)).Cmp(sqrtX64) > 0
	})
	return MinTick + int32(idx) - 1, nil
}

func sqrtX64ToPrice(sqrtX64 *big.Int) decimal.Decimal {
	num := new(big.Int).Mul(sqrtX64, sqrtX64)
	num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(PriceDecimals)), nil))
	coef, rem := new(big.Int).QuoRem(num, q128, new(big.Int))
	if rem.Sign() != 0 {
		coef.Add(coef, bigOne)
	}
	return decimal.NewFromBigInt(coef, -PriceDecimals)
}

// priceToSqrtX64 returns floor(sqrt(price * 2^128)) without a bounds check.
func priceToSqrtX64(price decimal.Decimal) (*big.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive, got %s", types.ErrValidation, price)
	}
	n := new(big.Int).Mul(price.Coefficient(), q128)
	exp := price.Exponent()
	ten := big.NewInt(10)
	if exp >= 0 {
		n.Mul(n, new(big.Int).Exp(ten, big.NewInt(int64(exp)), nil))
	} else {
		n.Quo(n, new(big.Int).Exp(ten, big.NewInt(int64(-exp)), nil))
	}
	return n.Sqrt(n), nil
}
