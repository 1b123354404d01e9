package clmm

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// Fee growth values are Q64.64 fee-per-unit-of-liquidity counters stored as u128 that wrap on
// overflow, so every subtraction here is modulo 2^128.

// FeeGrowthFromFees returns the global fee growth increment produced by feeAmount
// collected across activeLiquidity.
func FeeGrowthFromFees(feeAmount, activeLiquidity sdkmath.Int) (sdkmath.Int, error) {
	if feeAmount.IsNil() || feeAmount.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: fee amount must be non-negative", types.ErrValidation)
	}
	if activeLiquidity.IsNil() || !activeLiquidity.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	growth := new(big.Int).Lsh(feeAmount.BigInt(), 64)
	growth.Quo(growth, activeLiquidity.BigInt())
	if growth.Cmp(maxU128) > 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: fee growth for fee=%s liquidity=%s exceeds u128",
			types.ErrNumericOverflow, feeAmount, activeLiquidity)
	}
	return sdkmath.NewIntFromBigInt(growth), nil
}

// FeeGrowthInside returns the fee growth accumulated inside [tickLower, tickUpper].
func FeeGrowthInside(tickCurrent, tickLower, tickUpper int32, global, outsideLower, outsideUpper sdkmath.Int) sdkmath.Int {
	g := global.BigInt()

	below := outsideLower.BigInt()
	if tickCurrent < tickLower {
		below = wrappingSub(g, below)
	}
	above := outsideUpper.BigInt()
	if tickCurrent >= tickUpper {
		above = wrappingSub(g, above)
	}

	inside := wrappingSub(wrappingSub(g, below), above)
	return sdkmath.NewIntFromBigInt(inside)
}

// FeesOwed returns the fees earned by liquidity since feeGrowthInsideLast was checkpointed.
// Rounded down; must fit in a u64.
func FeesOwed(liquidity, feeGrowthInside, feeGrowthInsideLast sdkmath.Int) (sdkmath.Int, error) {
	if liquidity.IsNil() || liquidity.IsNegative() {
		return sdkmath.Int{}, fmt.Errorf("%w: liquidity must be non-negative", types.ErrValidation)
	}
	delta := wrappingSub(feeGrowthInside.BigInt(), feeGrowthInsideLast.BigInt())
	owed := new(big.Int).Mul(liquidity.BigInt(), delta)
	owed.Rsh(owed, 64)
	if owed.Cmp(maxU64) > 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: fees owed %s exceed u64 (liquidity=%s delta=%s)",
			types.ErrNumericOverflow, owed, liquidity, delta)
	}
	return sdkmath.NewIntFromBigInt(owed), nil
}

func wrappingSub(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Mod(d, q128)
}
