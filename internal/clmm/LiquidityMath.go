package clmm

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// LiquidityFromAmounts returns the largest liquidity that can be minted with at most
// amountA of token A and amountB of token B over [sqrtLower, sqrtUpper] at sqrtPrice.
// All sqrt prices are Q64.64. The result is rounded down and must fit in a u128.
func LiquidityFromAmounts(amountA, amountB, sqrtPrice, sqrtLower, sqrtUpper sdkmath.Int) (sdkmath.Int, error) {
	a, b, sp, sl, su, err := liquidityInputs(amountA, amountB, sqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return sdkmath.Int{}, err
	}

	var liq *big.Int
	switch {
	case sp.Cmp(sl) <= 0:
		liq = liquidityFromA(a, sl, su)
	case sp.Cmp(su) < 0:
		liq = liquidityFromA(a, sp, su)
		if lb := liquidityFromB(b, sl, sp); lb.Cmp(liq) < 0 {
			liq = lb
		}
	default:
		liq = liquidityFromB(b, sl, su)
	}

	if liq.Cmp(maxU128) > 0 {
		return sdkmath.Int{}, fmt.Errorf("%w: liquidity %s exceeds u128 (amountA=%s amountB=%s sqrtPrice=%s range=[%s, %s])",
			types.ErrNumericOverflow, liq, amountA, amountB, sqrtPrice, sqrtLower, sqrtUpper)
	}
	return sdkmath.NewIntFromBigInt(liq), nil
}

// AmountsFromLiquidity returns the token amounts withdrawn when removing liquidity at sqrtPrice.
// Both amounts are rounded down and must fit in a u64.
func AmountsFromLiquidity(liquidity, sqrtPrice, sqrtLower, sqrtUpper sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	l, _, sp, sl, su, err := liquidityInputs(liquidity, sdkmath.ZeroInt(), sqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return sdkmath.Int{}, sdkmath.Int{}, err
	}
	if l.Cmp(maxU128) > 0 {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: liquidity %s exceeds u128", types.ErrNumericOverflow, liquidity)
	}

	a, b := new(big.Int), new(big.Int)
	switch {
	case sp.Cmp(sl) <= 0:
		a = amountADelta(l, sl, su)
	case sp.Cmp(su) < 0:
		a = amountADelta(l, sp, su)
		b = amountBDelta(l, sl, sp)
	default:
		b = amountBDelta(l, sl, su)
	}

	if a.Cmp(maxU64) > 0 || b.Cmp(maxU64) > 0 {
		return sdkmath.Int{}, sdkmath.Int{}, fmt.Errorf("%w: token amounts %s/%s exceed u64 (liquidity=%s sqrtPrice=%s range=[%s, %s])",
			types.ErrNumericOverflow, a, b, liquidity, sqrtPrice, sqrtLower, sqrtUpper)
	}
	return sdkmath.NewIntFromBigInt(a), sdkmath.NewIntFromBigInt(b), nil
}

func liquidityInputs(amountA, amountB, sqrtPrice, sqrtLower, sqrtUpper sdkmath.Int) (a, b, sp, sl, su *big.Int, err error) {
	for _, v := range []sdkmath.Int{amountA, amountB, sqrtPrice, sqrtLower, sqrtUpper} {
		if v.IsNil() || v.IsNegative() {
			return nil, nil, nil, nil, nil, fmt.Errorf("%w: amounts and sqrt prices must be non-negative", types.ErrValidation)
		}
	}
	if !sqrtLower.IsPositive() || !sqrtPrice.IsPositive() {
		return nil, nil, nil, nil, nil, fmt.Errorf("%w: sqrt prices must be positive", types.ErrValidation)
	}
	if sqrtLower.GTE(sqrtUpper) {
		return nil, nil, nil, nil, nil, fmt.Errorf("%w: sqrt lower %s must be below sqrt upper %s",
			types.ErrInvalidRange, sqrtLower, sqrtUpper)
	}
	return amountA.BigInt(), amountB.BigInt(), sqrtPrice.BigInt(), sqrtLower.BigInt(), sqrtUpper.BigInt(), nil
}

// L = a * sl * su / ((su - sl) * 2^64)
func liquidityFromA(a, sl, su *big.Int) *big.Int {
	num := new(big.Int).Mul(a, sl)
	num.Mul(num, su)
	den := new(big.Int).Sub(su, sl)
	den.Lsh(den, 64)
	return num.Quo(num, den)
}

// L = b * 2^64 / (su - sl)
func liquidityFromB(b, sl, su *big.Int) *big.Int {
	num := new(big.Int).Lsh(b, 64)
	return num.Quo(num, new(big.Int).Sub(su, sl))
}

// a = L * (s2 - s1) * 2^64 / (s1 * s2)
func amountADelta(l, s1, s2 *big.Int) *big.Int {
	num := new(big.Int).Sub(s2, s1)
	num.Mul(num, l)
	num.Lsh(num, 64)
	return num.Quo(num, new(big.Int).Mul(s1, s2))
}

// b = L * (s2 - s1) / 2^64
func amountBDelta(l, s1, s2 *big.Int) *big.Int {
	num := new(big.Int).Sub(s2, s1)
	num.Mul(num, l)
	return num.Rsh(num, 64)
}
