package clmm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/utils"
	"github.com/shopspring/decimal"
)

// TickRange is a price range snapped to usable ticks of a pool.
type TickRange struct {
	Lower      int32
	Upper      int32
	PriceRange types.PriceRange // Human prices of the two ticks
}

// AlignRange widens a human price range outward to the nearest usable ticks of the pool.
// Prices are converted to raw units with the pool decimals before tick lookup.
func AlignRange(r types.PriceRange, pool types.PoolParameters) (TickRange, error) {
	if err := r.Validate(); err != nil {
		return TickRange{}, err
	}
	lowerRaw, err := utils.HumanToRawPrice(r.Lower, pool.DecimalsA(), pool.DecimalsB())
	if err != nil {
		return TickRange{}, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	upperRaw, err := utils.HumanToRawPrice(r.Upper, pool.DecimalsA(), pool.DecimalsB())
	if err != nil {
		return TickRange{}, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	lowerTick, err := PriceToTick(lowerRaw)
	if err != nil {
		return TickRange{}, err
	}
	upperTick, err := PriceToTick(upperRaw)
	if err != nil {
		return TickRange{}, err
	}
	// The floor tick of the upper price may sit below it; step up so the range never shrinks.
	if p, _ := TickToPrice(upperTick); p.LessThan(upperRaw) && upperTick < MaxTick {
		upperTick++
	}

	if lowerTick, err = AlignTickDown(lowerTick, pool.TickSpacing); err != nil {
		return TickRange{}, err
	}
	if upperTick, err = AlignTickUp(upperTick, pool.TickSpacing); err != nil {
		return TickRange{}, err
	}
	if err := ValidateTickRange(lowerTick, upperTick, pool.TickSpacing); err != nil {
		return TickRange{}, err
	}

	lowerPrice, err := tickToHumanPrice(lowerTick, pool)
	if err != nil {
		return TickRange{}, err
	}
	upperPrice, err := tickToHumanPrice(upperTick, pool)
	if err != nil {
		return TickRange{}, err
	}
	return TickRange{
		Lower:      lowerTick,
		Upper:      upperTick,
		PriceRange: types.PriceRange{Lower: lowerPrice, Upper: upperPrice},
	}, nil
}

// ProtocolLiquidity returns the u128 liquidity a pool would mint for human token amounts
// deposited at a human price into a tick range.
func ProtocolLiquidity(amountA, amountB, price decimal.Decimal, tr TickRange, pool types.PoolParameters) (sdkmath.Int, error) {
	rawA, err := utils.HumanToRaw(amountA, pool.DecimalsA())
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: token A amount: %w", types.ErrValidation, err)
	}
	rawB, err := utils.HumanToRaw(amountB, pool.DecimalsB())
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: token B amount: %w", types.ErrValidation, err)
	}
	rawPrice, err := utils.HumanToRawPrice(price, pool.DecimalsA(), pool.DecimalsB())
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	sqrtPrice, err := PriceToSqrtPriceX64(rawPrice)
	if err != nil {
		return sdkmath.Int{}, err
	}
	sqrtLower, err := TickToSqrtPriceX64(tr.Lower)
	if err != nil {
		return sdkmath.Int{}, err
	}
	sqrtUpper, err := TickToSqrtPriceX64(tr.Upper)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return LiquidityFromAmounts(rawA, rawB, sqrtPrice, sqrtLower, sqrtUpper)
}

// ProtocolAmounts returns the human token amounts a pool position of u128 liquidity holds
// at a human price. Amounts are rounded down to whole raw units.
func ProtocolAmounts(liquidity sdkmath.Int, price decimal.Decimal, tr TickRange, pool types.PoolParameters) (decimal.Decimal, decimal.Decimal, error) {
	rawPrice, err := utils.HumanToRawPrice(price, pool.DecimalsA(), pool.DecimalsB())
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	sqrtPrice, err := PriceToSqrtPriceX64(rawPrice)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sqrtLower, err := TickToSqrtPriceX64(tr.Lower)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sqrtUpper, err := TickToSqrtPriceX64(tr.Upper)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	rawA, rawB, err := AmountsFromLiquidity(liquidity, sqrtPrice, sqrtLower, sqrtUpper)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amountA, err := utils.RawToHuman(rawA, pool.DecimalsA())
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: token A amount: %w", types.ErrValidation, err)
	}
	amountB, err := utils.RawToHuman(rawB, pool.DecimalsB())
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: token B amount: %w", types.ErrValidation, err)
	}
	return amountA, amountB, nil
}

func tickToHumanPrice(tick int32, pool types.PoolParameters) (decimal.Decimal, error) {
	raw, err := TickToPrice(tick)
	if err != nil {
		return decimal.Zero, err
	}
	human, err := utils.RawToHumanPrice(raw, pool.DecimalsA(), pool.DecimalsB())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", types.ErrValidation, err)
	}
	return human, nil
}
