/*

This file contains the impermanent loss calculations for concentrated liquidity positions.

IL compares the value of the LP position against holding the tokens it was opened with.
Both the entry and the current price are clamped into the position range, so once the
price leaves the range the loss stays frozen at its boundary value.

*/

package metrics

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// pctNotional is the capital used when only the IL fraction is needed.
var pctNotional = decimal.NewFromInt(1_000_000)

// ImpermanentLoss returns LP value minus HODL value, in token B, for a position opened with
// capital at entry over r and observed at current. The result is never positive and is
// exactly zero when current equals entry.
func ImpermanentLoss(entry, current decimal.Decimal, r types.PriceRange, capital decimal.Decimal) (decimal.Decimal, error) {
	if err := checkPrices(entry, current, r); err != nil {
		return decimal.Zero, err
	}
	liquidity, err := clmm.LiquidityForCapital(capital, entry, r)
	if err != nil {
		return decimal.Zero, err
	}
	return ImpermanentLossForLiquidity(liquidity, entry, current, r)
}

// ImpermanentLossForLiquidity is ImpermanentLoss for a position whose liquidity is already known.
func ImpermanentLossForLiquidity(liquidity, entry, current decimal.Decimal, r types.PriceRange) (decimal.Decimal, error) {
	if err := checkPrices(entry, current, r); err != nil {
		return decimal.Zero, err
	}
	entryC := r.Clamp(entry)
	currentC := r.Clamp(current)
	if entryC.Equal(currentC) {
		return decimal.Zero, nil
	}

	heldA, heldB, err := clmm.AmountsForLiquidity(liquidity, entryC, r)
	if err != nil {
		return decimal.Zero, err
	}
	lpValue, err := clmm.PositionValue(liquidity, currentC, r)
	if err != nil {
		return decimal.Zero, err
	}
	hodlValue := HodlValue(heldA, heldB, currentC)

	il := lpValue.Sub(hodlValue)
	if il.IsPositive() {
		// Rounding dust only; an LP position never beats holding its own tokens.
		return decimal.Zero, nil
	}
	return il, nil
}

// ImpermanentLossPct returns the impermanent loss as a fraction of the capital at entry.
// The result is in (-1, 0].
func ImpermanentLossPct(entry, current decimal.Decimal, r types.PriceRange) (decimal.Decimal, error) {
	il, err := ImpermanentLoss(entry, current, r, pctNotional)
	if err != nil {
		return decimal.Zero, err
	}
	return clmm.QuoDown(il, pctNotional), nil
}

// HodlValue returns the value in token B of holding amountA and amountB at price.
func HodlValue(amountA, amountB, price decimal.Decimal) decimal.Decimal {
	return amountA.Mul(price).Add(amountB)
}

func checkPrices(entry, current decimal.Decimal, r types.PriceRange) error {
	if !entry.IsPositive() || !current.IsPositive() {
		return fmt.Errorf("%w: prices must be positive, got entry=%s current=%s", types.ErrValidation, entry, current)
	}
	return r.Validate()
}
