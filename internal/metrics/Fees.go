package metrics

import (
	"errors"
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

var (
	ErrZeroPrincipal = errors.New("principal cannot be zero")
	ErrZeroDays      = errors.New("days cannot be zero")
)

var (
	one         = decimal.NewFromInt(1)
	daysPerYear = decimal.NewFromInt(365)
)

// LiquidityShare returns the fraction of pool liquidity owned by the position, capped at 1.
// An empty pool yields 0.
func LiquidityShare(positionLiquidity, poolLiquidity decimal.Decimal) decimal.Decimal {
	if !poolLiquidity.IsPositive() || !positionLiquidity.IsPositive() {
		return decimal.Zero
	}
	share := clmm.QuoDown(positionLiquidity, poolLiquidity)
	if share.GreaterThan(one) {
		return one
	}
	return share
}

// FeeValue returns the fees earned by a liquidity share over one step: volume * feeTier * share.
func FeeValue(share, volume, feeTier decimal.Decimal) (decimal.Decimal, error) {
	if share.IsNegative() || share.GreaterThan(one) {
		return decimal.Zero, fmt.Errorf("%w: liquidity share must be in [0, 1], got %s", types.ErrValidation, share)
	}
	if volume.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: volume cannot be negative, got %s", types.ErrValidation, volume)
	}
	if feeTier.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: fee tier cannot be negative, got %s", types.ErrValidation, feeTier)
	}
	return volume.Mul(feeTier).Mul(share).Truncate(clmm.Precision), nil
}

// NetPnL = fees + valueChange - rebalanceCosts
func NetPnL(fees, valueChange, rebalanceCosts decimal.Decimal) decimal.Decimal {
	return fees.Add(valueChange).Sub(rebalanceCosts)
}

// CalculateAPY annualizes the return of feesEarned on principal over days, without compounding.
func CalculateAPY(feesEarned, principal decimal.Decimal, days int) (decimal.Decimal, error) {
	if principal.IsZero() {
		return decimal.Zero, ErrZeroPrincipal
	}
	if days <= 0 {
		return decimal.Zero, ErrZeroDays
	}
	roi := clmm.QuoDown(feesEarned, principal)
	return roi.Mul(clmm.QuoDown(daysPerYear, decimal.NewFromInt(int64(days)))).Truncate(clmm.Precision), nil
}

// AprToApy compounds an APR compoundsPerYear times: (1 + apr/n)^n - 1.
func AprToApy(apr decimal.Decimal, compoundsPerYear int) decimal.Decimal {
	if compoundsPerYear <= 0 {
		return apr
	}
	periodRate := one.Add(clmm.QuoDown(apr, decimal.NewFromInt(int64(compoundsPerYear))))
	result := periodRate
	for i := 1; i < compoundsPerYear; i++ {
		result = result.Mul(periodRate).Truncate(clmm.Precision)
	}
	return result.Sub(one)
}

// BreakevenDays returns how many whole days of fees at dailyFeeRate it takes to offset
// impermanentLoss (both as fractions of the position). ok is false when fees never catch up.
func BreakevenDays(impermanentLoss, dailyFeeRate decimal.Decimal) (days int64, ok bool) {
	if !dailyFeeRate.IsPositive() {
		return 0, false
	}
	return clmm.QuoDown(impermanentLoss.Abs(), dailyFeeRate).IntPart(), true
}

// FeeProjectionModel selects how historical daily fees are extrapolated.
type FeeProjectionModel string

const (
	ProjectionConstant         FeeProjectionModel = "CONSTANT"
	ProjectionLinearDecay      FeeProjectionModel = "LINEAR_DECAY"
	ProjectionExponentialDecay FeeProjectionModel = "EXPONENTIAL_DECAY"
)

// ProjectFees projects total fees over days from an average dailyFees.
// decayRate is the per-day decay used by the decay models (0.01 = 1% per day).
func ProjectFees(dailyFees decimal.Decimal, days int, model FeeProjectionModel, decayRate decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	switch model {
	case ProjectionLinearDecay:
		for day := 0; day < days; day++ {
			factor := decimal.Max(one.Sub(decayRate.Mul(decimal.NewFromInt(int64(day)))), decimal.Zero)
			total = total.Add(dailyFees.Mul(factor))
		}
	case ProjectionExponentialDecay:
		rate := dailyFees
		for day := 0; day < days; day++ {
			total = total.Add(rate)
			rate = rate.Mul(one.Sub(decayRate)).Truncate(clmm.Precision)
		}
	default:
		total = dailyFees.Mul(decimal.NewFromInt(int64(days)))
	}
	return total
}
