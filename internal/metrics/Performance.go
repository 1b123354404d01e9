package metrics

import (
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// minSharpeStdDev is the step-return deviation below which a Sharpe ratio is undefined.
var minSharpeStdDev = decimal.RequireFromString("0.0001")

// MaxDrawdown returns the largest peak-to-trough decline of values as a fraction of the peak.
func MaxDrawdown(values []decimal.Decimal) decimal.Decimal {
	maxDD := decimal.Zero
	if len(values) == 0 {
		return maxDD
	}
	peak := values[0]
	for _, v := range values[1:] {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		if !peak.IsPositive() {
			continue
		}
		if dd := clmm.QuoDown(peak.Sub(v), peak); dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// SharpeRatio returns mean / standard deviation of the step differences of a cumulative
// PnL series (population variance, not annualized). ok is false when there are fewer than
// two samples or the deviation is too small to be meaningful.
func SharpeRatio(pnl []decimal.Decimal) (ratio decimal.Decimal, ok bool) {
	if len(pnl) < 2 {
		return decimal.Zero, false
	}
	returns := make([]decimal.Decimal, 0, len(pnl)-1)
	for i := 1; i < len(pnl); i++ {
		returns = append(returns, pnl[i].Sub(pnl[i-1]))
	}

	n := decimal.NewFromInt(int64(len(returns)))
	mean := clmm.QuoDown(decimal.Sum(decimal.Zero, returns...), n)

	sumSq := decimal.Zero
	for _, r := range returns {
		d := r.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	std, err := clmm.Sqrt(clmm.QuoDown(sumSq, n))
	if err != nil || std.LessThan(minSharpeStdDev) {
		return decimal.Zero, false
	}
	return clmm.QuoDown(mean, std), true
}

// TimeInRange returns the fraction of per-sample snapshots that were in range.
func TimeInRange(snapshots []types.SimulationSnapshot) decimal.Decimal {
	var total, inRange int64
	for _, s := range snapshots {
		if s.Event != types.EventStep {
			continue
		}
		total++
		if s.InRange {
			inRange++
		}
	}
	if total == 0 {
		return decimal.Zero
	}
	return clmm.QuoDown(decimal.NewFromInt(inRange), decimal.NewFromInt(total))
}
