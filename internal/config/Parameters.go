/*

This file contains the default parameters for simulations and grid searches.

They describe a small retail position in a liquid 0.30% pool. Every value can be
overridden by a scenario file or an API request.

*/

package config

import (
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// SimulationParameters are the defaults applied to any run that leaves a field unset.
type SimulationParameters struct {
	Capital          decimal.Decimal
	FeeTier          decimal.Decimal
	RebalanceCostPct decimal.Decimal // Flat cost per rebalance as a fraction of initial capital
	PoolLiquidity    decimal.Decimal
	StepDuration     time.Duration
	RangeWidthPct    decimal.Decimal
	MonteCarloRuns   int
	Volatility       decimal.Decimal // Annualized, for synthetic paths without calibration
	TopResults       int
}

// DefaultSimulationParameters provides a baseline used when no scenario overrides a value.
var DefaultSimulationParameters = SimulationParameters{
	Capital: decimal.NewFromInt(1000), // 1,000 units of the quote token.
	// Rationale: Small enough that the position never dominates DefaultPoolLiquidity,
	// so the pro-rata fee share stays in its linear regime.

	FeeTier: decimal.RequireFromString("0.003"), // 0.30% pool.
	// Rationale: The most common tier for volatile pairs on Uniswap v3 and Orca.

	RebalanceCostPct: decimal.RequireFromString("0.001"), // 0.1% of capital per rebalance.
	// Rationale: Roughly a swap fee plus network fees when half the position is swapped.
	// Strategies that rebalance every step must pay for it.

	PoolLiquidity: decimal.NewFromInt(1_000_000_000),
	// Rationale: Matches simulation.DefaultPoolLiquidity.

	StepDuration: time.Hour,
	// Rationale: Hourly candles are the finest granularity CryptoCompare serves for 30 days
	// of history in one request.

	RangeWidthPct: decimal.RequireFromString("0.10"), // +/- 5% around the price.
	// Rationale: Wide enough to stay in range through a typical day for majors,
	// narrow enough to concentrate liquidity meaningfully.

	MonteCarloRuns: 100,
	// Rationale: Enough runs for a stable median; VaR95 uses the 5th run.

	Volatility: decimal.RequireFromString("0.8"), // 80% annualized.
	// Rationale: Typical realized volatility of SOL and ETH over a year.

	TopResults: 10,
	// Rationale: Fits a terminal without scrolling.
}

// RebalanceCost converts RebalanceCostPct into the flat amount charged per rebalance.
func (p SimulationParameters) RebalanceCost(capital decimal.Decimal) decimal.Decimal {
	return capital.Mul(p.RebalanceCostPct)
}

// SimulationConfig builds a simulator config for pool from the defaults.
func (p SimulationParameters) SimulationConfig(capital decimal.Decimal, pool types.PoolParameters) simulation.Config {
	if pool.FeeTier.IsZero() {
		pool.FeeTier = p.FeeTier
	}
	return simulation.Config{
		Capital:       capital,
		Pool:          pool,
		PoolLiquidity: p.PoolLiquidity,
		RebalanceCost: p.RebalanceCost(capital),
	}
}

// DefaultConstraints bound every grid search unless a scenario replaces them.
var DefaultConstraints = optimizer.Constraints{
	MinRangeWidth: decimal.RequireFromString("0.01"),
	MaxRangeWidth: decimal.RequireFromString("0.50"),
	// Rationale: Below 1% a position leaves range on ordinary noise; above 50% it earns
	// little more than a full-range position.

	MinCapital: decimal.NewFromInt(100),
	MaxCapital: decimal.NewFromInt(1_000_000),
	// Rationale: Outside this band the fixed rebalance cost or the pool share assumption
	// stops being realistic.

	MinInterval: 1,
	MaxInterval: 168,
	// Rationale: At most one week between periodic rebalances at hourly steps.

	MinThresholdPct: decimal.RequireFromString("0.01"),
	MaxThresholdPct: decimal.RequireFromString("0.20"),

	MinILPct: decimal.RequireFromString("0.01"),
	MaxILPct: decimal.RequireFromString("0.15"),
	// Rationale: An IL limit above 15% no longer protects the position.
}
