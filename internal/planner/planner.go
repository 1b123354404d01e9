/*

This file turns a scenario into runnable work.

Building a plan resolves everything that can fail before the first simulation step: the
strategy, the objective, the simulator configuration and the price path. A historical path
comes from inline samples, a CSV file or the price API, in that order. Once built, a plan
runs any number of backtests, grid searches or Monte Carlo batches without touching the
network again.

*/

package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/datafetcher"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/metrics"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNilScenario     = fmt.Errorf("%w: scenario is nil", types.ErrValidation)
	ErrFilesDisabled   = fmt.Errorf("%w: reading price files is disabled", types.ErrValidation)
	ErrNoFetcher       = fmt.Errorf("%w: no price source configured for historical downloads", types.ErrValidation)
	ErrNotSynthetic    = fmt.Errorf("%w: operation needs a synthetic price path", types.ErrValidation)
	ErrUnexpectedInput = fmt.Errorf("%w: inline samples given for a synthetic path", types.ErrValidation)
)

// SampleSource downloads hourly price history.
type SampleSource interface {
	FetchHourlySamples(ctx context.Context, coin, quote string, hours int) ([]types.PricePathSample, error)
}

var _ SampleSource = (*datafetcher.PriceFetcher)(nil)

// Planner builds plans. The zero value builds plans for synthetic and inline historical
// paths only.
type Planner struct {
	Fetcher     SampleSource       // Optional; used for historical paths without a file
	AllowFiles  bool               // Whether scenarios may read CSV files from disk
	Parallelism int                // Grid search workers; 0 means GOMAXPROCS
	Metrics     *optimizer.Metrics // Optional
}

// Plan is a scenario with every dependency resolved.
type Plan struct {
	Scenario   *config.Scenario
	Strategy   strategy.Config
	Simulation simulation.Config
	Objective  optimizer.Objective
	Space      optimizer.ParameterSpace
	Source     pricepath.Source

	Samples []types.PricePathSample // Historical paths only
	GBM     pricepath.GBMConfig     // Synthetic paths only

	parallelism int
	metrics     *optimizer.Metrics
}

// Build resolves sc. Inline samples, when given, replace the scenario's historical source.
func (p *Planner) Build(ctx context.Context, sc *config.Scenario, samples []types.PricePathSample) (*Plan, error) {
	planLogger := logger.GetForComponent("planner")

	// ===== SCENARIO VALIDATION =====
	if sc == nil {
		return nil, ErrNilScenario
	}
	stratCfg, err := sc.StrategyConfig()
	if err != nil {
		return nil, err
	}
	objective, err := optimizer.ParseObjective(sc.Objective)
	if err != nil {
		return nil, err
	}
	space, err := sc.ParameterSpace()
	if err != nil {
		return nil, err
	}
	simCfg := sc.SimulationConfig()
	if err := simCfg.Validate(); err != nil {
		return nil, err
	}

	plan := &Plan{
		Scenario:    sc,
		Strategy:    stratCfg,
		Simulation:  simCfg,
		Objective:   objective,
		Space:       space,
		Source:      sc.PathSource.Type,
		parallelism: p.Parallelism,
		metrics:     p.Metrics,
	}

	// ===== PRICE PATH RESOLUTION =====
	switch sc.PathSource.Type {
	case pricepath.SourceSynthetic:
		if len(samples) > 0 {
			return nil, ErrUnexpectedInput
		}
		if plan.GBM, err = sc.GBMConfig(); err != nil {
			return nil, err
		}
	case pricepath.SourceHistorical:
		if plan.Samples, err = p.historicalSamples(ctx, sc.PathSource, samples); err != nil {
			return nil, err
		}
		if err := types.ValidateSamples(plan.Samples); err != nil {
			return nil, err
		}
		if len(plan.Samples) < 2 {
			return nil, fmt.Errorf("%w: historical path has %d samples", types.ErrInsufficientData, len(plan.Samples))
		}
		if vol, err := metrics.RealizedVolatility(metrics.PriceDataFromSamples(plan.Samples), metrics.HoursPerYear); err == nil {
			planLogger.Debug().Float64("realized_volatility", vol).Msg("Historical path loaded")
		}
	default:
		return nil, fmt.Errorf("%w: unknown path source %q", types.ErrValidation, sc.PathSource.Type)
	}

	planLogger.Debug().
		Str("scenario", sc.Name).
		Str("strategy", string(stratCfg.Type)).
		Str("objective", string(objective.Name())).
		Str("source", string(plan.Source)).
		Int("grid_size", space.Size()).
		Msg("Plan built")
	return plan, nil
}

func (p *Planner) historicalSamples(ctx context.Context, src config.PathSource, inline []types.PricePathSample) ([]types.PricePathSample, error) {
	switch {
	case len(inline) > 0:
		return inline, nil
	case src.File != "":
		if !p.AllowFiles {
			return nil, ErrFilesDisabled
		}
		return datafetcher.LoadCSV(src.File)
	case p.Fetcher == nil:
		return nil, ErrNoFetcher
	default:
		return p.Fetcher.FetchHourlySamples(ctx, src.Symbol, src.Quote, src.Hours)
	}
}

// Paths returns a factory of fresh paths for the plan's source.
func (pl *Plan) Paths() optimizer.PathFactory {
	if pl.Source == pricepath.SourceHistorical {
		return optimizer.HistoricalPaths(pl.Samples)
	}
	return optimizer.SyntheticPaths(pl.GBM)
}

// StartPrice is the first price of the path.
func (pl *Plan) StartPrice() decimal.Decimal {
	if pl.Source == pricepath.SourceHistorical {
		return pl.Samples[0].Price
	}
	return pl.GBM.StartPrice
}

// Backtest runs the scenario's strategy once over the plan's path.
func (pl *Plan) Backtest(ctx context.Context) (*types.SimulationReport, error) {
	strat, err := strategy.FromConfig(pl.Strategy)
	if err != nil {
		return nil, err
	}
	cfg := pl.Simulation
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	sim, err := simulation.NewSimulator(cfg, strat)
	if err != nil {
		return nil, err
	}
	path, err := pl.Paths()()
	if err != nil {
		return nil, err
	}
	report, err := sim.Run(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("backtest %s: %w", strat.ID(), err)
	}
	lg := logger.GetForComponent("planner")
	lg.Info().
		Str("run_id", report.RunID).
		Str("strategy", report.Strategy).
		Str("net_pnl", report.Summary.NetPnL.String()).
		Int("rebalances", report.Summary.RebalanceCount).
		Msg("Backtest completed")
	return report, nil
}

// Optimize grid-searches the plan's parameter space under the scenario's constraints.
// A cancelled search returns its partial result together with the context error.
func (pl *Plan) Optimize(ctx context.Context) (*optimizer.Result, error) {
	constraints := pl.Scenario.SearchConstraints()
	search := &optimizer.GridSearch{
		Space:       pl.Space,
		Objective:   pl.Objective,
		Simulation:  pl.Simulation,
		Paths:       pl.Paths(),
		Parallelism: pl.parallelism,
		Constraints: &constraints,
		Metrics:     pl.metrics,
	}
	result, err := search.Run(ctx)
	if result == nil {
		return nil, err
	}

	lg := logger.GetForComponent("planner")
	event := lg.Info().
		Str("objective", string(result.Objective)).
		Int("grid_size", result.GridSize).
		Int("ranked", len(result.Ranked)).
		Int("failed", len(result.Failed)).
		Int("pending", result.Pending)
	if best, ok := result.Best(); ok {
		event = event.Str("best", best.Key).Str("score", best.Score.String())
	}
	event.Msg("Optimization completed")
	return result, err
}

// MonteCarlo runs the scenario's strategy over runs seeded variations of the synthetic path.
// runs <= 0 uses the scenario's monte_carlo_runs.
func (pl *Plan) MonteCarlo(ctx context.Context, runs int) (*simulation.MonteCarloResult, error) {
	if pl.Source != pricepath.SourceSynthetic {
		return nil, ErrNotSynthetic
	}
	if runs <= 0 {
		runs = pl.Scenario.MonteCarloRuns
	}
	strat, err := strategy.FromConfig(pl.Strategy)
	if err != nil {
		return nil, err
	}
	sim, err := simulation.NewSimulator(pl.Simulation, strat)
	if err != nil {
		return nil, err
	}
	return sim.MonteCarlo(ctx, simulation.MonteCarloConfig{
		Runs:     runs,
		BaseSeed: pl.GBM.Seed,
		Path:     pl.GBM,
	})
}

// RecommendRange scores every width of the plan's search space as a static range over
// Monte Carlo variations of the synthetic path.
func (pl *Plan) RecommendRange(ctx context.Context, runs int) ([]optimizer.RangeCandidate, error) {
	if pl.Source != pricepath.SourceSynthetic {
		return nil, ErrNotSynthetic
	}
	if runs <= 0 {
		runs = pl.Scenario.MonteCarloRuns
	}
	return optimizer.RangeSearch{
		Widths:     pl.Space.RangeWidths,
		Runs:       runs,
		BaseSeed:   pl.GBM.Seed,
		Path:       pl.GBM,
		Simulation: pl.Simulation,
		Objective:  pl.Objective,
	}.RecommendRange(ctx)
}

// WithStrategy returns a copy of the plan that runs cfg instead of the scenario's strategy.
func (pl *Plan) WithStrategy(cfg strategy.Config) *Plan {
	out := *pl
	out.Strategy = cfg
	return &out
}

// Synthetic returns a copy of the plan that runs over GBM paths described by gbm.
func (pl *Plan) Synthetic(gbm pricepath.GBMConfig) *Plan {
	out := *pl
	out.Source = pricepath.SourceSynthetic
	out.GBM = gbm
	out.Samples = nil
	return &out
}
