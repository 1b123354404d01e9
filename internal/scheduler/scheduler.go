/*

This file contains the periodic re-optimization loop.

Every cycle downloads a fresh window of hourly history, grid-searches the scenario's
parameter space over it, replays the winning parameters as a stored backtest, and
projects them forward over GBM paths calibrated on the same window. Cycle numbers are
persisted so they keep increasing across restarts.

*/

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/planner"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/state"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoBestParameters = errors.New("grid search produced no ranked parameters")
)

// Config holds the dependencies of a Scheduler.
type Config struct {
	Scenario *config.Scenario // Strategy, pool, capital, objective and search space
	Fetcher  planner.SampleSource
	Store    state.Store
	Cycles   state.CycleCounter

	Symbol string // Defaults to the scenario's base token
	Quote  string // Defaults to USD
	Hours  int    // History window per cycle, defaults to 720

	ForwardSteps int // Length of the forward projection; 0 disables it
	ForwardRuns  int // Monte Carlo runs of the projection; 0 uses the scenario's

	Parallelism int
	Metrics     *optimizer.Metrics
}

// CycleResult is what one cycle produced.
type CycleResult struct {
	CycleID        string                       `json:"cycle_id"`
	CycleNumber    int                          `json:"cycle_number"`
	OptimizationID string                       `json:"optimization_id"`
	RunID          string                       `json:"run_id"`
	Best           optimizer.Evaluation         `json:"best"`
	Forward        *simulation.MonteCarloResult `json:"forward,omitempty"`
	Duration       time.Duration                `json:"duration"`
}

// Scheduler re-optimizes a scenario on a fixed interval.
type Scheduler struct {
	logger  zerolog.Logger
	cfg     Config
	planner *planner.Planner
}

// New validates cfg and fills its defaults.
func New(cfg Config) (*Scheduler, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("scheduler configuration validation failed: %w", err)
	}
	s := &Scheduler{
		logger: logger.GetForComponent("scheduler"),
		cfg:    cfg,
		planner: &planner.Planner{
			Fetcher:     cfg.Fetcher,
			Parallelism: cfg.Parallelism,
			Metrics:     cfg.Metrics,
		},
	}
	s.logger.Info().
		Str("symbol", cfg.Symbol).
		Str("quote", cfg.Quote).
		Int("hours", cfg.Hours).
		Str("strategy", cfg.Scenario.StrategyType).
		Msg("Scheduler created")
	return s, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Scenario == nil {
		return fmt.Errorf("scenario cannot be nil")
	}
	if cfg.Fetcher == nil {
		return fmt.Errorf("price fetcher cannot be nil")
	}
	if cfg.Store == nil {
		return fmt.Errorf("store cannot be nil")
	}
	if cfg.Cycles == nil {
		return fmt.Errorf("cycle counter cannot be nil")
	}
	if cfg.Symbol == "" {
		cfg.Symbol = cfg.Scenario.Pool.SymbolA
	}
	if cfg.Symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if cfg.Quote == "" {
		cfg.Quote = "USD"
	}
	if cfg.Hours == 0 {
		cfg.Hours = 720
	}
	if cfg.Hours < 2 {
		return fmt.Errorf("history window must be at least 2 hours, got %d", cfg.Hours)
	}
	if cfg.ForwardSteps < 0 || cfg.ForwardRuns < 0 {
		return fmt.Errorf("forward projection settings cannot be negative")
	}
	return nil
}

// RunLoop runs a cycle immediately and then every interval until ctx is done.
// A failed cycle is logged and the loop carries on.
func (s *Scheduler) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().Dur("interval", interval).Msg("Starting scheduler loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped due to context cancellation")
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Scheduler cycle failed")
	}
}

// RunCycle executes one complete re-optimization cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleResult, error) {
	started := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	result := &CycleResult{CycleID: uuid.New().String()}
	cycleLogger := s.logger.With().Str("cycle_id", result.CycleID).Logger()

	cycleNumber, err := s.cfg.Cycles.IncrementCycleNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("increment cycle number: %w", err)
	}
	result.CycleNumber = cycleNumber
	cycleLogger = cycleLogger.With().Int("cycle", cycleNumber).Logger()
	cycleLogger.Info().Msg("--- Starting Scheduler Cycle ---")

	// ===== STEP 1: FETCH HISTORY =====
	samples, err := s.cfg.Fetcher.FetchHourlySamples(ctx, s.cfg.Symbol, s.cfg.Quote, s.cfg.Hours)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	cycleLogger.Info().Int("samples", len(samples)).Msg("Step 1: History fetched")

	// ===== STEP 2: OPTIMIZE OVER HISTORY =====
	sc := *s.cfg.Scenario
	sc.PathSource = config.PathSource{
		Type:   pricepath.SourceHistorical,
		Symbol: s.cfg.Symbol,
		Quote:  s.cfg.Quote,
		Hours:  s.cfg.Hours,
	}
	sc.RNGSeed = nil
	plan, err := s.planner.Build(ctx, &sc, samples)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	optimization, err := plan.Optimize(ctx)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	best, ok := optimization.Best()
	if !ok {
		return nil, ErrNoBestParameters
	}
	result.Best = best
	cycle := cycleNumber
	result.OptimizationID, err = s.cfg.Store.SaveOptimizationRun(ctx, &state.OptimizationRecord{
		Source:      state.SourceScheduler,
		CycleNumber: &cycle,
		Result:      optimization,
	})
	if err != nil {
		return nil, fmt.Errorf("save optimization: %w", err)
	}
	cycleLogger.Info().
		Str("optimization_id", result.OptimizationID).
		Str("best", best.Key).
		Str("score", best.Score.String()).
		Msg("Step 2: Parameters optimized")

	// ===== STEP 3: STORE THE WINNING BACKTEST =====
	bestPlan := plan.WithStrategy(best.Parameters.Strategy)
	report, err := bestPlan.Backtest(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay best parameters: %w", err)
	}
	tags := []string{fmt.Sprintf("cycle-%d", cycleNumber), s.cfg.Symbol}
	if err := s.cfg.Store.SaveSimulationReport(ctx, report, state.SourceScheduler, tags); err != nil {
		return nil, fmt.Errorf("save backtest: %w", err)
	}
	result.RunID = report.RunID
	cycleLogger.Info().Str("run_id", report.RunID).Msg("Step 3: Best parameters replayed")

	// ===== STEP 4: FORWARD PROJECTION =====
	if s.cfg.ForwardSteps > 0 {
		calibration, err := pricepath.CalibrateGBM(samples)
		if err != nil {
			return nil, fmt.Errorf("calibrate: %w", err)
		}
		gbm := calibration.GBMConfig(s.cfg.ForwardSteps, config.DefaultSeed+int64(cycleNumber))
		result.Forward, err = bestPlan.Synthetic(gbm).MonteCarlo(ctx, s.cfg.ForwardRuns)
		if err != nil {
			return nil, fmt.Errorf("forward projection: %w", err)
		}
		cycleLogger.Info().
			Str("drift", calibration.Drift.String()).
			Str("volatility", calibration.Volatility.String()).
			Str("mean_pnl", result.Forward.MeanPnL.String()).
			Str("var_95", result.Forward.VaR95.String()).
			Msg("Step 4: Forward projection completed")
	}

	result.Duration = time.Since(started)
	cycleLogger.Info().Str("cycleDuration", result.Duration.String()).Msg("--- Scheduler Cycle Completed Successfully ---")
	return result, nil
}
