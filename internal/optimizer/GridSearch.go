/*

This file contains the grid search optimizer.

Every grid point gets a fresh strategy, simulator and price path, so points share nothing
but the read-only grid. Each worker writes exactly one slot addressed by the point's grid
index; ranking happens only after all workers are done, never in completion order.

Cancellation is checked before a point starts. A point already simulating runs to the end,
so every result in a partial Result is complete.

*/

package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNoObjective   = fmt.Errorf("%w: grid search needs an objective", types.ErrValidation)
	ErrNoPathFactory = fmt.Errorf("%w: grid search needs a price path factory", types.ErrValidation)
	ErrPanic         = errors.New("grid point panicked")
)

// Outcome labels
const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)

// PathFactory returns a fresh, unshared price path for one grid point.
type PathFactory func() (pricepath.Path, error)

// HistoricalPaths returns a factory replaying samples.
func HistoricalPaths(samples []types.PricePathSample) PathFactory {
	return func() (pricepath.Path, error) { return pricepath.NewHistorical(samples) }
}

// SyntheticPaths returns a factory of GBM paths that all replay the same seed.
func SyntheticPaths(cfg pricepath.GBMConfig) PathFactory {
	return func() (pricepath.Path, error) { return pricepath.NewSynthetic(cfg) }
}

// Failure explains why a grid point produced no score.
type Failure struct {
	Kind    types.FailureKind `json:"kind"`
	Message string            `json:"message"`
}

// Evaluation is the outcome of one grid point. Exactly one of Summary and Failure is set.
type Evaluation struct {
	Index      int                      `json:"index"`
	Parameters Parameters               `json:"parameters"`
	Key        string                   `json:"key"`
	Score      decimal.Decimal          `json:"score"`
	Defined    bool                     `json:"defined"` // False when the objective is undefined for the run
	Summary    *types.SimulationSummary `json:"summary,omitempty"`
	Failure    *Failure                 `json:"failure,omitempty"`
}

// Result of a grid search.
type Result struct {
	Objective ObjectiveKind `json:"objective"`
	GridSize  int           `json:"grid_size"`
	Ranked    []Evaluation  `json:"ranked"`  // Successful points, best first
	Failed    []Evaluation  `json:"failed"`  // Failed points in grid order
	Pending   int           `json:"pending"` // Points never started because of cancellation
	Duration  time.Duration `json:"duration"`
}

// Best returns the top ranked point.
func (r *Result) Best() (Evaluation, bool) {
	if len(r.Ranked) == 0 {
		return Evaluation{}, false
	}
	return r.Ranked[0], true
}

// Top returns at most n ranked points.
func (r *Result) Top(n int) []Evaluation {
	if n > len(r.Ranked) {
		n = len(r.Ranked)
	}
	return r.Ranked[:n]
}

// GridSearch evaluates every point of Space against one price path definition.
type GridSearch struct {
	Space       ParameterSpace
	Objective   Objective
	Simulation  simulation.Config // Shared base config; RunID is replaced per point
	Paths       PathFactory
	Parallelism int          // Defaults to GOMAXPROCS
	Constraints *Constraints // Optional
	Metrics     *Metrics     // Optional
}

// Run evaluates the grid. On cancellation it returns the points finished so far together
// with the context error.
func (g *GridSearch) Run(ctx context.Context) (*Result, error) {
	searchLogger := logger.GetForComponent("grid_search")
	started := time.Now()

	if g.Objective == nil {
		return nil, ErrNoObjective
	}
	if g.Paths == nil {
		return nil, ErrNoPathFactory
	}
	grid, err := g.Space.Grid()
	if err != nil {
		return nil, err
	}
	parallelism := g.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	searchLogger.Debug().
		Str("objective", string(g.Objective.Name())).
		Int("grid_size", len(grid)).
		Int("parallelism", parallelism).
		Msg("Starting grid search")

	// ===== EVALUATION =====
	slots := make([]*Evaluation, len(grid))
	semaphore := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

launch:
	for i := range grid {
		select {
		case <-ctx.Done():
			break launch
		case semaphore <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-semaphore
			break launch
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			ev := g.evaluate(ctx, idx, grid[idx])
			slots[idx] = &ev
		}(i)
	}
	wg.Wait()

	// ===== RANKING =====
	result := &Result{Objective: g.Objective.Name(), GridSize: len(grid)}
	for _, ev := range slots {
		switch {
		case ev == nil:
			result.Pending++
		case ev.Failure != nil:
			result.Failed = append(result.Failed, *ev)
		default:
			result.Ranked = append(result.Ranked, *ev)
		}
	}
	Rank(result.Ranked)
	result.Duration = time.Since(started)

	var best *Evaluation
	if len(result.Ranked) > 0 {
		best = &result.Ranked[0]
	}
	g.Metrics.searchFinished(result.Objective, result.Duration.Seconds(), best)

	searchLogger.Debug().
		Int("ranked", len(result.Ranked)).
		Int("failed", len(result.Failed)).
		Int("pending", result.Pending).
		Dur("duration", result.Duration).
		Msg("Grid search finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// evaluate runs one grid point. It never panics and never returns without a result.
func (g *GridSearch) evaluate(ctx context.Context, idx int, p Parameters) (ev Evaluation) {
	pointLogger := logger.GetForComponent("grid_search")
	started := time.Now()
	ev = Evaluation{Index: idx, Parameters: p, Key: p.Key()}
	g.Metrics.pointStarted()

	defer func() {
		if r := recover(); r != nil {
			ev.Summary = nil
			ev.Score = decimal.Zero
			ev.Defined = false
			ev.Failure = &Failure{Kind: types.FailureInternal, Message: fmt.Sprintf("%v: %v", ErrPanic, r)}
		}
		outcome := outcomeOK
		if ev.Failure != nil {
			outcome = outcomeFailed
			pointLogger.Warn().
				Int("index", idx).
				Str("key", ev.Key).
				Str("kind", string(ev.Failure.Kind)).
				Str("error", ev.Failure.Message).
				Msg("Grid point failed")
		}
		g.Metrics.pointFinished(outcome, time.Since(started).Seconds())
	}()

	report, err := g.simulate(ctx, idx, p)
	if err != nil {
		ev.Failure = &Failure{Kind: types.Classify(err), Message: err.Error()}
		return ev
	}
	ev.Summary = &report.Summary
	ev.Score, ev.Defined = g.Objective.Evaluate(report)
	return ev
}

func (g *GridSearch) simulate(ctx context.Context, idx int, p Parameters) (*types.SimulationReport, error) {
	if g.Constraints != nil {
		if err := g.Constraints.CheckParameters(p, g.Simulation.Capital); err != nil {
			return nil, err
		}
	}
	strat, err := strategy.FromConfig(p.Strategy)
	if err != nil {
		return nil, err
	}
	cfg := g.Simulation
	cfg.RunID = fmt.Sprintf("grid-%d", idx)
	sim, err := simulation.NewSimulator(cfg, strat)
	if err != nil {
		return nil, err
	}
	path, err := g.Paths()
	if err != nil {
		return nil, err
	}
	// Points are not interrupted once started.
	report, err := sim.Run(context.WithoutCancel(ctx), path)
	if err != nil {
		return nil, err
	}
	if g.Constraints != nil {
		if err := g.Constraints.CheckReport(report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// Rank sorts evaluations best first: defined scores descending, undefined scores last,
// equal scores by Key.
func Rank(evs []Evaluation) {
	slices.SortStableFunc(evs, compareEvaluations)
}

func compareEvaluations(a, b Evaluation) int {
	if a.Defined != b.Defined {
		if a.Defined {
			return -1
		}
		return 1
	}
	if a.Defined {
		if c := b.Score.Cmp(a.Score); c != 0 {
			return c
		}
	}
	return strings.Compare(a.Key, b.Key)
}
