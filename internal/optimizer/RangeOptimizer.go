package optimizer

import (
	"context"
	"fmt"
	"slices"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// RangeSearch recommends a static range width by simulating each candidate over the same
// batch of Monte Carlo paths.
type RangeSearch struct {
	Widths     []decimal.Decimal // Defaults to DefaultWidths
	Runs       int
	BaseSeed   int64
	Path       pricepath.GBMConfig
	Simulation simulation.Config
	Objective  Objective
}

// RangeCandidate is the outcome of one width.
type RangeCandidate struct {
	Width      decimal.Decimal              `json:"width"`
	Range      types.PriceRange             `json:"range"`      // Range around the path's start price
	MeanScore  decimal.Decimal              `json:"mean_score"` // Mean over runs with a defined score
	Defined    bool                         `json:"defined"`
	MonteCarlo *simulation.MonteCarloResult `json:"monte_carlo"`
}

// RecommendRange evaluates every width and returns the candidates best first.
// Widths that cannot be simulated are skipped; an error is returned only when none can.
func (rs RangeSearch) RecommendRange(ctx context.Context) ([]RangeCandidate, error) {
	rangeLogger := logger.GetForComponent("range_optimizer")

	if rs.Objective == nil {
		return nil, ErrNoObjective
	}
	widths := rs.Widths
	if len(widths) == 0 {
		widths = DefaultWidths
	}

	candidates := make([]RangeCandidate, 0, len(widths))
	var lastErr error
	for _, w := range widths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := rs.evaluate(ctx, w)
		if err != nil {
			rangeLogger.Warn().Err(err).Str("width", w.String()).Msg("Skipping range width")
			lastErr = err
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no range width could be evaluated: %w", lastErr)
	}

	slices.SortStableFunc(candidates, func(a, b RangeCandidate) int {
		if a.Defined != b.Defined {
			if a.Defined {
				return -1
			}
			return 1
		}
		if c := b.MeanScore.Cmp(a.MeanScore); c != 0 && a.Defined {
			return c
		}
		return a.Width.Cmp(b.Width)
	})

	best := candidates[0]
	rangeLogger.Debug().
		Str("width", best.Width.String()).
		Str("range", best.Range.String()).
		Str("score", best.MeanScore.String()).
		Msg("Recommended range")
	return candidates, nil
}

func (rs RangeSearch) evaluate(ctx context.Context, width decimal.Decimal) (RangeCandidate, error) {
	spec := strategy.RangeSpec{WidthPct: width}
	rng, err := spec.Around(rs.Path.StartPrice)
	if err != nil {
		return RangeCandidate{}, err
	}
	sim, err := simulation.NewSimulator(rs.Simulation, &strategy.Static{Range: spec})
	if err != nil {
		return RangeCandidate{}, err
	}

	sum, defined := decimal.Zero, 0
	mc, err := sim.MonteCarlo(ctx, simulation.MonteCarloConfig{
		Runs:     rs.Runs,
		BaseSeed: rs.BaseSeed,
		Path:     rs.Path,
		OnReport: func(_ int, report *types.SimulationReport) {
			if score, ok := rs.Objective.Evaluate(report); ok {
				sum = sum.Add(score)
				defined++
			}
		},
	})
	if err != nil {
		return RangeCandidate{}, err
	}

	c := RangeCandidate{Width: width, Range: rng, MonteCarlo: mc}
	if defined > 0 {
		c.MeanScore = sum.Div(decimal.NewFromInt(int64(defined)))
		c.Defined = true
	}
	return c, nil
}
