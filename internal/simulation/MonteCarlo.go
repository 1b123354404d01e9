package simulation

import (
	"context"
	"fmt"
	"slices"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MonteCarloConfig describes a batch of synthetic runs. Run i uses seed BaseSeed+i.
type MonteCarloConfig struct {
	Runs     int
	BaseSeed int64
	Path     pricepath.GBMConfig

	// OnReport, when set, sees every finished run in order.
	OnReport func(run int, report *types.SimulationReport)
}

// MonteCarloResult aggregates the summaries of a batch.
type MonteCarloResult struct {
	Runs      int                       `json:"runs"`
	MeanPnL   decimal.Decimal           `json:"mean_pnl"`
	MedianPnL decimal.Decimal           `json:"median_pnl"`
	VaR95     decimal.Decimal           `json:"var_95"` // 5th percentile of net PnL
	MeanFees  decimal.Decimal           `json:"mean_fees"`
	MeanIL    decimal.Decimal           `json:"mean_il"`
	Summaries []types.SimulationSummary `json:"summaries"`
}

// MonteCarlo runs the simulator over cfg.Runs seeded GBM paths, one after the other.
// The first failing run aborts the batch.
func (s *Simulator) MonteCarlo(ctx context.Context, cfg MonteCarloConfig) (*MonteCarloResult, error) {
	mcLogger := logger.GetForComponent("monte_carlo")

	if cfg.Runs < 1 {
		return nil, fmt.Errorf("%w: monte carlo needs at least one run, got %d", types.ErrValidation, cfg.Runs)
	}
	if err := cfg.Path.Validate(); err != nil {
		return nil, err
	}

	summaries := make([]types.SimulationSummary, 0, cfg.Runs)
	for i := 0; i < cfg.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gbm := cfg.Path
		gbm.Seed = cfg.BaseSeed + int64(i)
		path, err := pricepath.NewSynthetic(gbm)
		if err != nil {
			return nil, err
		}
		report, err := s.Run(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("monte carlo run %d (seed %d): %w", i, gbm.Seed, err)
		}
		if cfg.OnReport != nil {
			cfg.OnReport(i, report)
		}
		summaries = append(summaries, report.Summary)
	}

	result := aggregate(summaries)
	mcLogger.Debug().
		Int("runs", result.Runs).
		Str("mean_pnl", result.MeanPnL.String()).
		Str("median_pnl", result.MedianPnL.String()).
		Str("var_95", result.VaR95.String()).
		Msg("Monte Carlo batch finished")
	return result, nil
}

func aggregate(summaries []types.SimulationSummary) *MonteCarloResult {
	n := len(summaries)
	count := decimal.NewFromInt(int64(n))

	pnls := lo.Map(summaries, func(s types.SimulationSummary, _ int) decimal.Decimal { return s.NetPnL })
	fees := lo.Map(summaries, func(s types.SimulationSummary, _ int) decimal.Decimal { return s.TotalFees })
	ils := lo.Map(summaries, func(s types.SimulationSummary, _ int) decimal.Decimal { return s.TotalIL })

	sorted := slices.Clone(pnls)
	slices.SortFunc(sorted, func(a, b decimal.Decimal) int { return a.Cmp(b) })

	return &MonteCarloResult{
		Runs:      n,
		MeanPnL:   decimal.Sum(decimal.Zero, pnls...).Div(count),
		MedianPnL: sorted[n/2],
		VaR95:     sorted[n*5/100],
		MeanFees:  decimal.Sum(decimal.Zero, fees...).Div(count),
		MeanIL:    decimal.Sum(decimal.Zero, ils...).Div(count),
		Summaries: summaries,
	}
}
