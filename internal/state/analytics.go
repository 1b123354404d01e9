package state

import (
	"context"
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// GetAnalytics aggregates every stored run and optimization.
func (s *PostgresStore) GetAnalytics(ctx context.Context) (*Analytics, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	a := &Analytics{ByStrategy: map[string]StrategyStats{}}

	// Get aggregated metrics from all runs
	query := `
		SELECT
			COUNT(*) as total_runs,
			COALESCE(AVG(net_pnl), 0) as avg_net_pnl,
			COALESCE(MAX(net_pnl), 0) as best_net_pnl,
			COALESCE(SUM(rebalance_count), 0) as total_rebalances
		FROM simulation_runs
	`
	err := s.db.QueryRowContext(ctx, query).Scan(&a.TotalRuns, &a.AvgNetPnL, &a.BestNetPnL, &a.TotalRebalances)
	if err != nil {
		return nil, fmt.Errorf("failed to get run metrics: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM optimization_runs").Scan(&a.TotalOptimizations)
	if err != nil {
		return nil, fmt.Errorf("failed to count optimization runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			strategy_type,
			COUNT(*),
			AVG(net_pnl),
			AVG(total_fees),
			AVG(time_in_range),
			COUNT(CASE WHEN net_pnl > 0 THEN 1 END)
		FROM simulation_runs
		GROUP BY strategy_type
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy metrics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var st StrategyStats
		if err := rows.Scan(&kind, &st.Runs, &st.AvgNetPnL, &st.AvgFees, &st.AvgTimeInRange, &st.ProfitableRuns); err != nil {
			return nil, fmt.Errorf("failed to scan strategy row: %w", err)
		}
		a.ByStrategy[kind] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	if a.CurrentCycle, err = s.GetCurrentCycleNumber(ctx); err != nil {
		return nil, err
	}

	lg := logger.GetForComponent("analytics")
	lg.Debug().
		Int("totalRuns", a.TotalRuns).
		Int("totalOptimizations", a.TotalOptimizations).
		Msg("Retrieved analytics")
	return a, nil
}

// analyze computes Analytics from stored runs in memory.
func analyze(runs []RunSummary, optimizations, cycle int) *Analytics {
	a := &Analytics{
		TotalRuns:          len(runs),
		TotalOptimizations: optimizations,
		ByStrategy:         map[string]StrategyStats{},
		CurrentCycle:       cycle,
	}
	if len(runs) == 0 {
		return a
	}

	pnls := lo.Map(runs, func(r RunSummary, _ int) decimal.Decimal { return r.NetPnL })
	a.AvgNetPnL = decimal.Avg(pnls[0], pnls[1:]...)
	a.BestNetPnL = decimal.Max(pnls[0], pnls[1:]...)
	a.TotalRebalances = lo.SumBy(runs, func(r RunSummary) int { return r.RebalanceCount })

	for kind, group := range lo.GroupBy(runs, func(r RunSummary) string { return strategyKind(r.Strategy) }) {
		n := decimal.NewFromInt(int64(len(group)))
		a.ByStrategy[kind] = StrategyStats{
			Runs:           len(group),
			AvgNetPnL:      decimal.Sum(decimal.Zero, lo.Map(group, func(r RunSummary, _ int) decimal.Decimal { return r.NetPnL })...).Div(n),
			AvgFees:        decimal.Sum(decimal.Zero, lo.Map(group, func(r RunSummary, _ int) decimal.Decimal { return r.TotalFees })...).Div(n),
			AvgTimeInRange: decimal.Sum(decimal.Zero, lo.Map(group, func(r RunSummary, _ int) decimal.Decimal { return r.TimeInRange })...).Div(n),
			ProfitableRuns: lo.CountBy(group, func(r RunSummary) bool { return r.NetPnL.IsPositive() }),
		}
	}
	return a
}
