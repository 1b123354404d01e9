package optimizer

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func simConfig() simulation.Config {
	return simulation.Config{
		Capital:       dec("10000"),
		PoolLiquidity: dec("1000000"),
		Pool: types.PoolParameters{
			TokenA:  types.Token{Symbol: "SOL", Decimals: 9},
			TokenB:  types.Token{Symbol: "USDC", Decimals: 6},
			FeeTier: dec("0.003"),
		},
	}
}

func samples(volume string, prices ...string) []types.PricePathSample {
	out := make([]types.PricePathSample, len(prices))
	for i, p := range prices {
		out[i] = types.PricePathSample{Timestamp: t0.Add(time.Duration(i) * time.Hour), Price: dec(p), Volume: dec(volume)}
	}
	return out
}

func flatPrices(n int) []string {
	return lo.Times(n, func(int) string { return "100" })
}

func wavePrices() []string {
	return []string{"100", "101", "102.5", "101", "99", "97.5", "98", "100", "103", "104", "102", "100.5"}
}

func mixedSpace(widths ...string) ParameterSpace {
	return ParameterSpace{
		Strategies: []StrategySpace{
			{Type: strategy.KindStatic},
			{Type: strategy.KindPeriodic, Intervals: []int{3, 5}},
			{Type: strategy.KindThreshold, Thresholds: decimals("0.02")},
			{Type: strategy.KindILLimit, MaxILs: decimals("0.01")},
		},
		RangeWidths:  decimals(widths...),
		RangeOffsets: decimals("0", "0.01"),
	}
}

func keys(evs []Evaluation) []string {
	return lo.Map(evs, func(e Evaluation, _ int) string { return e.Key })
}

// ===== PARAMETER SPACE =====

func TestParameterSpace_Grid(t *testing.T) {
	space := mixedSpace("0.05", "0.1")
	grid, err := space.Grid()
	require.NoError(t, err)
	assert.Len(t, grid, 20)
	assert.Equal(t, space.Size(), len(grid))

	assert.Equal(t, "type=STATIC;width=0.05;offset=0", grid[0].Key())
	assert.Equal(t, "type=STATIC;width=0.05;offset=0.01", grid[1].Key())
	assert.Equal(t, "type=STATIC;width=0.1;offset=0", grid[2].Key())
	assert.Equal(t, "type=PERIODIC;width=0.05;offset=0;interval=3", grid[4].Key())
	assert.Equal(t, "type=IL_LIMIT;width=0.1;offset=0.01;max_il=0.01;close=false;grace=0;oor=false", grid[19].Key())

	unique := lo.Uniq(lo.Map(grid, func(p Parameters, _ int) string { return p.Key() }))
	assert.Len(t, unique, len(grid))
}

func TestParameterSpace_Validate(t *testing.T) {
	_, err := ParameterSpace{RangeWidths: decimals("0.1")}.Grid()
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = ParameterSpace{Strategies: []StrategySpace{{Type: strategy.KindStatic}}}.Grid()
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = ParameterSpace{
		Strategies:  []StrategySpace{{Type: strategy.KindPeriodic}},
		RangeWidths: decimals("0.1"),
	}.Grid()
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestDefaultParameterSpace(t *testing.T) {
	space := DefaultParameterSpace()
	assert.Equal(t, (1+6+6+6)*6, space.Size())

	static := DefaultParameterSpace(strategy.KindStatic)
	assert.Equal(t, 6, static.Size())
}

// ===== OBJECTIVES =====

func testReport() *types.SimulationReport {
	sharpe := dec("1.5")
	return &types.SimulationReport{
		Snapshots: []types.SimulationSnapshot{
			{ImpermanentLoss: dec("0")},
			{ImpermanentLoss: dec("-12")},
			{ImpermanentLoss: dec("-4")},
		},
		Summary: types.SimulationSummary{
			NetPnL:      dec("30"),
			TotalFees:   dec("50"),
			TotalIL:     dec("-20"),
			MaxDrawdown: dec("0.1"),
			TimeInRange: dec("0.75"),
			SharpeRatio: &sharpe,
		},
	}
}

func TestObjectives(t *testing.T) {
	r := testReport()
	tests := []struct {
		name    string
		obj     Objective
		want    string
		defined bool
	}{
		{"net pnl", NetPnL{}, "30", true},
		{"fees", FeeEarnings{}, "50", true},
		{"sharpe", Sharpe{}, "1.5", true},
		{"min il uses worst snapshot", MinIL{}, "-12", true},
		{"min il below fee floor", MinIL{MinFees: dec("60")}, "0", false},
		{"time in range", TimeInRange{}, "0.75", true},
		{"risk adjusted", RiskAdjustedReturn{RiskWeight: dec("100")}, "20", true},
		// 30 - 0.5*20 - 0.3*0.1
		{"composite", Composite{Weights: DefaultCompositeWeights()}, "19.97", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, ok := tt.obj.Evaluate(r)
			assert.Equal(t, tt.defined, ok)
			if ok {
				assert.True(t, score.Equal(dec(tt.want)), "got %s", score)
			}
		})
	}

	r.Summary.SharpeRatio = nil
	_, ok := Sharpe{}.Evaluate(r)
	assert.False(t, ok)
}

func TestParseObjective(t *testing.T) {
	for _, name := range []string{"net_pnl", "FEE_EARNINGS", "sharpe", "min_il", "time_in_range", "risk_adjusted_return", "composite"} {
		obj, err := ParseObjective(name)
		require.NoError(t, err, name)
		assert.Equal(t, ObjectiveKind(strings.ToUpper(name)), obj.Name())
	}
	for name, want := range map[string]ObjectiveKind{"NetPnL": ObjectiveNetPnL, "MinIL": ObjectiveMinIL, "TimeInRange": ObjectiveTimeInRange} {
		obj, err := ParseObjective(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, obj.Name())
	}
	_, err := ParseObjective("moon")
	assert.ErrorIs(t, err, types.ErrValidation)
}

// ===== RANKING =====

func TestRank(t *testing.T) {
	evs := []Evaluation{
		{Key: "d", Defined: false},
		{Key: "c", Score: dec("1"), Defined: true},
		{Key: "b", Score: dec("2"), Defined: true},
		{Key: "a", Score: dec("1"), Defined: true},
		{Key: "0", Defined: false},
	}
	Rank(evs)
	assert.Equal(t, []string{"b", "a", "c", "0", "d"}, keys(evs))
}

// ===== GRID SEARCH =====

func TestGridSearch_NarrowestWidthWinsOnFlatPath(t *testing.T) {
	for _, obj := range []Objective{MinIL{}, FeeEarnings{}} {
		gs := &GridSearch{
			Space: ParameterSpace{
				Strategies:  []StrategySpace{{Type: strategy.KindStatic}},
				RangeWidths: decimals("0.20", "0.05", "0.10"),
			},
			Objective:   obj,
			Simulation:  simConfig(),
			Paths:       HistoricalPaths(samples("1000", flatPrices(20)...)),
			Parallelism: 3,
		}
		res, err := gs.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, res.Ranked, 3)
		assert.Empty(t, res.Failed)
		assert.Equal(t, []string{
			"type=STATIC;width=0.05;offset=0",
			"type=STATIC;width=0.1;offset=0",
			"type=STATIC;width=0.2;offset=0",
		}, keys(res.Ranked), "objective %s", obj.Name())
	}
}

func TestGridSearch_Completeness(t *testing.T) {
	gs := &GridSearch{
		Space:       mixedSpace("0.05", "0.1", "2.5"),
		Objective:   NetPnL{},
		Simulation:  simConfig(),
		Paths:       HistoricalPaths(samples("1000", wavePrices()...)),
		Parallelism: 4,
	}
	res, err := gs.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, res.GridSize)
	assert.Equal(t, 0, res.Pending)
	assert.Len(t, res.Failed, 10)
	assert.Len(t, res.Ranked, 20)
	for _, f := range res.Failed {
		require.NotNil(t, f.Failure)
		assert.Equal(t, types.FailureInvalidRange, f.Failure.Kind)
		assert.True(t, f.Parameters.Strategy.RangeWidthPct.Equal(dec("2.5")))
	}
	for _, ev := range res.Ranked {
		require.NotNil(t, ev.Summary)
		assert.True(t, ev.Defined)
	}

	indices := append(lo.Map(res.Ranked, func(e Evaluation, _ int) int { return e.Index }),
		lo.Map(res.Failed, func(e Evaluation, _ int) int { return e.Index })...)
	assert.ElementsMatch(t, lo.Range(30), indices)
}

func TestGridSearch_RankingIsIndependentOfParallelism(t *testing.T) {
	run := func(parallelism int) []string {
		gs := &GridSearch{
			Space:       mixedSpace("0.05", "0.1"),
			Objective:   TimeInRange{},
			Simulation:  simConfig(),
			Paths:       HistoricalPaths(samples("1000", wavePrices()...)),
			Parallelism: parallelism,
		}
		res, err := gs.Run(context.Background())
		require.NoError(t, err)
		return keys(res.Ranked)
	}
	sequential := run(1)
	assert.Equal(t, sequential, run(8))
	assert.Equal(t, sequential, run(3))
}

// panicky panics on periodic strategies and scores everything else by net PnL.
type panicky struct{}

func (panicky) Name() ObjectiveKind { return "PANICKY" }
func (panicky) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	if strings.HasPrefix(r.Strategy, "PERIODIC") {
		panic("boom")
	}
	return r.Summary.NetPnL, true
}

func TestGridSearch_IsolatesPanics(t *testing.T) {
	gs := &GridSearch{
		Space:       mixedSpace("0.05"),
		Objective:   panicky{},
		Simulation:  simConfig(),
		Paths:       HistoricalPaths(samples("1000", wavePrices()...)),
		Parallelism: 2,
	}
	res, err := gs.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Failed, 4)
	assert.Len(t, res.Ranked, 6)
	for _, f := range res.Failed {
		assert.Equal(t, types.FailureInternal, f.Failure.Kind)
		assert.Contains(t, f.Failure.Message, "boom")
		assert.Nil(t, f.Summary)
	}
}

func TestGridSearch_InsufficientDataIsAFailedPoint(t *testing.T) {
	gs := &GridSearch{
		Space:      mixedSpace("0.05"),
		Objective:  NetPnL{},
		Simulation: simConfig(),
		Paths:      HistoricalPaths(samples("1000", "100")),
	}
	res, err := gs.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.Len(t, res.Failed, 10)
	assert.Equal(t, types.FailureInsufficientData, res.Failed[0].Failure.Kind)
}

// cancelling cancels the search after its first evaluation.
type cancelling struct {
	cancel context.CancelFunc
	calls  *atomic.Int32
}

func (cancelling) Name() ObjectiveKind { return "CANCELLING" }
func (c cancelling) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	c.calls.Add(1)
	c.cancel()
	return r.Summary.NetPnL, true
}

func TestGridSearch_CancellationKeepsFinishedPoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := &atomic.Int32{}

	gs := &GridSearch{
		Space:       mixedSpace("0.05", "0.1"),
		Objective:   cancelling{cancel: cancel, calls: calls},
		Simulation:  simConfig(),
		Paths:       HistoricalPaths(samples("1000", wavePrices()...)),
		Parallelism: 1,
	}
	res, err := gs.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, res.Ranked, 1)
	assert.Equal(t, 0, res.Ranked[0].Index)
	assert.NotNil(t, res.Ranked[0].Summary)
	assert.Equal(t, 19, res.Pending)
	assert.Equal(t, res.GridSize, len(res.Ranked)+len(res.Failed)+res.Pending)
}

func TestGridSearch_Constraints(t *testing.T) {
	gs := &GridSearch{
		Space: ParameterSpace{
			Strategies:  []StrategySpace{{Type: strategy.KindPeriodic, Intervals: []int{1, 3}}},
			RangeWidths: decimals("0.005", "0.1"),
		},
		Objective:   NetPnL{},
		Simulation:  simConfig(),
		Paths:       HistoricalPaths(samples("1000", wavePrices()...)),
		Constraints: &Constraints{MinRangeWidth: dec("0.01"), MaxRangeWidth: dec("0.5"), MinInterval: 2, MaxInterval: 168},
	}
	res, err := gs.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Ranked, 1)
	assert.Equal(t, "type=PERIODIC;width=0.1;offset=0;interval=3", res.Ranked[0].Key)
	for _, f := range res.Failed {
		assert.Equal(t, types.FailureValidation, f.Failure.Kind)
		assert.Contains(t, f.Failure.Message, "constraint violated")
	}

	limited := Constraints{MaxRebalances: 1}
	assert.ErrorIs(t, limited.CheckReport(&types.SimulationReport{Summary: types.SimulationSummary{RebalanceCount: 2}}), ErrConstraintViolated)
	assert.NoError(t, limited.CheckReport(&types.SimulationReport{Summary: types.SimulationSummary{RebalanceCount: 1}}))
}

func TestGridSearch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	gs := &GridSearch{
		Space:      mixedSpace("0.05", "2.5"),
		Objective:  NetPnL{},
		Simulation: simConfig(),
		Paths:      HistoricalPaths(samples("1000", wavePrices()...)),
		Metrics:    m,
	}
	res, err := gs.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, float64(len(res.Ranked)), testutil.ToFloat64(m.pointsTotal.WithLabelValues(outcomeOK)))
	assert.Equal(t, float64(len(res.Failed)), testutil.ToFloat64(m.pointsTotal.WithLabelValues(outcomeFailed)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	best, ok := res.Best()
	require.True(t, ok)
	assert.InDelta(t, best.Score.InexactFloat64(), testutil.ToFloat64(m.bestScore.WithLabelValues(string(ObjectiveNetPnL))), 1e-9)
}

func TestGridSearch_RequiresObjectiveAndPaths(t *testing.T) {
	_, err := (&GridSearch{Space: mixedSpace("0.1"), Paths: HistoricalPaths(nil)}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoObjective)
	_, err = (&GridSearch{Space: mixedSpace("0.1"), Objective: NetPnL{}}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoPathFactory)
}

// ===== RANGE SEARCH =====

func TestRecommendRange(t *testing.T) {
	rs := RangeSearch{
		Widths:   decimals("0.5", "0.05"),
		Runs:     3,
		BaseSeed: 1,
		Path: pricepath.GBMConfig{
			StartPrice:   dec("100"),
			Volatility:   dec("0.3"),
			StepDuration: time.Hour,
			StepCount:    24,
			StartTime:    t0,
			Volume:       pricepath.ConstantVolume{Amount: dec("5000")},
		},
		Simulation: simConfig(),
		Objective:  FeeEarnings{},
	}
	candidates, err := rs.RecommendRange(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.True(t, candidates[0].Width.Equal(dec("0.05")))
	assert.True(t, candidates[0].Defined)
	assert.True(t, candidates[0].MeanScore.GreaterThan(candidates[1].MeanScore))
	assert.True(t, candidates[0].Range.Contains(dec("100")))
	assert.Equal(t, 3, candidates[0].MonteCarlo.Runs)
}
