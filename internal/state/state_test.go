package state

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport(id, strategy string, pnl string, rebalances int) *types.SimulationReport {
	return &types.SimulationReport{
		RunID:    id,
		Strategy: strategy,
		Summary: types.SimulationSummary{
			NetPnL:         decimal.RequireFromString(pnl),
			TotalFees:      decimal.NewFromInt(10),
			TimeInRange:    decimal.RequireFromString("0.5"),
			RebalanceCount: rebalances,
		},
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0))
	assert.Equal(t, 10, clampLimit(-3))
	assert.Equal(t, 10, clampLimit(101))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, 100, clampLimit(100))
}

func TestStrategyKind(t *testing.T) {
	assert.Equal(t, "PERIODIC", strategyKind("PERIODIC(interval=24,width=0.1,offset=0)"))
	assert.Equal(t, "STATIC", strategyKind("STATIC"))
	assert.Equal(t, "", strategyKind(""))
}

func TestDSN(t *testing.T) {
	cfg := DBConfig{Host: "db", Port: 5433, User: "lp", Password: "secret", DBName: "clmm", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=lp password=secret dbname=clmm sslmode=disable", cfg.DSN())
}

func TestMemoryStoreSimulationRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.ErrorIs(t, store.SaveSimulationReport(ctx, nil, SourceCLI, nil), ErrNilReport)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		require.NoError(t, store.SaveSimulationReport(ctx, testReport(id, "STATIC(width=0.1,offset=0)", "1", 0), SourceCLI, []string{"Nightly"}))
	}
	assert.Error(t, store.SaveSimulationReport(ctx, testReport("run-0", "STATIC", "1", 0), SourceCLI, nil))

	rec, err := store.GetSimulationRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, SourceCLI, rec.Source)
	assert.True(t, rec.HasTag("nightly"))
	assert.False(t, rec.HasTag("weekly"))

	_, err = store.GetSimulationRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListSimulationRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "run-2", list[0].RunID)
	assert.Equal(t, "run-1", list[1].RunID)

	list, err = store.ListSimulationRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestMemoryStoreOptimizationRuns(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.SaveOptimizationRun(ctx, &OptimizationRecord{Source: SourceAPI})
	assert.Error(t, err)

	cycle := 4
	rec := &OptimizationRecord{
		Source:      SourceScheduler,
		CycleNumber: &cycle,
		Result:      &optimizer.Result{Objective: optimizer.ObjectiveNetPnL, GridSize: 3},
	}
	id, err := store.SaveOptimizationRun(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetOptimizationRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Result.GridSize)
	require.NotNil(t, got.CycleNumber)
	assert.Equal(t, 4, *got.CycleNumber)

	_, err = store.GetOptimizationRun(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCycleCounter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrementCycleNumber(ctx)
		}()
	}
	wg.Wait()

	n, err = store.GetCurrentCycleNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	require.NoError(t, store.ResetCycleNumber(ctx, 7))
	n, _ = store.IncrementCycleNumber(ctx)
	assert.Equal(t, 8, n)
	assert.Error(t, store.ResetCycleNumber(ctx, -1))
}

func TestAnalyze(t *testing.T) {
	now := time.Now()
	runs := []RunSummary{
		{RunID: "a", CreatedAt: now, Strategy: "STATIC(width=0.1,offset=0)", NetPnL: decimal.NewFromInt(30), TotalFees: decimal.NewFromInt(10), TimeInRange: decimal.RequireFromString("0.8"), RebalanceCount: 0},
		{RunID: "b", CreatedAt: now, Strategy: "PERIODIC(interval=24,width=0.1,offset=0)", NetPnL: decimal.NewFromInt(-10), TotalFees: decimal.NewFromInt(20), TimeInRange: decimal.RequireFromString("0.6"), RebalanceCount: 4},
		{RunID: "c", CreatedAt: now, Strategy: "PERIODIC(interval=12,width=0.2,offset=0)", NetPnL: decimal.NewFromInt(10), TotalFees: decimal.NewFromInt(30), TimeInRange: decimal.RequireFromString("0.4"), RebalanceCount: 6},
	}

	a := analyze(runs, 2, 5)
	assert.Equal(t, 3, a.TotalRuns)
	assert.Equal(t, 2, a.TotalOptimizations)
	assert.Equal(t, 5, a.CurrentCycle)
	assert.Equal(t, 10, a.TotalRebalances)
	assert.True(t, a.AvgNetPnL.Equal(decimal.NewFromInt(10)), a.AvgNetPnL.String())
	assert.True(t, a.BestNetPnL.Equal(decimal.NewFromInt(30)))

	require.Len(t, a.ByStrategy, 2)
	periodic := a.ByStrategy["PERIODIC"]
	assert.Equal(t, 2, periodic.Runs)
	assert.Equal(t, 1, periodic.ProfitableRuns)
	assert.True(t, periodic.AvgNetPnL.IsZero())
	assert.True(t, periodic.AvgFees.Equal(decimal.NewFromInt(25)))
	assert.True(t, periodic.AvgTimeInRange.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, 1, a.ByStrategy["STATIC"].ProfitableRuns)

	empty := analyze(nil, 0, 0)
	assert.Equal(t, 0, empty.TotalRuns)
	assert.True(t, empty.AvgNetPnL.IsZero())
	assert.Empty(t, empty.ByStrategy)
}

func TestMemoryStoreAnalytics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SaveSimulationReport(ctx, testReport("r1", "THRESHOLD(threshold=0.05,width=0.1,offset=0)", "5", 2), SourceAPI, nil))
	require.NoError(t, store.SaveSimulationReport(ctx, testReport("r2", "THRESHOLD(threshold=0.02,width=0.1,offset=0)", "-1", 3), SourceAPI, nil))
	_, err := store.IncrementCycleNumber(ctx)
	require.NoError(t, err)

	a, err := store.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, a.TotalRuns)
	assert.Equal(t, 5, a.TotalRebalances)
	assert.Equal(t, 1, a.CurrentCycle)
	assert.Equal(t, 2, a.ByStrategy["THRESHOLD"].Runs)
}
