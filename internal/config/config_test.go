package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== ENVIRONMENT =====

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"LOG_LEVEL", "WEB_PORT", "OPTIMIZER_PARALLELISM", "DEFAULT_SEED", "DEFAULT_CAPITAL",
		"SCHEDULER_INTERVAL", "DB_NAME", "DB_USER", "DB_PORT"} {
		t.Setenv(key, "")
	}
	require.NoError(t, LoadConfig())

	assert.Equal(t, "info", LogLevel)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, 0, OptimizerParallelism)
	assert.Equal(t, int64(42), DefaultSeed)
	assert.True(t, DefaultCapital.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, time.Hour, SchedulerInterval)
	assert.Equal(t, 5432, Database.Port)
	assert.False(t, Database.Enabled())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("OPTIMIZER_PARALLELISM", "4")
	t.Setenv("DEFAULT_SEED", "7")
	t.Setenv("DEFAULT_CAPITAL", "2500.5")
	t.Setenv("SCHEDULER_INTERVAL", "15m")
	t.Setenv("DB_NAME", "clmm")
	t.Setenv("DB_USER", "lp")
	require.NoError(t, LoadConfig())

	assert.Equal(t, "9090", WebPort)
	assert.Equal(t, 4, OptimizerParallelism)
	assert.Equal(t, int64(7), DefaultSeed)
	assert.Equal(t, "2500.5", DefaultCapital.String())
	assert.Equal(t, 15*time.Minute, SchedulerInterval)
	assert.True(t, Database.Enabled())
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	tests := map[string]string{
		"OPTIMIZER_PARALLELISM": "many",
		"DEFAULT_SEED":          "-1",
		"DEFAULT_CAPITAL":       "lots",
		"SCHEDULER_INTERVAL":    "hourly",
		"DB_PORT":               "pg",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestRequiredGetEnv(t *testing.T) {
	os.Unsetenv("CLMM_TEST_MISSING")
	_, err := getEnv("CLMM_TEST_MISSING")
	assert.EqualError(t, err, "environment variable CLMM_TEST_MISSING is required but not set")
}

// ===== DEFAULTS =====

func TestDefaultSimulationConfig(t *testing.T) {
	capital := decimal.NewFromInt(1000)
	cfg := DefaultSimulationParameters.SimulationConfig(capital, types.PoolParameters{})
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.003", cfg.Pool.FeeTier.String())
	assert.Equal(t, "1", cfg.RebalanceCost.String())
	assert.True(t, cfg.PoolLiquidity.Equal(decimal.NewFromInt(1_000_000_000)))
}

func TestDefaultConstraintsAcceptDefaultGrid(t *testing.T) {
	grid, err := optimizer.DefaultParameterSpace().Grid()
	require.NoError(t, err)
	for _, p := range grid {
		assert.NoError(t, DefaultConstraints.CheckParameters(p, decimal.NewFromInt(1000)), p.Key())
	}
	assert.Error(t, DefaultConstraints.CheckParameters(grid[0], decimal.NewFromInt(50)))
}

// ===== SCENARIOS =====

const thresholdScenario = `
name: sol-usdc threshold
strategy_type: Threshold
strategy_params:
  threshold_pct: 0.05
range_width_pct: 0.10
objective: NetPnL
capital: 5000
path_source:
  type: synthetic
  start_price: 150
  volatility: 0.6
  steps: 48
  volume: 250000
rng_seed: 11
grid_resolution: 5
pool:
  symbol_a: SOL
  symbol_b: USDC
  decimals_a: 9
  decimals_b: 6
  tick_spacing: 64
  fee_tier: 0.003
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(thresholdScenario), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	cfg, err := s.StrategyConfig()
	require.NoError(t, err)
	assert.Equal(t, strategy.KindThreshold, cfg.Type)
	assert.Equal(t, "0.05", cfg.ThresholdPct.String())

	gbm, err := s.GBMConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(11), gbm.Seed)
	assert.Equal(t, time.Hour, gbm.StepDuration)
	assert.Equal(t, 48, gbm.StepCount)

	sim := s.SimulationConfig()
	assert.Equal(t, "5", sim.RebalanceCost.String())
	assert.Equal(t, 9, sim.Pool.DecimalsA())

	space, err := s.ParameterSpace()
	require.NoError(t, err)
	require.Len(t, space.Strategies, 1)
	assert.Equal(t, strategy.KindThreshold, space.Strategies[0].Type)
	widths := make([]string, len(space.RangeWidths))
	for i, w := range space.RangeWidths {
		widths[i] = w.String()
	}
	assert.Equal(t, []string{"0.01", "0.1325", "0.255", "0.3775", "0.5"}, widths)
}

func TestParameterSpaceKeepsScenarioSettings(t *testing.T) {
	s, err := ParseScenario([]byte(`
strategy_type: IL_LIMIT
strategy_params:
  max_il_pct: 0.03
  close_on_limit: true
  grace_period_steps: 4
  rebalance_on_out_of_range: true
range_width_pct: 0.10
range_offset_pct: 0.02
path_source: {start_price: 100, steps: 10}
`))
	require.NoError(t, err)

	space, err := s.ParameterSpace()
	require.NoError(t, err)
	require.Len(t, space.RangeOffsets, 1)
	assert.Equal(t, "0.02", space.RangeOffsets[0].String())
	require.Len(t, space.Strategies, 1)
	assert.True(t, space.Strategies[0].CloseOnLimit)
	assert.Equal(t, 4, space.Strategies[0].GracePeriodSteps)
	assert.True(t, space.Strategies[0].RebalanceOnOutOfRange)

	grid, err := space.Grid()
	require.NoError(t, err)
	assert.Equal(t, "type=IL_LIMIT;width=0.01;offset=0.02;max_il=0.01;close=true;grace=4;oor=true", grid[0].Key())
	for _, p := range grid {
		assert.Equal(t, "0.02", p.Strategy.RangeOffsetPct.String(), p.Key())
	}

	// Widths too narrow for the offset fail as configuration errors.
	_, err = strategy.FromConfig(grid[0].Strategy)
	assert.ErrorIs(t, err, strategy.ErrOffsetOutsideRange)
	assert.Equal(t, types.FailureValidation, types.Classify(err))
}

func TestScenarioDefaults(t *testing.T) {
	s, err := ParseScenario([]byte("path_source:\n  start_price: 100\n  steps: 10\n"))
	require.NoError(t, err)

	assert.Equal(t, string(strategy.KindStatic), s.StrategyType)
	assert.Equal(t, pricepath.SourceSynthetic, s.PathSource.Type)
	assert.Equal(t, "0.1", s.RangeWidthPct.String())
	require.NotNil(t, s.RNGSeed)
	assert.Equal(t, DefaultSeed, *s.RNGSeed)
}

func TestScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "strategy_type: static\ncolour: blue\npath_source: {start_price: 1, steps: 2}\n"},
		{"unknown strategy", "strategy_type: martingale\npath_source: {start_price: 1, steps: 2}\n"},
		{"periodic without interval", "strategy_type: periodic\npath_source: {start_price: 1, steps: 2}\n"},
		{"unknown objective", "objective: moon\npath_source: {start_price: 1, steps: 2}\n"},
		{"negative capital", "capital: -1\npath_source: {start_price: 1, steps: 2}\n"},
		{"seed on historical path", "rng_seed: 3\npath_source: {type: historical, file: prices.csv}\n"},
		{"historical without input", "path_source: {type: historical}\n"},
		{"synthetic without steps", "path_source: {start_price: 1}\n"},
		{"inverted bounds", "initial_price_bounds: {lower: 10, upper: 5}\npath_source: {start_price: 7, steps: 2}\n"},
		{"unknown source", "path_source: {type: oracle}\n"},
		{"offset outside rebalanced range", "strategy_type: periodic\nstrategy_params: {interval_steps: 2}\nrange_width_pct: 0.1\nrange_offset_pct: 0.06\npath_source: {start_price: 1, steps: 2}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestHistoricalScenarioDefaults(t *testing.T) {
	s, err := ParseScenario([]byte("pool: {symbol_a: ETH, symbol_b: USDC}\npath_source: {type: Historical}\n"))
	require.NoError(t, err)
	assert.Equal(t, "ETH", s.PathSource.Symbol)
	assert.Equal(t, "USD", s.PathSource.Quote)
	assert.Equal(t, 720, s.PathSource.Hours)
	assert.Nil(t, s.RNGSeed)
}

func TestGridWidths(t *testing.T) {
	assert.Nil(t, GridWidths(decimal.Zero, decimal.NewFromInt(1), 0))
	one := GridWidths(decimal.RequireFromString("0.05"), decimal.NewFromInt(1), 1)
	require.Len(t, one, 1)
	assert.Equal(t, "0.05", one[0].String())
	three := GridWidths(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.3"), 3)
	assert.Equal(t, "0.2", three[1].String())
}
