/*

This file contains the YAML scenario format accepted by the CLI and the REST API.

A scenario names one strategy, the pool it runs in, the capital, and where its price path
comes from. The same file drives a grid search: the strategy type and width seed the
default search space unless an explicit search block is given.

*/

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/pricepath"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/simulation"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario marks a scenario file that cannot be run.
var ErrInvalidScenario = fmt.Errorf("%w: invalid scenario", types.ErrValidation)

// Scenario is one simulation or optimization request.
type Scenario struct {
	Name               string                    `yaml:"name" json:"name"`
	StrategyType       string                    `yaml:"strategy_type" json:"strategy_type"`
	StrategyParams     StrategyParams            `yaml:"strategy_params" json:"strategy_params"`
	RangeWidthPct      decimal.Decimal           `yaml:"range_width_pct" json:"range_width_pct"`
	RangeOffsetPct     decimal.Decimal           `yaml:"range_offset_pct" json:"range_offset_pct"`
	Objective          string                    `yaml:"objective" json:"objective"`
	Capital            decimal.Decimal           `yaml:"capital" json:"capital"`
	InitialPriceBounds *PriceBounds              `yaml:"initial_price_bounds,omitempty" json:"initial_price_bounds,omitempty"`
	PathSource         PathSource                `yaml:"path_source" json:"path_source"`
	RNGSeed            *int64                    `yaml:"rng_seed,omitempty" json:"rng_seed,omitempty"`
	GridResolution     int                       `yaml:"grid_resolution,omitempty" json:"grid_resolution,omitempty"`
	Pool               PoolSettings              `yaml:"pool" json:"pool"`
	RebalanceCost      *decimal.Decimal          `yaml:"rebalance_cost,omitempty" json:"rebalance_cost,omitempty"`
	AlignToTicks       bool                      `yaml:"align_to_ticks,omitempty" json:"align_to_ticks,omitempty"`
	MonteCarloRuns     int                       `yaml:"monte_carlo_runs,omitempty" json:"monte_carlo_runs,omitempty"`
	Search             *optimizer.ParameterSpace `yaml:"search,omitempty" json:"search,omitempty"`
	Constraints        *optimizer.Constraints    `yaml:"constraints,omitempty" json:"constraints,omitempty"`
}

// StrategyParams carries the type-specific strategy settings.
type StrategyParams struct {
	IntervalSteps         *int             `yaml:"interval_steps,omitempty" json:"interval_steps,omitempty"`
	ThresholdPct          *decimal.Decimal `yaml:"threshold_pct,omitempty" json:"threshold_pct,omitempty"`
	MaxILPct              *decimal.Decimal `yaml:"max_il_pct,omitempty" json:"max_il_pct,omitempty"`
	CloseOnLimit          bool             `yaml:"close_on_limit,omitempty" json:"close_on_limit,omitempty"`
	GracePeriodSteps      int              `yaml:"grace_period_steps,omitempty" json:"grace_period_steps,omitempty"`
	RebalanceOnOutOfRange bool             `yaml:"rebalance_on_out_of_range,omitempty" json:"rebalance_on_out_of_range,omitempty"`
}

// PriceBounds fixes the first position's range instead of deriving it from the width.
type PriceBounds struct {
	Lower decimal.Decimal `yaml:"lower" json:"lower"`
	Upper decimal.Decimal `yaml:"upper" json:"upper"`
}

// PathSource describes where the price path comes from.
//
// Historical paths read File (CSV) or, when File is empty, download Hours of hourly
// candles for Symbol. Synthetic paths use the GBM fields.
type PathSource struct {
	Type pricepath.Source `yaml:"type" json:"type"`

	File   string `yaml:"file,omitempty" json:"file,omitempty"`
	Symbol string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	Quote  string `yaml:"quote,omitempty" json:"quote,omitempty"`
	Hours  int    `yaml:"hours,omitempty" json:"hours,omitempty"`

	StartPrice  decimal.Decimal `yaml:"start_price,omitempty" json:"start_price,omitempty"`
	Drift       decimal.Decimal `yaml:"drift,omitempty" json:"drift,omitempty"`
	Volatility  decimal.Decimal `yaml:"volatility,omitempty" json:"volatility,omitempty"`
	Steps       int             `yaml:"steps,omitempty" json:"steps,omitempty"`
	StepSeconds int             `yaml:"step_seconds,omitempty" json:"step_seconds,omitempty"`
	Volume      decimal.Decimal `yaml:"volume,omitempty" json:"volume,omitempty"` // Constant volume per step
	StartTime   time.Time       `yaml:"start_time,omitempty" json:"start_time,omitempty"`
}

// PoolSettings is the YAML form of types.PoolParameters.
type PoolSettings struct {
	Address     string          `yaml:"address,omitempty" json:"address,omitempty"`
	SymbolA     string          `yaml:"symbol_a" json:"symbol_a"`
	SymbolB     string          `yaml:"symbol_b" json:"symbol_b"`
	DecimalsA   int             `yaml:"decimals_a" json:"decimals_a"`
	DecimalsB   int             `yaml:"decimals_b" json:"decimals_b"`
	TickSpacing int32           `yaml:"tick_spacing" json:"tick_spacing"`
	FeeTier     decimal.Decimal `yaml:"fee_tier" json:"fee_tier"`
	Liquidity   decimal.Decimal `yaml:"liquidity,omitempty" json:"liquidity,omitempty"`
}

// LoadScenario reads a YAML scenario from path, fills defaults and validates it.
// Unknown keys are rejected.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(raw)
}

// ParseScenario decodes a YAML scenario, fills defaults and validates it.
func ParseScenario(raw []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidScenario, err)
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeScenarioJSON decodes a JSON scenario, as posted to the REST API, fills defaults
// and validates it. Unknown keys are rejected.
func DecodeScenarioJSON(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", ErrInvalidScenario, err)
	}
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ApplyDefaults fills every unset field from DefaultSimulationParameters.
func (s *Scenario) ApplyDefaults() {
	d := DefaultSimulationParameters
	if s.StrategyType == "" {
		s.StrategyType = string(strategy.KindStatic)
	}
	if s.RangeWidthPct.IsZero() {
		s.RangeWidthPct = d.RangeWidthPct
	}
	if s.Objective == "" {
		s.Objective = string(optimizer.ObjectiveNetPnL)
	}
	if s.Capital.IsZero() {
		s.Capital = d.Capital
		if DefaultCapital.IsPositive() {
			s.Capital = DefaultCapital
		}
	}
	if s.Pool.FeeTier.IsZero() {
		s.Pool.FeeTier = d.FeeTier
	}
	if s.Pool.Liquidity.IsZero() {
		s.Pool.Liquidity = d.PoolLiquidity
	}
	if s.MonteCarloRuns == 0 {
		s.MonteCarloRuns = d.MonteCarloRuns
	}

	p := &s.PathSource
	if p.Type == "" {
		p.Type = pricepath.SourceSynthetic
	}
	p.Type = pricepath.Source(strings.ToUpper(string(p.Type)))
	if p.Type == pricepath.SourceSynthetic {
		if p.StepSeconds == 0 {
			p.StepSeconds = int(d.StepDuration / time.Second)
		}
		if p.Volatility.IsZero() {
			p.Volatility = d.Volatility
		}
		if s.RNGSeed == nil {
			seed := DefaultSeed
			s.RNGSeed = &seed
		}
	}
	if p.Type == pricepath.SourceHistorical && p.File == "" {
		if p.Hours == 0 {
			p.Hours = 720
		}
		if p.Quote == "" {
			p.Quote = "USD"
		}
		if p.Symbol == "" {
			p.Symbol = s.Pool.SymbolA
		}
	}
}

// Validate checks that every part of the scenario can be built.
func (s *Scenario) Validate() error {
	var errs []error
	if _, err := s.StrategyConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := optimizer.ParseObjective(s.Objective); err != nil {
		errs = append(errs, err)
	}
	if !s.Capital.IsPositive() {
		errs = append(errs, fmt.Errorf("%w: capital must be positive, got %s", ErrInvalidScenario, s.Capital))
	}
	if s.GridResolution < 0 {
		errs = append(errs, fmt.Errorf("%w: grid_resolution cannot be negative", ErrInvalidScenario))
	}
	if s.MonteCarloRuns < 0 {
		errs = append(errs, fmt.Errorf("%w: monte_carlo_runs cannot be negative", ErrInvalidScenario))
	}
	cfg := s.SimulationConfig()
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	p := s.PathSource
	switch p.Type {
	case pricepath.SourceHistorical:
		if s.RNGSeed != nil {
			errs = append(errs, fmt.Errorf("%w: rng_seed applies only to synthetic paths", ErrInvalidScenario))
		}
		if p.File == "" && p.Symbol == "" {
			errs = append(errs, fmt.Errorf("%w: historical path needs a file or a symbol", ErrInvalidScenario))
		}
		if p.File == "" && p.Hours < 2 {
			errs = append(errs, fmt.Errorf("%w: historical path needs at least 2 hours, got %d", ErrInvalidScenario, p.Hours))
		}
	case pricepath.SourceSynthetic:
		if _, err := s.GBMConfig(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown path source %q", ErrInvalidScenario, p.Type))
	}
	return errors.Join(errs...)
}

// StrategyConfig returns the strategy described by the scenario.
func (s *Scenario) StrategyConfig() (strategy.Config, error) {
	kind, err := strategy.ParseKind(s.StrategyType)
	if err != nil {
		return strategy.Config{}, err
	}
	p := s.StrategyParams
	cfg := strategy.Config{
		Type:                  kind,
		RangeWidthPct:         s.RangeWidthPct,
		RangeOffsetPct:        s.RangeOffsetPct,
		IntervalSteps:         p.IntervalSteps,
		ThresholdPct:          p.ThresholdPct,
		MaxILPct:              p.MaxILPct,
		CloseOnLimit:          p.CloseOnLimit,
		GracePeriodSteps:      p.GracePeriodSteps,
		RebalanceOnOutOfRange: p.RebalanceOnOutOfRange,
	}
	if _, err := strategy.FromConfig(cfg); err != nil {
		return strategy.Config{}, err
	}
	return cfg, nil
}

// PoolParameters returns the pool as the simulator sees it.
func (s *Scenario) PoolParameters() types.PoolParameters {
	return types.PoolParameters{
		Address:     s.Pool.Address,
		TokenA:      types.Token{Symbol: s.Pool.SymbolA, Decimals: s.Pool.DecimalsA},
		TokenB:      types.Token{Symbol: s.Pool.SymbolB, Decimals: s.Pool.DecimalsB},
		TickSpacing: s.Pool.TickSpacing,
		FeeTier:     s.Pool.FeeTier,
	}
}

// SimulationConfig returns the simulator configuration of the scenario.
func (s *Scenario) SimulationConfig() simulation.Config {
	cfg := DefaultSimulationParameters.SimulationConfig(s.Capital, s.PoolParameters())
	cfg.PoolLiquidity = s.Pool.Liquidity
	cfg.AlignToTicks = s.AlignToTicks
	if s.RebalanceCost != nil {
		cfg.RebalanceCost = *s.RebalanceCost
	}
	if b := s.InitialPriceBounds; b != nil {
		cfg.InitialRange = &types.PriceRange{Lower: b.Lower, Upper: b.Upper}
	}
	return cfg
}

// GBMConfig returns the synthetic path configuration. Only valid for synthetic sources.
func (s *Scenario) GBMConfig() (pricepath.GBMConfig, error) {
	p := s.PathSource
	if p.Type != pricepath.SourceSynthetic {
		return pricepath.GBMConfig{}, fmt.Errorf("%w: path source %s is not synthetic", ErrInvalidScenario, p.Type)
	}
	if p.Steps < 1 {
		return pricepath.GBMConfig{}, fmt.Errorf("%w: synthetic path needs at least 1 step, got %d", ErrInvalidScenario, p.Steps)
	}
	var seed int64
	if s.RNGSeed != nil {
		seed = *s.RNGSeed
	}
	cfg := pricepath.GBMConfig{
		StartPrice:   p.StartPrice,
		Drift:        p.Drift,
		Volatility:   p.Volatility,
		StepDuration: time.Duration(p.StepSeconds) * time.Second,
		StepCount:    p.Steps,
		StartTime:    p.StartTime,
		Seed:         seed,
		Volume:       pricepath.ConstantVolume{Amount: p.Volume},
	}
	if err := cfg.Validate(); err != nil {
		return pricepath.GBMConfig{}, err
	}
	return cfg, nil
}

// ParameterSpace returns the search space of the scenario. An explicit search block wins.
// Otherwise the scenario's strategy type is searched with its default candidates, and
// grid_resolution, when set, replaces the default widths with evenly spaced widths between
// the constraint bounds. The scenario's offset and fixed IL_LIMIT settings carry over.
func (s *Scenario) ParameterSpace() (optimizer.ParameterSpace, error) {
	if s.Search != nil {
		return *s.Search, s.Search.Validate()
	}
	kind, err := strategy.ParseKind(s.StrategyType)
	if err != nil {
		return optimizer.ParameterSpace{}, err
	}
	space := optimizer.DefaultParameterSpace(kind)
	space.RangeOffsets = []decimal.Decimal{s.RangeOffsetPct}
	if kind == strategy.KindILLimit {
		p := s.StrategyParams
		space.Strategies[0].CloseOnLimit = p.CloseOnLimit
		space.Strategies[0].GracePeriodSteps = p.GracePeriodSteps
		space.Strategies[0].RebalanceOnOutOfRange = p.RebalanceOnOutOfRange
	}
	if s.GridResolution > 0 {
		c := s.SearchConstraints()
		space.RangeWidths = GridWidths(c.MinRangeWidth, c.MaxRangeWidth, s.GridResolution)
	}
	return space, space.Validate()
}

// SearchConstraints returns the scenario's constraints or DefaultConstraints.
func (s *Scenario) SearchConstraints() optimizer.Constraints {
	if s.Constraints != nil {
		return *s.Constraints
	}
	return DefaultConstraints
}

// GridWidths returns n widths evenly spaced over [lo, hi]. n == 1 yields lo.
func GridWidths(lo, hi decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []decimal.Decimal{lo}
	}
	step := hi.Sub(lo).Div(decimal.NewFromInt(int64(n - 1)))
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = lo.Add(step.Mul(decimal.NewFromInt(int64(i)))).Round(6)
	}
	return out
}
