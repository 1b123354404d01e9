package optimizer

import (
	"errors"
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// ErrConstraintViolated marks a grid point rejected by Constraints.
var ErrConstraintViolated = fmt.Errorf("%w: constraint violated", types.ErrValidation)

// Constraints bound the search space. A point outside them is recorded as failed
// instead of being simulated. Zero bounds are not checked.
type Constraints struct {
	MinRangeWidth decimal.Decimal `yaml:"min_range_width" json:"min_range_width"`
	MaxRangeWidth decimal.Decimal `yaml:"max_range_width" json:"max_range_width"`
	MinCapital    decimal.Decimal `yaml:"min_capital" json:"min_capital"`
	MaxCapital    decimal.Decimal `yaml:"max_capital" json:"max_capital"`

	MinInterval     int             `yaml:"min_interval" json:"min_interval"`
	MaxInterval     int             `yaml:"max_interval" json:"max_interval"`
	MinThresholdPct decimal.Decimal `yaml:"min_threshold_pct" json:"min_threshold_pct"`
	MaxThresholdPct decimal.Decimal `yaml:"max_threshold_pct" json:"max_threshold_pct"`
	MinILPct        decimal.Decimal `yaml:"min_il_pct" json:"min_il_pct"`
	MaxILPct        decimal.Decimal `yaml:"max_il_pct" json:"max_il_pct"`

	// Checked after the run
	MaxRebalances int `yaml:"max_rebalances,omitempty" json:"max_rebalances,omitempty"`
}

// CheckParameters validates a grid point before it is simulated.
func (c Constraints) CheckParameters(p Parameters, capital decimal.Decimal) error {
	cfg := p.Strategy
	var errs []error
	errs = append(errs,
		checkBetween("range width", cfg.RangeWidthPct, c.MinRangeWidth, c.MaxRangeWidth),
		checkBetween("capital", capital, c.MinCapital, c.MaxCapital),
	)
	switch cfg.Type {
	case strategy.KindPeriodic:
		if cfg.IntervalSteps != nil {
			errs = append(errs, checkBetween("interval",
				decimal.NewFromInt(int64(*cfg.IntervalSteps)),
				decimal.NewFromInt(int64(c.MinInterval)),
				decimal.NewFromInt(int64(c.MaxInterval))))
		}
	case strategy.KindThreshold:
		if cfg.ThresholdPct != nil {
			errs = append(errs, checkBetween("price threshold", *cfg.ThresholdPct, c.MinThresholdPct, c.MaxThresholdPct))
		}
	case strategy.KindILLimit:
		if cfg.MaxILPct != nil {
			errs = append(errs, checkBetween("IL threshold", *cfg.MaxILPct, c.MinILPct, c.MaxILPct))
		}
	}
	return errors.Join(errs...)
}

// CheckReport validates the outcome of a run.
func (c Constraints) CheckReport(r *types.SimulationReport) error {
	if c.MaxRebalances > 0 && r.Summary.RebalanceCount > c.MaxRebalances {
		return fmt.Errorf("%w: %d rebalances exceed the limit of %d", ErrConstraintViolated, r.Summary.RebalanceCount, c.MaxRebalances)
	}
	return nil
}

func checkBetween(name string, v, lo, hi decimal.Decimal) error {
	if !lo.IsZero() && v.LessThan(lo) {
		return fmt.Errorf("%w: %s %s below minimum %s", ErrConstraintViolated, name, v, lo)
	}
	if !hi.IsZero() && v.GreaterThan(hi) {
		return fmt.Errorf("%w: %s %s above maximum %s", ErrConstraintViolated, name, v, hi)
	}
	return nil
}
