package strategy

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Factory errors
var (
	ErrUnknownStrategyType = fmt.Errorf("%w: unknown strategy type", types.ErrValidation)
	ErrMissingInterval     = fmt.Errorf("%w: PERIODIC requires IntervalSteps >= 1", types.ErrValidation)
	ErrMissingThreshold    = fmt.Errorf("%w: THRESHOLD requires a positive ThresholdPct", types.ErrValidation)
	ErrMissingMaxIL        = fmt.Errorf("%w: IL_LIMIT requires a positive MaxILPct", types.ErrValidation)
	ErrNegativeGracePeriod = fmt.Errorf("%w: GracePeriodSteps cannot be negative", types.ErrValidation)
	ErrOffsetOutsideRange  = fmt.Errorf("%w: rebalancing strategies need |RangeOffsetPct| < RangeWidthPct/2", types.ErrValidation)
)

// Config is the serializable description of a strategy.
// Pct fields are fractions: 0.05 means 5%.
type Config struct {
	Type           Kind            `yaml:"type" json:"type"`
	RangeWidthPct  decimal.Decimal `yaml:"range_width_pct" json:"range_width_pct"`
	RangeOffsetPct decimal.Decimal `yaml:"range_offset_pct" json:"range_offset_pct"`

	IntervalSteps *int             `yaml:"interval_steps,omitempty" json:"interval_steps,omitempty"` // PERIODIC
	ThresholdPct  *decimal.Decimal `yaml:"threshold_pct,omitempty" json:"threshold_pct,omitempty"`   // THRESHOLD
	MaxILPct      *decimal.Decimal `yaml:"max_il_pct,omitempty" json:"max_il_pct,omitempty"`         // IL_LIMIT

	CloseOnLimit          bool `yaml:"close_on_limit,omitempty" json:"close_on_limit,omitempty"`
	GracePeriodSteps      int  `yaml:"grace_period_steps,omitempty" json:"grace_period_steps,omitempty"`
	RebalanceOnOutOfRange bool `yaml:"rebalance_on_out_of_range,omitempty" json:"rebalance_on_out_of_range,omitempty"`
}

// RangeSpec returns the range policy of the config.
func (c Config) RangeSpec() RangeSpec {
	return RangeSpec{WidthPct: c.RangeWidthPct, OffsetPct: c.RangeOffsetPct}
}

// FromConfig creates a Strategy from cfg.
// Validates required parameters per strategy type.
func FromConfig(cfg Config) (Strategy, error) {
	spec := cfg.RangeSpec()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// A rebalanced range must contain the trigger price.
	if cfg.Type != KindStatic && !spec.ContainsReference() {
		return nil, fmt.Errorf("%w: %s", ErrOffsetOutsideRange, spec)
	}

	switch cfg.Type {
	case KindStatic:
		return &Static{Range: spec}, nil
	case KindPeriodic:
		return fromPeriodicConfig(cfg, spec)
	case KindThreshold:
		return fromThresholdConfig(cfg, spec)
	case KindILLimit:
		return fromILLimitConfig(cfg, spec)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

func fromPeriodicConfig(cfg Config, spec RangeSpec) (*Periodic, error) {
	if cfg.IntervalSteps == nil || *cfg.IntervalSteps < 1 {
		return nil, ErrMissingInterval
	}
	return &Periodic{Range: spec, IntervalSteps: *cfg.IntervalSteps}, nil
}

func fromThresholdConfig(cfg Config, spec RangeSpec) (*Threshold, error) {
	if cfg.ThresholdPct == nil || !cfg.ThresholdPct.IsPositive() {
		return nil, ErrMissingThreshold
	}
	return &Threshold{Range: spec, ThresholdPct: *cfg.ThresholdPct}, nil
}

func fromILLimitConfig(cfg Config, spec RangeSpec) (*ILLimit, error) {
	if cfg.MaxILPct == nil || !cfg.MaxILPct.IsPositive() {
		return nil, ErrMissingMaxIL
	}
	if cfg.GracePeriodSteps < 0 {
		return nil, ErrNegativeGracePeriod
	}
	return &ILLimit{
		Range:                 spec,
		MaxILPct:              *cfg.MaxILPct,
		CloseOnLimit:          cfg.CloseOnLimit,
		GracePeriodSteps:      cfg.GracePeriodSteps,
		RebalanceOnOutOfRange: cfg.RebalanceOnOutOfRange,
	}, nil
}
