package optimizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/strategy"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Parameters is one grid point: a complete strategy configuration.
type Parameters struct {
	Strategy strategy.Config `yaml:"strategy" json:"strategy"`
}

// Key is a canonical text form of the parameters. Ties between equal scores are broken
// by comparing keys lexically.
func (p Parameters) Key() string {
	c := p.Strategy
	var b strings.Builder
	b.WriteString("type=")
	b.WriteString(string(c.Type))
	b.WriteString(";width=")
	b.WriteString(c.RangeWidthPct.String())
	b.WriteString(";offset=")
	b.WriteString(c.RangeOffsetPct.String())
	if c.IntervalSteps != nil {
		b.WriteString(";interval=")
		b.WriteString(strconv.Itoa(*c.IntervalSteps))
	}
	if c.ThresholdPct != nil {
		b.WriteString(";threshold=")
		b.WriteString(c.ThresholdPct.String())
	}
	if c.MaxILPct != nil {
		b.WriteString(";max_il=")
		b.WriteString(c.MaxILPct.String())
		fmt.Fprintf(&b, ";close=%t;grace=%d;oor=%t", c.CloseOnLimit, c.GracePeriodSteps, c.RebalanceOnOutOfRange)
	}
	return b.String()
}

// StrategySpace lists the candidate values of one strategy type. Only the list matching
// Type is used.
type StrategySpace struct {
	Type       strategy.Kind     `yaml:"type" json:"type"`
	Intervals  []int             `yaml:"intervals,omitempty" json:"intervals,omitempty"`
	Thresholds []decimal.Decimal `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	MaxILs     []decimal.Decimal `yaml:"max_ils,omitempty" json:"max_ils,omitempty"`

	// Fixed IL_LIMIT settings shared by every candidate
	CloseOnLimit          bool `yaml:"close_on_limit,omitempty" json:"close_on_limit,omitempty"`
	GracePeriodSteps      int  `yaml:"grace_period_steps,omitempty" json:"grace_period_steps,omitempty"`
	RebalanceOnOutOfRange bool `yaml:"rebalance_on_out_of_range,omitempty" json:"rebalance_on_out_of_range,omitempty"`
}

// ParameterSpace is the search space of a grid search.
type ParameterSpace struct {
	Strategies   []StrategySpace   `yaml:"strategies" json:"strategies"`
	RangeWidths  []decimal.Decimal `yaml:"range_widths" json:"range_widths"`
	RangeOffsets []decimal.Decimal `yaml:"range_offsets,omitempty" json:"range_offsets,omitempty"` // Defaults to {0}
}

// Default candidate values
var (
	DefaultThresholds = decimals("0.02", "0.03", "0.05", "0.07", "0.10", "0.15")
	DefaultMaxILs     = decimals("0.01", "0.02", "0.03", "0.05", "0.07", "0.10")
	DefaultIntervals  = []int{6, 12, 24, 48, 72, 168}
	DefaultWidths     = decimals("0.01", "0.02", "0.05", "0.10", "0.20", "0.50")
)

// DefaultParameterSpace covers kinds with the default candidates.
// All four strategy types are used when kinds is empty.
func DefaultParameterSpace(kinds ...strategy.Kind) ParameterSpace {
	if len(kinds) == 0 {
		kinds = strategy.Kinds
	}
	space := ParameterSpace{RangeWidths: DefaultWidths}
	for _, k := range kinds {
		s := StrategySpace{Type: k}
		switch k {
		case strategy.KindPeriodic:
			s.Intervals = DefaultIntervals
		case strategy.KindThreshold:
			s.Thresholds = DefaultThresholds
		case strategy.KindILLimit:
			s.MaxILs = DefaultMaxILs
		}
		space.Strategies = append(space.Strategies, s)
	}
	return space
}

// Size returns the number of grid points without building them.
func (s ParameterSpace) Size() int {
	offsets := len(s.RangeOffsets)
	if offsets == 0 {
		offsets = 1
	}
	per := len(s.RangeWidths) * offsets
	total := 0
	for _, st := range s.Strategies {
		total += st.candidates() * per
	}
	return total
}

// Validate rejects spaces that would produce no grid point for some strategy.
func (s ParameterSpace) Validate() error {
	if len(s.Strategies) == 0 {
		return fmt.Errorf("%w: parameter space has no strategies", types.ErrValidation)
	}
	if len(s.RangeWidths) == 0 {
		return fmt.Errorf("%w: parameter space has no range widths", types.ErrValidation)
	}
	for _, st := range s.Strategies {
		if st.candidates() == 0 {
			return fmt.Errorf("%w: strategy %s has no candidate values", types.ErrValidation, st.Type)
		}
	}
	return nil
}

// Grid forms the Cartesian product in a stable order: strategies as listed, then the
// strategy parameter, then width, then offset. The position of a point is its index.
func (s ParameterSpace) Grid() ([]Parameters, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	offsets := s.RangeOffsets
	if len(offsets) == 0 {
		offsets = []decimal.Decimal{decimal.Zero}
	}

	grid := make([]Parameters, 0, s.Size())
	for _, st := range s.Strategies {
		for _, base := range st.configs() {
			for _, w := range s.RangeWidths {
				for _, o := range offsets {
					cfg := base
					cfg.RangeWidthPct = w
					cfg.RangeOffsetPct = o
					grid = append(grid, Parameters{Strategy: cfg})
				}
			}
		}
	}
	return grid, nil
}

func (st StrategySpace) candidates() int {
	switch st.Type {
	case strategy.KindStatic:
		return 1
	case strategy.KindPeriodic:
		return len(st.Intervals)
	case strategy.KindThreshold:
		return len(st.Thresholds)
	case strategy.KindILLimit:
		return len(st.MaxILs)
	default:
		// Unknown types still get one point so the failure is reported per point.
		return 1
	}
}

// configs returns one strategy config per candidate, range fields unset.
func (st StrategySpace) configs() []strategy.Config {
	switch st.Type {
	case strategy.KindPeriodic:
		out := make([]strategy.Config, len(st.Intervals))
		for i, v := range st.Intervals {
			out[i] = strategy.Config{Type: st.Type, IntervalSteps: &v}
		}
		return out
	case strategy.KindThreshold:
		out := make([]strategy.Config, len(st.Thresholds))
		for i, v := range st.Thresholds {
			out[i] = strategy.Config{Type: st.Type, ThresholdPct: &v}
		}
		return out
	case strategy.KindILLimit:
		out := make([]strategy.Config, len(st.MaxILs))
		for i, v := range st.MaxILs {
			out[i] = strategy.Config{
				Type:                  st.Type,
				MaxILPct:              &v,
				CloseOnLimit:          st.CloseOnLimit,
				GracePeriodSteps:      st.GracePeriodSteps,
				RebalanceOnOutOfRange: st.RebalanceOnOutOfRange,
			}
		}
		return out
	default:
		return []strategy.Config{{Type: st.Type}}
	}
}

func decimals(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}
