package optimizer

import (
	"fmt"
	"strings"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// ObjectiveKind names an objective in configuration files and API requests.
type ObjectiveKind string

const (
	ObjectiveNetPnL             ObjectiveKind = "NET_PNL"
	ObjectiveFeeEarnings        ObjectiveKind = "FEE_EARNINGS"
	ObjectiveSharpe             ObjectiveKind = "SHARPE"
	ObjectiveMinIL              ObjectiveKind = "MIN_IL"
	ObjectiveTimeInRange        ObjectiveKind = "TIME_IN_RANGE"
	ObjectiveRiskAdjustedReturn ObjectiveKind = "RISK_ADJUSTED_RETURN"
	ObjectiveComposite          ObjectiveKind = "COMPOSITE"
)

// Objective reduces a finished simulation to one comparable score. Higher is better.
// ok is false when the score is undefined for the run; such runs rank after every
// defined score.
type Objective interface {
	Name() ObjectiveKind
	Evaluate(report *types.SimulationReport) (score decimal.Decimal, ok bool)
}

// NetPnL scores the final net PnL.
type NetPnL struct{}

func (NetPnL) Name() ObjectiveKind { return ObjectiveNetPnL }
func (NetPnL) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	return r.Summary.NetPnL, true
}

// FeeEarnings scores cumulative fees only.
type FeeEarnings struct{}

func (FeeEarnings) Name() ObjectiveKind { return ObjectiveFeeEarnings }
func (FeeEarnings) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	return r.Summary.TotalFees, true
}

// Sharpe scores mean step PnL change over its standard deviation. Undefined when the
// deviation is zero.
type Sharpe struct{}

func (Sharpe) Name() ObjectiveKind { return ObjectiveSharpe }
func (Sharpe) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	if r.Summary.SharpeRatio == nil {
		return decimal.Zero, false
	}
	return *r.Summary.SharpeRatio, true
}

// MinIL scores the negated largest IL magnitude seen in any snapshot, so less loss ranks
// higher. A run earning less than MinFees is undefined.
type MinIL struct {
	MinFees decimal.Decimal
}

func (MinIL) Name() ObjectiveKind { return ObjectiveMinIL }
func (m MinIL) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	if r.Summary.TotalFees.LessThan(m.MinFees) {
		return decimal.Zero, false
	}
	worst := decimal.Zero
	for _, s := range r.Snapshots {
		if mag := s.ImpermanentLoss.Abs(); mag.GreaterThan(worst) {
			worst = mag
		}
	}
	return worst.Neg(), true
}

// TimeInRange scores the fraction of samples the position was in range.
type TimeInRange struct{}

func (TimeInRange) Name() ObjectiveKind { return ObjectiveTimeInRange }
func (TimeInRange) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	return r.Summary.TimeInRange, true
}

// RiskAdjustedReturn scores net PnL - RiskWeight * max drawdown.
// Drawdown is a fraction, so RiskWeight is in token B.
type RiskAdjustedReturn struct {
	RiskWeight decimal.Decimal
}

func (RiskAdjustedReturn) Name() ObjectiveKind { return ObjectiveRiskAdjustedReturn }
func (o RiskAdjustedReturn) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	return r.Summary.NetPnL.Sub(o.RiskWeight.Mul(r.Summary.MaxDrawdown)), true
}

// CompositeWeights weighs each summary metric. IL and drawdown enter as magnitudes, so
// negative weights penalize them.
type CompositeWeights struct {
	PnL         decimal.Decimal `yaml:"pnl" json:"pnl"`
	Fees        decimal.Decimal `yaml:"fees" json:"fees"`
	IL          decimal.Decimal `yaml:"il" json:"il"`
	TimeInRange decimal.Decimal `yaml:"time_in_range" json:"time_in_range"`
	Drawdown    decimal.Decimal `yaml:"drawdown" json:"drawdown"`
}

// DefaultCompositeWeights favours PnL and penalizes IL and drawdown.
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{
		PnL:         decimal.NewFromInt(1),
		Fees:        decimal.Zero,
		IL:          decimal.RequireFromString("-0.5"),
		TimeInRange: decimal.Zero,
		Drawdown:    decimal.RequireFromString("-0.3"),
	}
}

// Composite scores a weighted sum of summary metrics.
type Composite struct {
	Weights CompositeWeights
}

func (Composite) Name() ObjectiveKind { return ObjectiveComposite }
func (c Composite) Evaluate(r *types.SimulationReport) (decimal.Decimal, bool) {
	s, w := r.Summary, c.Weights
	return decimal.Sum(
		w.PnL.Mul(s.NetPnL),
		w.Fees.Mul(s.TotalFees),
		w.IL.Mul(s.TotalIL.Abs()),
		w.TimeInRange.Mul(s.TimeInRange),
		w.Drawdown.Mul(s.MaxDrawdown),
	), true
}

// ParseObjective returns the objective for name with default settings.
func ParseObjective(name string) (Objective, error) {
	switch normalizeObjective(name) {
	case "NETPNL":
		return NetPnL{}, nil
	case "FEEEARNINGS", "FEES":
		return FeeEarnings{}, nil
	case "SHARPE":
		return Sharpe{}, nil
	case "MINIL", "IL":
		return MinIL{}, nil
	case "TIMEINRANGE":
		return TimeInRange{}, nil
	case "RISKADJUSTEDRETURN":
		return RiskAdjustedReturn{RiskWeight: decimal.NewFromInt(1)}, nil
	case "COMPOSITE":
		return Composite{Weights: DefaultCompositeWeights()}, nil
	default:
		return nil, fmt.Errorf("%w: unknown objective %q", types.ErrValidation, name)
	}
}

// normalizeObjective folds "NetPnL", "net_pnl" and "NET-PNL" to the same name.
func normalizeObjective(name string) string {
	r := strings.NewReplacer("_", "", "-", "", " ", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(name)))
}
