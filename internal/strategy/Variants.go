package strategy

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Static opens once and never rebalances.
type Static struct {
	Range RangeSpec
}

func (s *Static) Kind() Kind              { return KindStatic }
func (s *Static) Ranges() RangeSpec       { return s.Range }
func (s *Static) Decide(Context) Decision { return Hold() }
func (s *Static) ID() string              { return fmt.Sprintf("STATIC(%s)", s.Range) }
func (*Static) sealed()                   {}

// Periodic recenters every IntervalSteps samples.
type Periodic struct {
	Range         RangeSpec
	IntervalSteps int
}

func (p *Periodic) Kind() Kind        { return KindPeriodic }
func (p *Periodic) Ranges() RangeSpec { return p.Range }
func (p *Periodic) ID() string {
	return fmt.Sprintf("PERIODIC(interval=%d,%s)", p.IntervalSteps, p.Range)
}
func (*Periodic) sealed() {}

func (p *Periodic) Decide(ctx Context) Decision {
	if ctx.StepsSinceRebalance < p.IntervalSteps {
		return Hold()
	}
	return rebalance(p.Range, ctx.Price, types.RebalanceReason{
		Kind:  types.ReasonPeriodic,
		Value: decimal.NewFromInt(int64(ctx.StepsSinceRebalance)),
	})
}

// Threshold recenters once the price has moved ThresholdPct away from the entry price.
type Threshold struct {
	Range        RangeSpec
	ThresholdPct decimal.Decimal
}

func (t *Threshold) Kind() Kind        { return KindThreshold }
func (t *Threshold) Ranges() RangeSpec { return t.Range }
func (t *Threshold) ID() string {
	return fmt.Sprintf("THRESHOLD(threshold=%s,%s)", t.ThresholdPct, t.Range)
}
func (*Threshold) sealed() {}

func (t *Threshold) Decide(ctx Context) Decision {
	change := ctx.PriceChangeFromEntry()
	if change.Abs().LessThan(t.ThresholdPct) {
		return Hold()
	}
	return rebalance(t.Range, ctx.Price, types.RebalanceReason{Kind: types.ReasonPriceThreshold, Value: change})
}

// ILLimit acts once the open position's IL reaches MaxILPct. It rebalances, or closes the
// position when CloseOnLimit is set. No check happens during the first GracePeriodSteps
// samples after an open. RebalanceOnOutOfRange additionally recenters a position whose
// price has left its range.
type ILLimit struct {
	Range                 RangeSpec
	MaxILPct              decimal.Decimal
	CloseOnLimit          bool
	GracePeriodSteps      int
	RebalanceOnOutOfRange bool
}

func (l *ILLimit) Kind() Kind        { return KindILLimit }
func (l *ILLimit) Ranges() RangeSpec { return l.Range }
func (l *ILLimit) ID() string {
	return fmt.Sprintf("IL_LIMIT(max_il=%s,close=%t,grace=%d,oor=%t,%s)",
		l.MaxILPct, l.CloseOnLimit, l.GracePeriodSteps, l.RebalanceOnOutOfRange, l.Range)
}
func (*ILLimit) sealed() {}

func (l *ILLimit) Decide(ctx Context) Decision {
	if ctx.StepsSinceOpen < l.GracePeriodSteps {
		return Hold()
	}
	if ctx.ILPct.Abs().GreaterThanOrEqual(l.MaxILPct) {
		reason := types.RebalanceReason{Kind: types.ReasonILThreshold, Value: ctx.ILPct}
		if l.CloseOnLimit {
			return Decision{Action: ActionClose, Reason: reason}
		}
		return rebalance(l.Range, ctx.Price, reason)
	}
	if l.RebalanceOnOutOfRange && !ctx.InRange() {
		return rebalance(l.Range, ctx.Price, types.RebalanceReason{Kind: types.ReasonOutOfRange, Value: ctx.Price})
	}
	return Hold()
}

// rebalance builds a REBALANCE decision around price. A spec that cannot produce a range
// yields a zero range, which the simulator rejects as an invalid rebalance.
func rebalance(spec RangeSpec, price decimal.Decimal, reason types.RebalanceReason) Decision {
	r, err := spec.Around(price)
	if err != nil {
		r = types.PriceRange{}
	}
	return Decision{Action: ActionRebalance, NewRange: r, Reason: reason}
}
