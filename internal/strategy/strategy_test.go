package strategy

import (
	"testing"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptrInt(v int) *int { return &v }

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func spec(width, offset string) RangeSpec {
	return RangeSpec{WidthPct: dec(width), OffsetPct: dec(offset)}
}

func ctxAt(price string, r types.PriceRange) Context {
	return Context{Step: 1, Timestamp: time.Unix(0, 0), Price: dec(price), Range: r, EntryPrice: dec("100")}
}

var baseRange = types.PriceRange{Lower: dec("95"), Upper: dec("105")}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    Kind
		wantErr error
	}{
		{"static", Config{Type: KindStatic, RangeWidthPct: dec("0.1")}, KindStatic, nil},
		{"periodic", Config{Type: KindPeriodic, RangeWidthPct: dec("0.1"), IntervalSteps: ptrInt(3)}, KindPeriodic, nil},
		{"threshold", Config{Type: KindThreshold, RangeWidthPct: dec("0.1"), ThresholdPct: ptrDec("0.05")}, KindThreshold, nil},
		{"il limit", Config{Type: KindILLimit, RangeWidthPct: dec("0.1"), MaxILPct: ptrDec("0.02")}, KindILLimit, nil},
		{"periodic missing interval", Config{Type: KindPeriodic, RangeWidthPct: dec("0.1")}, "", ErrMissingInterval},
		{"periodic zero interval", Config{Type: KindPeriodic, RangeWidthPct: dec("0.1"), IntervalSteps: ptrInt(0)}, "", ErrMissingInterval},
		{"threshold missing", Config{Type: KindThreshold, RangeWidthPct: dec("0.1")}, "", ErrMissingThreshold},
		{"il limit missing", Config{Type: KindILLimit, RangeWidthPct: dec("0.1")}, "", ErrMissingMaxIL},
		{"unknown", Config{Type: "MOON", RangeWidthPct: dec("0.1")}, "", ErrUnknownStrategyType},
		{"zero width", Config{Type: KindStatic}, "", types.ErrInvalidRange},
		{"width swallows price", Config{Type: KindStatic, RangeWidthPct: dec("2")}, "", types.ErrInvalidRange},
		{"static offset above range", Config{Type: KindStatic, RangeWidthPct: dec("0.1"), RangeOffsetPct: dec("0.06")}, KindStatic, nil},
		{"periodic offset above range", Config{Type: KindPeriodic, RangeWidthPct: dec("0.1"), RangeOffsetPct: dec("0.06"), IntervalSteps: ptrInt(2)}, "", ErrOffsetOutsideRange},
		{"threshold offset on bound", Config{Type: KindThreshold, RangeWidthPct: dec("0.1"), RangeOffsetPct: dec("-0.05"), ThresholdPct: ptrDec("0.05")}, "", ErrOffsetOutsideRange},
		{"il limit offset above range", Config{Type: KindILLimit, RangeWidthPct: dec("0.1"), RangeOffsetPct: dec("0.2"), MaxILPct: ptrDec("0.02")}, "", ErrOffsetOutsideRange},
		{"periodic offset inside range", Config{Type: KindPeriodic, RangeWidthPct: dec("0.1"), RangeOffsetPct: dec("0.049"), IntervalSteps: ptrInt(2)}, KindPeriodic, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromConfig(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, types.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind())
			assert.NotEmpty(t, s.ID())
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("threshold")
	require.NoError(t, err)
	assert.Equal(t, KindThreshold, k)

	k, err = ParseKind("ILLimit")
	require.NoError(t, err)
	assert.Equal(t, KindILLimit, k)

	_, err = ParseKind("nope")
	assert.ErrorIs(t, err, ErrUnknownStrategyType)
}

func TestRangeSpec_Around(t *testing.T) {
	r, err := spec("0.1", "0").Around(dec("100"))
	require.NoError(t, err)
	assert.True(t, r.Lower.Equal(dec("95")))
	assert.True(t, r.Upper.Equal(dec("105")))

	r, err = spec("0.1", "0.02").Around(dec("100"))
	require.NoError(t, err)
	assert.True(t, r.Lower.Equal(dec("97")))
	assert.True(t, r.Upper.Equal(dec("107")))

	// Offset beyond half the width produces a range that misses the price.
	r, err = spec("0.1", "0.06").Around(dec("100"))
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateRebalance(dec("100"), r), types.ErrInvalidRebalance)
}

func TestStatic_AlwaysHolds(t *testing.T) {
	s := &Static{Range: spec("0.1", "0")}
	for _, p := range []string{"100", "50", "200"} {
		assert.Equal(t, ActionHold, s.Decide(ctxAt(p, baseRange)).Action)
	}
}

func TestPeriodic(t *testing.T) {
	p := &Periodic{Range: spec("0.1", "0"), IntervalSteps: 3}

	ctx := ctxAt("100", baseRange)
	ctx.StepsSinceRebalance = 2
	assert.Equal(t, ActionHold, p.Decide(ctx).Action)

	ctx.StepsSinceRebalance = 3
	d := p.Decide(ctx)
	require.Equal(t, ActionRebalance, d.Action)
	assert.Equal(t, types.ReasonPeriodic, d.Reason.Kind)
	assert.True(t, d.Reason.Value.Equal(dec("3")))
	assert.NoError(t, ValidateRebalance(ctx.Price, d.NewRange))
}

func TestThreshold(t *testing.T) {
	th := &Threshold{Range: spec("0.1", "0"), ThresholdPct: dec("0.05")}

	assert.Equal(t, ActionHold, th.Decide(ctxAt("104.99", baseRange)).Action)

	d := th.Decide(ctxAt("105", baseRange))
	require.Equal(t, ActionRebalance, d.Action)
	assert.Equal(t, types.ReasonPriceThreshold, d.Reason.Kind)
	assert.True(t, d.NewRange.StrictlyContains(dec("105")))

	d = th.Decide(ctxAt("94", baseRange))
	assert.Equal(t, ActionRebalance, d.Action, "downward moves count too")
}

func TestILLimit(t *testing.T) {
	l := &ILLimit{Range: spec("0.1", "0"), MaxILPct: dec("0.02"), GracePeriodSteps: 2}

	ctx := ctxAt("100", baseRange)
	ctx.ILPct = dec("-0.03")
	ctx.StepsSinceOpen = 1
	assert.Equal(t, ActionHold, l.Decide(ctx).Action, "grace period suppresses the check")

	ctx.StepsSinceOpen = 2
	d := l.Decide(ctx)
	require.Equal(t, ActionRebalance, d.Action)
	assert.Equal(t, types.ReasonILThreshold, d.Reason.Kind)

	l.CloseOnLimit = true
	assert.Equal(t, ActionClose, l.Decide(ctx).Action)

	ctx.ILPct = dec("-0.01")
	assert.Equal(t, ActionHold, l.Decide(ctx).Action)
}

func TestOutOfRangeAloneDoesNotRebalance(t *testing.T) {
	out := ctxAt("120", baseRange)
	out.StepsSinceRebalance = 1
	out.StepsSinceOpen = 1

	strategies := []Strategy{
		&Static{Range: spec("0.1", "0")},
		&Periodic{Range: spec("0.1", "0"), IntervalSteps: 10},
		&Threshold{Range: spec("0.1", "0"), ThresholdPct: dec("0.5")},
		&ILLimit{Range: spec("0.1", "0"), MaxILPct: dec("0.5")},
	}
	for _, s := range strategies {
		assert.False(t, out.InRange())
		assert.Equal(t, ActionHold, s.Decide(out).Action, "%s must hold", s.Kind())
	}

	oor := &ILLimit{Range: spec("0.1", "0"), MaxILPct: dec("0.5"), RebalanceOnOutOfRange: true}
	d := oor.Decide(out)
	assert.Equal(t, ActionRebalance, d.Action)
	assert.Equal(t, types.ReasonOutOfRange, d.Reason.Kind)
}

func TestRebalancePostCondition(t *testing.T) {
	prices := []string{"0.0001", "1", "99.999", "100", "12345.678"}
	widths := []string{"0.01", "0.1", "0.5", "1.5"}
	// Offsets as a share of the half width, both sides of center.
	shares := []string{"0", "0.5", "-0.5", "0.99", "-0.99"}
	for _, p := range prices {
		for _, w := range widths {
			for _, sh := range shares {
				offset := dec(w).Div(decimal.NewFromInt(2)).Mul(dec(sh))
				cfg := Config{Type: KindPeriodic, RangeWidthPct: dec(w), RangeOffsetPct: offset, IntervalSteps: ptrInt(1)}
				if cfg.RangeSpec().Validate() != nil {
					continue // lower bound would not be positive
				}
				strat, err := FromConfig(cfg)
				require.NoError(t, err, "width %s offset %s", w, offset)

				d := strat.Decide(Context{Price: dec(p), StepsSinceRebalance: 1})
				require.Equal(t, ActionRebalance, d.Action)
				assert.NoError(t, ValidateRebalance(dec(p), d.NewRange), "price %s width %s offset %s", p, w, offset)
			}
		}
	}
}

func TestValidateRebalance(t *testing.T) {
	err := ValidateRebalance(dec("100"), types.PriceRange{Lower: dec("101"), Upper: dec("111")})
	assert.ErrorIs(t, err, types.ErrInvalidRebalance)
	assert.Equal(t, types.FailureInvalidRebalance, types.Classify(err))

	err = ValidateRebalance(dec("100"), types.PriceRange{Lower: dec("100"), Upper: dec("100")})
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	assert.Equal(t, types.FailureInvalidRebalance, types.Classify(err))

	assert.NoError(t, ValidateRebalance(dec("100"), baseRange))
}

func TestAroundTinyPrices(t *testing.T) {
	_, err := spec("0.1", "0").Around(dec("1e-26"))
	assert.ErrorIs(t, err, ErrBelowPrecision)
	assert.ErrorIs(t, err, types.ErrValidation)

	// Decide still rebalances; the empty range carries no bounds.
	d := (&Periodic{Range: spec("0.1", "0"), IntervalSteps: 1}).Decide(Context{Price: dec("1e-26"), StepsSinceRebalance: 1})
	assert.Equal(t, ActionRebalance, d.Action)
	assert.True(t, d.NewRange.Lower.IsZero() && d.NewRange.Upper.IsZero())

	r, err := spec("0.1", "0").Around(dec("1e-12"))
	require.NoError(t, err)
	assert.True(t, r.StrictlyContains(dec("1e-12")), "range %s", r)
}

func TestState(t *testing.T) {
	st := NewState(0)
	pos := types.Position{Range: baseRange, EntryPrice: dec("100")}

	ctx := st.Context(4, time.Unix(0, 0), dec("101"), pos, decimal.Zero, decimal.Zero)
	assert.Equal(t, 4, ctx.StepsSinceOpen)
	assert.Equal(t, 4, ctx.StepsSinceRebalance)

	st.Rebalanced(4, types.ReasonPeriodic)
	ctx = st.Context(6, time.Unix(0, 0), dec("101"), pos, decimal.Zero, decimal.Zero)
	assert.Equal(t, 2, ctx.StepsSinceRebalance)
	assert.Equal(t, 1, st.RebalanceCount)
}
