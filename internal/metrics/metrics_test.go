package metrics

import (
	"math"
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

func testRange() types.PriceRange {
	return types.PriceRange{Lower: dec("90"), Upper: dec("110")}
}

func TestImpermanentLoss_ZeroAtEntry(t *testing.T) {
	for _, entry := range []string{"100", "90", "110", "95.5", "80", "150"} {
		il, err := ImpermanentLoss(dec(entry), dec(entry), testRange(), dec("1000"))
		require.NoError(t, err)
		assert.True(t, il.IsZero(), "entry %s: IL should be exactly zero, got %s", entry, il)
	}
}

func TestImpermanentLoss_NegativeWhenPriceMoves(t *testing.T) {
	for _, current := range []string{"91", "99", "101", "109.99"} {
		il, err := ImpermanentLoss(dec("100"), dec(current), testRange(), dec("1000"))
		require.NoError(t, err)
		assert.True(t, il.IsNegative(), "current %s: expected loss, got %s", current, il)
	}
}

func TestImpermanentLoss_FrozenOutsideRange(t *testing.T) {
	atUpper, err := ImpermanentLoss(dec("100"), dec("110"), testRange(), dec("1000"))
	require.NoError(t, err)
	above, err := ImpermanentLoss(dec("100"), dec("200"), testRange(), dec("1000"))
	require.NoError(t, err)
	assert.True(t, atUpper.Equal(above), "IL above range %s should equal IL at the bound %s", above, atUpper)

	atLower, err := ImpermanentLoss(dec("100"), dec("90"), testRange(), dec("1000"))
	require.NoError(t, err)
	below, err := ImpermanentLoss(dec("100"), dec("10"), testRange(), dec("1000"))
	require.NoError(t, err)
	assert.True(t, atLower.Equal(below))

	// Entry and current both beyond the same bound: nothing changes.
	il, err := ImpermanentLoss(dec("120"), dec("150"), testRange(), dec("1000"))
	require.NoError(t, err)
	assert.True(t, il.IsZero())
}

func TestImpermanentLossPct_ConcentrationAmplifiesLoss(t *testing.T) {
	pct, err := ImpermanentLossPct(dec("100"), dec("110"), testRange())
	require.NoError(t, err)

	// Full-range IL for a 10% move is 2*sqrt(1.1)/2.1 - 1, about -0.113%.
	fullRange := 2*math.Sqrt(1.1)/2.1 - 1
	assert.Less(t, pct.InexactFloat64(), fullRange)
	assert.Greater(t, pct.InexactFloat64(), -0.05)
}

func TestImpermanentLoss_InvalidInputs(t *testing.T) {
	_, err := ImpermanentLoss(dec("0"), dec("100"), testRange(), dec("1000"))
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = ImpermanentLoss(dec("100"), dec("100"), types.PriceRange{Lower: dec("100"), Upper: dec("100")}, dec("1000"))
	assert.ErrorIs(t, err, types.ErrInvalidRange)
}

func TestLiquidityShareAndFees(t *testing.T) {
	assert.True(t, LiquidityShare(dec("5"), dec("10")).Equal(dec("0.5")))
	assert.True(t, LiquidityShare(dec("20"), dec("10")).Equal(dec("1")))
	assert.True(t, LiquidityShare(dec("5"), decimal.Zero).IsZero())

	fee, err := FeeValue(dec("0.5"), dec("1000"), dec("0.003"))
	require.NoError(t, err)
	assert.True(t, fee.Equal(dec("1.5")), "got %s", fee)

	_, err = FeeValue(dec("0.5"), dec("-1"), dec("0.003"))
	assert.ErrorIs(t, err, types.ErrValidation)
	_, err = FeeValue(dec("1.5"), dec("1"), dec("0.003"))
	assert.ErrorIs(t, err, types.ErrValidation)

	assert.True(t, NetPnL(dec("10"), dec("-5"), dec("1")).Equal(dec("4")))
}

func TestFeeProjections(t *testing.T) {
	apy, err := CalculateAPY(dec("10"), dec("1000"), 365)
	require.NoError(t, err)
	assert.True(t, apy.Equal(dec("0.01")), "got %s", apy)

	_, err = CalculateAPY(dec("10"), dec("1000"), 0)
	assert.ErrorIs(t, err, ErrZeroDays)
	_, err = CalculateAPY(dec("10"), decimal.Zero, 30)
	assert.ErrorIs(t, err, ErrZeroPrincipal)

	compounded := AprToApy(dec("0.12"), 12)
	assert.InDelta(t, 0.126825030131969, compounded.InexactFloat64(), 1e-12)
	assert.True(t, AprToApy(dec("0.12"), 0).Equal(dec("0.12")))

	days, ok := BreakevenDays(dec("0.05"), dec("0.001"))
	require.True(t, ok)
	assert.Equal(t, int64(50), days)
	_, ok = BreakevenDays(dec("0.05"), decimal.Zero)
	assert.False(t, ok)

	assert.True(t, ProjectFees(dec("10"), 30, ProjectionConstant, decimal.Zero).Equal(dec("300")))
	assert.True(t, ProjectFees(dec("10"), 3, ProjectionLinearDecay, dec("0.5")).Equal(dec("15")))
	assert.True(t, ProjectFees(dec("10"), 3, ProjectionExponentialDecay, dec("0.5")).Equal(dec("17.5")))
}

func TestMaxDrawdown(t *testing.T) {
	values := []decimal.Decimal{dec("100"), dec("120"), dec("90"), dec("130"), dec("117")}
	assert.True(t, MaxDrawdown(values).Equal(dec("0.25")))
	assert.True(t, MaxDrawdown(nil).IsZero())
	assert.True(t, MaxDrawdown([]decimal.Decimal{dec("1"), dec("2"), dec("3")}).IsZero())
}

func TestSharpeRatio(t *testing.T) {
	_, ok := SharpeRatio([]decimal.Decimal{dec("0"), dec("1"), dec("2"), dec("3")})
	assert.False(t, ok, "constant step returns have no deviation")

	_, ok = SharpeRatio([]decimal.Decimal{dec("1")})
	assert.False(t, ok)

	ratio, ok := SharpeRatio([]decimal.Decimal{dec("0"), dec("1"), dec("3"), dec("4")})
	require.True(t, ok)
	assert.InDelta(t, 2.8284271, ratio.InexactFloat64(), 1e-6)
}

func TestTimeInRange(t *testing.T) {
	snaps := []types.SimulationSnapshot{
		{Event: types.EventStep, InRange: true},
		{Event: types.EventStep, InRange: false},
		{Event: types.EventRebalance, InRange: false},
		{Event: types.EventStep, InRange: true},
		{Event: types.EventStep, InRange: true},
		{Event: types.EventClose, InRange: false},
	}
	assert.True(t, TimeInRange(snaps).Equal(dec("0.75")))
	assert.True(t, TimeInRange(nil).IsZero())
}

func TestRealizedVolatility(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := func(prices ...float64) []types.PriceData {
		out := make([]types.PriceData, len(prices))
		for i, p := range prices {
			out[i] = types.PriceData{Timestamp: start.Add(time.Duration(i) * time.Hour), Price: p}
		}
		return out
	}

	vol, err := RealizedVolatility(series(100, 110, 121), 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, vol, 1e-12)

	vol, err = RealizedVolatility(series(100, 110, 100, 110, 100), 1)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.1), vol, 1e-12)

	annual, err := RealizedVolatility(series(100, 110, 100, 110, 100), HoursPerYear)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.1)*math.Sqrt(HoursPerYear), annual, 1e-9)

	_, err = RealizedVolatility(series(100), 1)
	assert.ErrorIs(t, err, types.ErrInsufficientData)

	_, err = RealizedVolatility(series(100, 101), 0)
	assert.ErrorIs(t, err, types.ErrValidation)
}
