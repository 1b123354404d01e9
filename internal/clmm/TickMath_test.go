package clmm

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampledTicks = []int32{
	MinTick, MinTick + 1, -300000, -100000, -12345, -1000, -64, -1, 0, 1, 64, 1000, 12345, 100000, 300000, MaxTick - 1, MaxTick,
}

func TestTickToSqrtPriceX64_Zero(t *testing.T) {
	sp, err := TickToSqrtPriceX64(0)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551616", sp.String())

	price, err := TickToPrice(0)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1)), "price at tick 0 should be 1, got %s", price)
}

func TestTickToPrice_MatchesPowerOfBase(t *testing.T) {
	for _, tick := range []int32{1, -1, 100, -100, 5000, -5000, 200000, -200000} {
		price, err := TickToPrice(tick)
		require.NoError(t, err)
		want := math.Pow(1.0001, float64(tick))
		assert.InEpsilon(t, want, price.InexactFloat64(), 1e-9, "tick %d", tick)
	}
}

func TestTickRoundTrip(t *testing.T) {
	for _, tick := range sampledTicks {
		sp, err := TickToSqrtPriceX64(tick)
		require.NoError(t, err)
		back, err := SqrtPriceX64ToTick(sp)
		require.NoError(t, err)
		assert.Equal(t, tick, back, "sqrt price round trip")

		price, err := TickToPrice(tick)
		require.NoError(t, err)
		fromPrice, err := PriceToTick(price)
		require.NoError(t, err)
		assert.Equal(t, tick, fromPrice, "price round trip")
	}
}

func TestTickMonotonicity(t *testing.T) {
	for _, tick := range sampledTicks {
		if tick == MaxTick {
			continue
		}
		spLo, err := TickToSqrtPriceX64(tick)
		require.NoError(t, err)
		spHi, err := TickToSqrtPriceX64(tick + 1)
		require.NoError(t, err)
		assert.True(t, spHi.GT(spLo), "sqrt price must increase at tick %d", tick)

		pLo, err := TickToPrice(tick)
		require.NoError(t, err)
		pHi, err := TickToPrice(tick + 1)
		require.NoError(t, err)
		assert.True(t, pHi.GreaterThan(pLo), "price must increase at tick %d", tick)
	}
}

func TestSqrtPriceX64ToTick_FloorsBetweenTicks(t *testing.T) {
	sp, err := TickToSqrtPriceX64(1000)
	require.NoError(t, err)
	next, err := TickToSqrtPriceX64(1001)
	require.NoError(t, err)

	mid := sp.Add(next.Sub(sp).QuoRaw(2))
	tick, err := SqrtPriceX64ToTick(mid)
	require.NoError(t, err)
	assert.Equal(t, int32(1000), tick)
}

func TestPriceToTick_Floors(t *testing.T) {
	tick, err := PriceToTick(decimal.RequireFromString("1.00015"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), tick)

	tick, err = PriceToTick(decimal.RequireFromString("0.99995"))
	require.NoError(t, err)
	assert.Equal(t, int32(-1), tick)
}

func TestTickMath_OutOfRange(t *testing.T) {
	_, err := TickToSqrtPriceX64(MaxTick + 1)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = TickToPrice(MinTick - 1)
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = SqrtPriceX64ToTick(MaxSqrtPriceX64.AddRaw(1))
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = SqrtPriceX64ToTick(MinSqrtPriceX64.SubRaw(1))
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = PriceToSqrtPriceX64(decimal.RequireFromString("1e-30"))
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	_, err = PriceToTick(decimal.Zero)
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = SqrtPriceX64ToPrice(sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestSqrtPriceConversion(t *testing.T) {
	sp, err := PriceToSqrtPriceX64(decimal.NewFromInt(4))
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewIntFromUint64(1<<63).MulRaw(4).String(), sp.String())

	price, err := SqrtPriceX64ToPrice(sp)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(4)), "got %s", price)
}

func TestAlignTicks(t *testing.T) {
	tests := []struct {
		name     string
		tick     int32
		spacing  int32
		wantDown int32
		wantUp   int32
	}{
		{"aligned", 128, 64, 128, 128},
		{"positive", 70, 64, 64, 128},
		{"negative", -5, 4, -8, -4},
		{"spacing one", -7, 1, -7, -7},
		{"min tick", MinTick, 64, -443584, -443584},
		{"max tick", MaxTick, 64, 443584, 443584},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			down, err := AlignTickDown(tt.tick, tt.spacing)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDown, down)

			up, err := AlignTickUp(tt.tick, tt.spacing)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUp, up)
		})
	}

	_, err := AlignTickDown(7, 0)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestValidateTickRange(t *testing.T) {
	assert.NoError(t, ValidateTickRange(-8, 8, 4))
	assert.ErrorIs(t, ValidateTickRange(10, 10, 1), types.ErrInvalidRange)
	assert.ErrorIs(t, ValidateTickRange(20, 10, 1), types.ErrInvalidRange)
	assert.ErrorIs(t, ValidateTickRange(-8, 9, 4), types.ErrValidation)
	assert.ErrorIs(t, ValidateTickRange(MinTick-1, 0, 1), types.ErrOutOfRange)
}
