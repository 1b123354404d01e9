package pricepath

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/metrics"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Calibration holds GBM parameters estimated from a price history.
type Calibration struct {
	Drift        decimal.Decimal // Annualized mu
	Volatility   decimal.Decimal // Annualized sigma
	MeanVolume   decimal.Decimal // Average volume per sample
	StepDuration time.Duration   // Median spacing of the samples
	LastPrice    decimal.Decimal
	LastTime     time.Time
}

// CalibrateGBM estimates drift and volatility from historical samples. With log returns of
// per-step mean m and deviation s over N steps per year: sigma = s*sqrt(N), mu = m*N + sigma^2/2.
func CalibrateGBM(samples []types.PricePathSample) (Calibration, error) {
	if len(samples) < 2 {
		return Calibration{}, fmt.Errorf("%w: need at least 2 samples to calibrate, got %d", types.ErrInsufficientData, len(samples))
	}
	if err := types.ValidateSamples(samples); err != nil {
		return Calibration{}, err
	}

	stats, err := metrics.LogReturnStats(metrics.PriceDataFromSamples(samples))
	if err != nil {
		return Calibration{}, err
	}

	step := medianSpacing(samples)
	periodsPerYear := float64(Year) / float64(step)
	sigma := stats.StdDev * math.Sqrt(periodsPerYear)
	mu := stats.Mean*periodsPerYear + sigma*sigma/2

	total := decimal.Zero
	for _, s := range samples {
		total = total.Add(s.Volume)
	}
	last := samples[len(samples)-1]

	return Calibration{
		Drift:        decimal.NewFromFloat(mu).Round(8),
		Volatility:   decimal.NewFromFloat(sigma).Round(8),
		MeanVolume:   total.Div(decimal.NewFromInt(int64(len(samples)))),
		StepDuration: step,
		LastPrice:    last.Price,
		LastTime:     last.Timestamp,
	}, nil
}

// GBMConfig returns a forward-looking path configuration that starts at the last observed price
// and trades the mean historical volume each step.
func (c Calibration) GBMConfig(steps int, seed int64) GBMConfig {
	return GBMConfig{
		StartPrice:   c.LastPrice,
		Drift:        c.Drift,
		Volatility:   c.Volatility,
		StepDuration: c.StepDuration,
		StepCount:    steps,
		StartTime:    c.LastTime,
		Seed:         seed,
		Volume:       ConstantVolume{Amount: c.MeanVolume},
	}
}

func medianSpacing(samples []types.PricePathSample) time.Duration {
	gaps := make([]time.Duration, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		gaps = append(gaps, samples[i].Timestamp.Sub(samples[i-1].Timestamp))
	}
	slices.Sort(gaps)
	return gaps[len(gaps)/2]
}
