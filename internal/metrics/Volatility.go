package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// Common annualization factors for RealizedVolatility.
const (
	HoursPerYear = 8760.0
	DaysPerYear  = 365.0
)

// ReturnStats summarizes the log returns of a price history.
type ReturnStats struct {
	Mean    float64 // Mean log return per period
	StdDev  float64 // Population standard deviation per period
	Periods int     // Number of returns used
}

// LogReturnStats computes mean and standard deviation of log returns.
// Prices are sorted chronologically first; pairs with a non-positive price are skipped.
func LogReturnStats(prices []types.PriceData) (ReturnStats, error) {
	n := len(prices)
	if n < 2 {
		return ReturnStats{}, fmt.Errorf("%w: need at least 2 prices for one return, got %d", types.ErrInsufficientData, n)
	}

	sorted := make([]types.PriceData, n)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		prev, cur := sorted[i-1].Price, sorted[i].Price
		if prev <= 0 || cur <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(cur/prev))
	}
	if len(logReturns) == 0 {
		return ReturnStats{}, fmt.Errorf("%w: no valid price pairs", types.ErrInsufficientData)
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))

	// Population variance (N, not N-1)
	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}
	return ReturnStats{
		Mean:    mean,
		StdDev:  math.Sqrt(sumSqDiff / float64(len(logReturns))),
		Periods: len(logReturns),
	}, nil
}

// RealizedVolatility returns the annualized historical volatility of prices.
// annualizationFactor must match the sampling frequency (HoursPerYear for hourly data).
func RealizedVolatility(prices []types.PriceData, annualizationFactor float64) (float64, error) {
	if annualizationFactor <= 0 {
		return 0, fmt.Errorf("%w: annualization factor must be positive, got %f", types.ErrValidation, annualizationFactor)
	}
	stats, err := LogReturnStats(prices)
	if err != nil {
		return 0, err
	}
	return stats.StdDev * math.Sqrt(annualizationFactor), nil
}

// PriceDataFromSamples extracts the close prices of a sample series.
func PriceDataFromSamples(samples []types.PricePathSample) []types.PriceData {
	out := make([]types.PriceData, len(samples))
	for i, s := range samples {
		out[i] = types.PriceData{Timestamp: s.Timestamp, Price: s.Price.InexactFloat64()}
	}
	return out
}
