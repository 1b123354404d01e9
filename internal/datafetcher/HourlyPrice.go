/*
This file is used to fetch historical hourly candles from the CryptoCompare API and turn
them into price path samples for backtests and GBM calibration.

CryptoCompare serves at most 2000 candles per request, so longer histories are paged
backwards with toTs. Every candle is validated before it becomes a sample.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/config"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/utils"
	"github.com/shopspring/decimal"
)

var ErrInvalidPriceData = errors.New("invalid price data received")
var ErrAPIConfiguration = errors.New("API configuration error")

const (
	BASE_URL        = "https://min-api.cryptocompare.com/data/v2/histohour"
	MAX_PAGE_HOURS  = 2000
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
)

type CryptoCompareResponse struct {
	Response   string   `json:"Response"`
	Message    string   `json:"Message"`
	HasWarning bool     `json:"HasWarning"`
	Type       int      `json:"Type"`
	RateLimit  struct{} `json:"RateLimit"`
	Data       struct {
		Aggregated bool     `json:"Aggregated"`
		TimeFrom   int64    `json:"TimeFrom"`
		TimeTo     int64    `json:"TimeTo"`
		Data       []Candle `json:"Data"`
	} `json:"Data"`
}

// Candle is one hourly OHLCV bar.
type Candle struct {
	Time             int64   `json:"time"`
	Close            float64 `json:"close"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Open             float64 `json:"open"`
	VolumeFrom       float64 `json:"volumefrom"`
	VolumeTo         float64 `json:"volumeto"`
	ConversionType   string  `json:"conversionType"`
	ConversionSymbol string  `json:"conversionSymbol"`
}

// PriceFetcher downloads hourly history. The zero value is not usable; use NewPriceFetcher.
type PriceFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client

	// VolumeShare scales the market quote volume down to the share traded through the
	// simulated pool. Defaults to 1.
	VolumeShare decimal.Decimal

	// Backoff returns the wait before retry attempt n (1-based).
	Backoff func(attempt int) time.Duration
}

// NewPriceFetcher returns a fetcher for the public endpoint using config.CryptoCompareAPIKey.
func NewPriceFetcher() *PriceFetcher {
	return &PriceFetcher{
		BaseURL:     BASE_URL,
		APIKey:      config.CryptoCompareAPIKey,
		Client:      &http.Client{Timeout: TIMEOUT_SECONDS * time.Second},
		VolumeShare: decimal.NewFromInt(1),
		Backoff:     func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// validatePriceDataPoint performs strict validation on individual price data points
func validatePriceDataPoint(data Candle, coin string) error {
	// Validate timestamp
	if data.Time <= 0 {
		return fmt.Errorf("invalid timestamp for %s: %d", coin, data.Time)
	}

	// Validate all price fields are finite and positive
	prices := []struct {
		value float64
		name  string
	}{
		{data.Close, "close"},
		{data.High, "high"},
		{data.Low, "low"},
		{data.Open, "open"},
	}

	for _, price := range prices {
		if math.IsNaN(price.value) || math.IsInf(price.value, 0) {
			return fmt.Errorf("%s price for %s is not finite: %f", price.name, coin, price.value)
		}
		if price.value <= 0 {
			return fmt.Errorf("%s price for %s must be positive: %f", price.name, coin, price.value)
		}
	}

	// Validate price relationships (high >= low is fundamental)
	if data.High < data.Low {
		return fmt.Errorf("high price (%f) cannot be less than low price (%f) for %s", data.High, data.Low, coin)
	}

	// Close price should be within the high/low range of the same period
	if data.Close < data.Low || data.Close > data.High {
		return fmt.Errorf("close price (%f) must be between low (%f) and high (%f) for %s", data.Close, data.Low, data.High, coin)
	}

	// Open may sit outside high/low after a gap, but not by more than half the mid price
	midPrice := (data.High + data.Low) / 2.0
	tolerance := midPrice * 0.5
	if data.Open < (midPrice-tolerance) || data.Open > (midPrice+tolerance) {
		return fmt.Errorf("open price (%f) is unreasonably far from trading range [%f-%f] for %s",
			data.Open, data.Low, data.High, coin)
	}

	// Validate volume fields are non-negative and finite
	volumes := []struct {
		value float64
		name  string
	}{
		{data.VolumeFrom, "volumeFrom"},
		{data.VolumeTo, "volumeTo"},
	}

	for _, volume := range volumes {
		if math.IsNaN(volume.value) || math.IsInf(volume.value, 0) {
			return fmt.Errorf("%s for %s is not finite: %f", volume.name, coin, volume.value)
		}
		if volume.value < 0 {
			return fmt.Errorf("%s for %s cannot be negative: %f", volume.name, coin, volume.value)
		}
	}

	return nil
}

// FetchHourlySamples fetches the most recent hours of hourly candles for coin quoted in
// quote, oldest first.
func (f *PriceFetcher) FetchHourlySamples(ctx context.Context, coin, quote string, hours int) ([]types.PricePathSample, error) {
	priceLogger := logger.GetForComponent("price_retriever")

	coin = CCID(coin)
	quote = CCID(quote)
	if hours < 2 {
		return nil, fmt.Errorf("%w: need at least 2 hours of history, got %d", types.ErrInsufficientData, hours)
	}
	if f.APIKey == "" {
		priceLogger.Warn().Str("coin", coin).Msg("CRYPTOCOMPARE_API is not set, using the anonymous rate limit")
	}

	var candles []Candle
	var toTs int64
	for remaining := hours; remaining > 0; {
		page := min(remaining, MAX_PAGE_HOURS)
		batch, err := f.fetchPage(ctx, coin, quote, page, toTs)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		// Pages overlap by one candle at toTs
		if len(candles) > 0 && batch[len(batch)-1].Time >= candles[0].Time {
			batch = batch[:len(batch)-1]
		}
		candles = append(batch, candles...)
		remaining = hours - len(candles)
		toTs = candles[0].Time - 1
		if len(batch) < page {
			break
		}
	}
	if len(candles) > hours {
		candles = candles[len(candles)-hours:]
	}

	samples, err := f.toSamples(candles, coin)
	if err != nil {
		return nil, err
	}
	if len(samples) < hours {
		priceLogger.Warn().
			Str("coin", coin).
			Int("received", len(samples)).
			Int("requested", hours).
			Msg("Fewer hours available than requested")
	}
	if len(samples) < 2 {
		return nil, fmt.Errorf("%w: %s has only %d hourly candles", types.ErrInsufficientData, coin, len(samples))
	}

	priceLogger.Info().
		Str("coin", coin).
		Int("dataPoints", len(samples)).
		Time("oldestData", samples[0].Timestamp).
		Time("newestData", samples[len(samples)-1].Timestamp).
		Msg("Successfully retrieved and validated price data")

	return samples, nil
}

// fetchPage requests one page with retries. toTs == 0 means "up to now".
func (f *PriceFetcher) fetchPage(ctx context.Context, coin, quote string, limit int, toTs int64) ([]Candle, error) {
	priceLogger := logger.GetForComponent("price_retriever")

	q := url.Values{}
	q.Set("fsym", coin)
	q.Set("tsym", quote)
	q.Set("limit", strconv.Itoa(limit))
	if toTs > 0 {
		q.Set("toTs", strconv.FormatInt(toTs, 10))
	}
	if f.APIKey != "" {
		q.Set("api_key", f.APIKey)
	}
	endpoint := f.BaseURL + "?" + q.Encode()

	var lastErr error
	for attempt := 1; attempt <= MAX_RETRIES; attempt++ {
		priceLogger.Debug().
			Str("coin", coin).
			Int("attempt", attempt).
			Int("maxRetries", MAX_RETRIES).
			Int64("toTs", toTs).
			Msg("Making API request")

		candles, err := f.request(ctx, endpoint, coin)
		if err == nil {
			return candles, nil
		}
		lastErr = err
		if errors.Is(err, ErrInvalidPriceData) || ctx.Err() != nil {
			break
		}
		priceLogger.Warn().
			Err(err).
			Str("coin", coin).
			Int("attempt", attempt).
			Msg("API request failed, will retry if attempts remain")
		if attempt < MAX_RETRIES {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.Backoff(attempt)):
			}
		}
	}

	priceLogger.Error().
		Err(lastErr).
		Str("coin", coin).
		Int("maxRetries", MAX_RETRIES).
		Msg("All retry attempts failed")
	return nil, fmt.Errorf("failed to fetch price data for %s: %w", coin, lastErr)
}

func (f *PriceFetcher) request(ctx context.Context, endpoint, coin string) ([]Candle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIConfiguration, err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	return processAPIResponse(resp, coin)
}

// processAPIResponse handles the API response with strict validation
func processAPIResponse(resp *http.Response, coin string) ([]Candle, error) {
	priceLogger := logger.GetForComponent("price_retriever")

	// Validate HTTP status
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, coin)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", coin, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body for %s", coin)
	}

	var cryptoResp CryptoCompareResponse
	if err := json.Unmarshal(body, &cryptoResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response for %s: %w", coin, err)
	}

	priceLogger.Debug().
		Str("coin", coin).
		Str("apiResponse", cryptoResp.Response).
		Str("apiMessage", cryptoResp.Message).
		Bool("hasWarning", cryptoResp.HasWarning).
		Int("dataPointCount", len(cryptoResp.Data.Data)).
		Msg("API response details")

	// Validate API response success
	if cryptoResp.Response != "Success" {
		return nil, fmt.Errorf("API error for %s: %s - %s", coin, cryptoResp.Response, cryptoResp.Message)
	}

	if cryptoResp.HasWarning {
		priceLogger.Warn().
			Str("coin", coin).
			Int("dataPointCount", len(cryptoResp.Data.Data)).
			Str("message", cryptoResp.Message).
			Msg("API returned warning but has data - continuing")
	}

	// CryptoCompare pads the start of a short history with all-zero candles
	candles := make([]Candle, 0, len(cryptoResp.Data.Data))
	for _, c := range cryptoResp.Data.Data {
		if c.Open == 0 && c.High == 0 && c.Low == 0 && c.Close == 0 {
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// toSamples validates every candle and converts it to a sample priced at its close.
func (f *PriceFetcher) toSamples(candles []Candle, coin string) ([]types.PricePathSample, error) {
	share := f.VolumeShare
	if share.IsZero() {
		share = decimal.NewFromInt(1)
	}
	samples := make([]types.PricePathSample, 0, len(candles))
	for i, c := range candles {
		if err := validatePriceDataPoint(c, coin); err != nil {
			return nil, fmt.Errorf("%w: data point %d: %v", ErrInvalidPriceData, i, err)
		}
		price, err := utils.Float64ToDecimal(c.Close)
		if err != nil {
			return nil, fmt.Errorf("%w: data point %d: %v", ErrInvalidPriceData, i, err)
		}
		volume, err := utils.Float64ToDecimal(c.VolumeTo)
		if err != nil {
			return nil, fmt.Errorf("%w: data point %d: %v", ErrInvalidPriceData, i, err)
		}
		samples = append(samples, types.PricePathSample{
			Timestamp: time.Unix(c.Time, 0).UTC(),
			Price:     price,
			Volume:    volume.Mul(share),
		})
	}
	if err := validateTimeSequence(samples, coin); err != nil {
		return nil, err
	}
	return samples, nil
}

// validateTimeSequence ensures the price data has proper chronological sequence
func validateTimeSequence(samples []types.PricePathSample, coin string) error {
	priceLogger := logger.GetForComponent("price_retriever")

	if err := types.ValidateSamples(samples); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPriceData, coin, err)
	}
	for i := 1; i < len(samples); i++ {
		// Check for reasonable time gaps (should be ~1 hour apart)
		timeDiff := samples[i].Timestamp.Sub(samples[i-1].Timestamp)
		if timeDiff < 30*time.Minute || timeDiff > 90*time.Minute {
			priceLogger.Warn().
				Str("coin", coin).
				Int("index", i).
				Dur("timeDiff", timeDiff).
				Msg("Unusual time gap between data points")
		}
	}
	return nil
}

// CCID maps a token symbol to its CryptoCompare ID.
func CCID(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))
	if id, ok := config.CoinToCCId[symbol]; ok {
		return id
	}
	return symbol
}
