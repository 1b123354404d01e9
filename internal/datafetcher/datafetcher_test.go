package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== CRYPTOCOMPARE =====

const hour = int64(3600)

func candle(ts int64, close float64) Candle {
	return Candle{Time: ts, Open: close, High: close * 1.01, Low: close * 0.99, Close: close, VolumeFrom: 10, VolumeTo: close * 10}
}

func respond(w http.ResponseWriter, candles []Candle) {
	var resp CryptoCompareResponse
	resp.Response = "Success"
	resp.Data.Data = candles
	_ = json.NewEncoder(w).Encode(resp)
}

func testFetcher(url string) *PriceFetcher {
	f := NewPriceFetcher()
	f.BaseURL = url
	f.APIKey = "key"
	f.Backoff = func(int) time.Duration { return time.Millisecond }
	return f
}

func TestFetchHourlySamples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL", r.URL.Query().Get("fsym"))
		assert.Equal(t, "USD", r.URL.Query().Get("tsym"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		respond(w, []Candle{
			{Time: 1000 * hour}, // zero padding is dropped
			candle(1001*hour, 100),
			candle(1002*hour, 101),
			candle(1003*hour, 102),
		})
	}))
	defer srv.Close()

	f := testFetcher(srv.URL)
	f.VolumeShare = decimal.RequireFromString("0.5")
	samples, err := f.FetchHourlySamples(context.Background(), "wsol", "USDC", 3)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.True(t, samples[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, samples[0].Volume.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, time.Unix(1001*hour, 0).UTC(), samples[0].Timestamp)
}

func TestFetchHourlySamplesPagesBackwards(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := int64(5000) * hour
		if ts := r.URL.Query().Get("toTs"); ts != "" {
			v, _ := strconv.ParseInt(ts, 10, 64)
			end = v - v%hour
		}
		out := make([]Candle, 0, limit)
		for i := limit - 1; i >= 0; i-- {
			out = append(out, candle(end-int64(i)*hour, 50))
		}
		respond(w, out)
	}))
	defer srv.Close()

	samples, err := testFetcher(srv.URL).FetchHourlySamples(context.Background(), "ETH", "USD", 2500)
	require.NoError(t, err)
	require.Len(t, samples, 2500)
	assert.Equal(t, int32(2), calls.Load())
	require.NoError(t, types.ValidateSamples(samples))
	assert.Equal(t, time.Unix(5000*hour, 0).UTC(), samples[len(samples)-1].Timestamp)
}

func TestFetchHourlySamplesRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		respond(w, []Candle{candle(hour, 10), candle(2*hour, 11)})
	}))
	defer srv.Close()

	samples, err := testFetcher(srv.URL).FetchHourlySamples(context.Background(), "SOL", "USD", 2)
	require.NoError(t, err)
	assert.Len(t, samples, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchHourlySamplesErrors(t *testing.T) {
	t.Run("api error exhausts retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			_, _ = w.Write([]byte(`{"Response":"Error","Message":"fsym is not a valid coin"}`))
		}))
		defer srv.Close()

		_, err := testFetcher(srv.URL).FetchHourlySamples(context.Background(), "NOPE", "USD", 10)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fsym is not a valid coin")
		assert.Equal(t, int32(MAX_RETRIES), calls.Load())
	})

	t.Run("invalid candle is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			bad := candle(2*hour, 10)
			bad.High = 5
			respond(w, []Candle{candle(hour, 10), bad})
		}))
		defer srv.Close()

		_, err := testFetcher(srv.URL).FetchHourlySamples(context.Background(), "SOL", "USD", 2)
		assert.ErrorIs(t, err, ErrInvalidPriceData)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("too few hours requested", func(t *testing.T) {
		_, err := testFetcher("http://unused").FetchHourlySamples(context.Background(), "SOL", "USD", 1)
		assert.ErrorIs(t, err, types.ErrInsufficientData)
	})

	t.Run("only padding available", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond(w, []Candle{{Time: hour}, candle(2*hour, 3)})
		}))
		defer srv.Close()

		_, err := testFetcher(srv.URL).FetchHourlySamples(context.Background(), "NEW", "USD", 24)
		assert.ErrorIs(t, err, types.ErrInsufficientData)
	})
}

func TestValidatePriceDataPoint(t *testing.T) {
	good := candle(hour, 100)
	require.NoError(t, validatePriceDataPoint(good, "SOL"))

	tests := map[string]func(c *Candle){
		"zero timestamp":   func(c *Candle) { c.Time = 0 },
		"negative close":   func(c *Candle) { c.Close = -1 },
		"high below low":   func(c *Candle) { c.High, c.Low = 90, 95 },
		"close above high": func(c *Candle) { c.Close = 200 },
		"open far away":    func(c *Candle) { c.Open = 1000 },
		"negative volume":  func(c *Candle) { c.VolumeTo = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := good
			mutate(&c)
			assert.Error(t, validatePriceDataPoint(c, "SOL"))
		})
	}
}

func TestCCID(t *testing.T) {
	assert.Equal(t, "ETH", CCID(" weth "))
	assert.Equal(t, "USD", CCID("USDC"))
	assert.Equal(t, "PEPE", CCID("pepe"))
}

// ===== CSV =====

func TestReadCSV(t *testing.T) {
	data := `timestamp,open,high,low,close,volume
1700000000,100,101,99,100.5,1200
2023-11-14T23:13:20Z,100.5,102,100,101.25,800
`
	samples, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "100.5", samples[0].Price.String())
	assert.Equal(t, "101.25", samples[1].Price.String())
	assert.Equal(t, "800", samples[1].Volume.String())
	assert.Equal(t, time.Unix(1700003600, 0).UTC(), samples[1].Timestamp)
}

func TestReadCSVRejects(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"wrong header":   "time,open,high,low,close,volume\n",
		"missing column": "timestamp,open,high,low,close,volume\n1,1,1,1,1\n",
		"bad number":     "timestamp,open,high,low,close,volume\n1,1,1,1,abc,1\n",
		"bad timestamp":  "timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n",
		"out of order":   "timestamp,open,high,low,close,volume\n2,1,1,1,1,1\n1,1,1,1,1,1\n",
		"non-positive":   "timestamp,open,high,low,close,volume\n1,0,0,0,0,1\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(data))
			assert.ErrorIs(t, err, types.ErrValidation)
		})
	}
}

func TestWriteCSVReadsBack(t *testing.T) {
	in := []types.PricePathSample{
		{Timestamp: time.Unix(3600, 0).UTC(), Price: decimal.RequireFromString("1.5"), Volume: decimal.NewFromInt(10)},
		{Timestamp: time.Unix(7200, 0).UTC(), Price: decimal.RequireFromString("1.75"), Volume: decimal.Zero},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in))

	out, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].Timestamp, out[i].Timestamp)
		assert.True(t, in[i].Price.Equal(out[i].Price))
		assert.True(t, in[i].Volume.Equal(out[i].Volume))
	}
}
