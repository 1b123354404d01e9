/*
This file loads price history from CSV exports.

The expected header is timestamp,open,high,low,close,volume. Timestamps are unix seconds
or RFC 3339. Only close and volume become part of a sample; open/high/low are validated
the same way as downloaded candles so a bad export fails loudly.
*/

package datafetcher

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// CSVHeader is the column order of price files.
var CSVHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

var ErrCSVFormat = fmt.Errorf("%w: malformed price csv", types.ErrValidation)

// LoadCSV reads a price file from disk.
func LoadCSV(path string) ([]types.PricePathSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lg := logger.GetForComponent("csv_loader")
	lg.Info().
		Str("path", path).
		Int("samples", len(samples)).
		Msg("Loaded price history")
	return samples, nil
}

// ReadCSV parses price rows. The header row is required.
func ReadCSV(r io.Reader) ([]types.PricePathSample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(CSVHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrCSVFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCSVFormat, err)
	}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(col), CSVHeader[i]) {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrCSVFormat, i+1, col, CSVHeader[i])
		}
	}

	var samples []types.PricePathSample
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCSVFormat, err)
		}
		c, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCSVFormat, line, err)
		}
		if err := validatePriceDataPoint(c, "csv"); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCSVFormat, line, err)
		}
		samples = append(samples, types.PricePathSample{
			Timestamp: time.Unix(c.Time, 0).UTC(),
			Price:     decimal.RequireFromString(strings.TrimSpace(row[4])),
			Volume:    decimal.RequireFromString(strings.TrimSpace(row[5])),
		})
	}

	if err := types.ValidateSamples(samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// WriteCSV writes samples in the format ReadCSV accepts. Open, high and low repeat the close.
func WriteCSV(w io.Writer, samples []types.PricePathSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, s := range samples {
		p := s.Price.String()
		if err := cw.Write([]string{strconv.FormatInt(s.Timestamp.Unix(), 10), p, p, p, p, s.Volume.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseRow(row []string) (Candle, error) {
	ts, err := parseTimestamp(strings.TrimSpace(row[0]))
	if err != nil {
		return Candle{}, err
	}
	values := make([]float64, 5)
	for i := range values {
		field := strings.TrimSpace(row[i+1])
		// Parsed twice: float for range checks, decimal for the sample itself
		if _, err := decimal.NewFromString(field); err != nil {
			return Candle{}, fmt.Errorf("%s %q is not a number", CSVHeader[i+1], field)
		}
		values[i], _ = strconv.ParseFloat(field, 64)
	}
	return Candle{Time: ts, Open: values[0], High: values[1], Low: values[2], Close: values[3], VolumeTo: values[4]}, nil
}

func parseTimestamp(s string) (int64, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q is neither unix seconds nor RFC 3339", s)
	}
	return t.Unix(), nil
}
