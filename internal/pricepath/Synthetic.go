package pricepath

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Year is the time unit of Drift and Volatility.
const Year = 365 * 24 * time.Hour

// volumeSeedSalt separates the volume stream from the price stream of the same seed.
const volumeSeedSalt int64 = 0x5DEECE66D

var (
	half     = decimal.NewFromFloat(0.5)
	yearNano = decimal.NewFromInt(int64(Year))
)

// RandomSource is the randomness a synthetic path consumes. *rand.Rand satisfies it.
type RandomSource interface {
	NormFloat64() float64
	Float64() float64
}

// SourceFactory returns fresh price and volume sources. It is called on construction and on
// every Reset, so it must return sources that replay the same sequence each time.
type SourceFactory func() (price RandomSource, volume RandomSource)

// SeededSources returns a SourceFactory backed by math/rand seeded from seed.
func SeededSources(seed int64) SourceFactory {
	return func() (RandomSource, RandomSource) {
		return rand.New(rand.NewSource(seed)), rand.New(rand.NewSource(seed ^ volumeSeedSalt))
	}
}

// GBMConfig parameterizes a geometric Brownian motion path.
type GBMConfig struct {
	StartPrice   decimal.Decimal // Price of sample 0
	Drift        decimal.Decimal // Annualized mu
	Volatility   decimal.Decimal // Annualized sigma
	StepDuration time.Duration
	StepCount    int // Number of steps; the path yields StepCount+1 samples
	StartTime    time.Time
	Seed         int64
	Volume       VolumeModel // Defaults to zero constant volume
}

// Validate checks the configuration is usable.
func (c GBMConfig) Validate() error {
	if !c.StartPrice.IsPositive() {
		return fmt.Errorf("%w: start price must be positive, got %s", types.ErrValidation, c.StartPrice)
	}
	if c.Volatility.IsNegative() {
		return fmt.Errorf("%w: volatility cannot be negative, got %s", types.ErrValidation, c.Volatility)
	}
	if c.StepDuration <= 0 {
		return fmt.Errorf("%w: step duration must be positive, got %s", types.ErrValidation, c.StepDuration)
	}
	if c.StepCount < 0 {
		return fmt.Errorf("%w: step count cannot be negative, got %d", types.ErrValidation, c.StepCount)
	}
	if c.Volume != nil {
		if err := c.Volume.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Synthetic is a reproducible GBM price path:
//
//	price[k+1] = price[k] * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z)
//
// with dt the step duration in years. The exponent and the price update are evaluated in
// decimal; only the standard normal draws come from the random source.
type Synthetic struct {
	cfg       GBMConfig
	sources   SourceFactory
	priceRNG  RandomSource
	volumeRNG RandomSource

	driftTerm decimal.Decimal
	volTerm   decimal.Decimal

	step  int
	price decimal.Decimal
}

// NewSynthetic returns a GBM path seeded from cfg.Seed.
func NewSynthetic(cfg GBMConfig) (*Synthetic, error) {
	return NewSyntheticWithSources(cfg, SeededSources(cfg.Seed))
}

// NewSyntheticWithSources returns a GBM path drawing from the given sources.
func NewSyntheticWithSources(cfg GBMConfig, sources SourceFactory) (*Synthetic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sources == nil {
		return nil, fmt.Errorf("%w: random source factory is required", types.ErrValidation)
	}
	if cfg.Volume == nil {
		cfg.Volume = ConstantVolume{Amount: decimal.Zero}
	}

	dt := clmm.QuoDown(decimal.NewFromInt(int64(cfg.StepDuration)), yearNano)
	sqrtDt, err := clmm.Sqrt(dt)
	if err != nil {
		return nil, err
	}
	s := &Synthetic{
		cfg:       cfg,
		sources:   sources,
		driftTerm: cfg.Drift.Sub(half.Mul(cfg.Volatility).Mul(cfg.Volatility)).Mul(dt).Truncate(clmm.Precision),
		volTerm:   cfg.Volatility.Mul(sqrtDt).Truncate(clmm.Precision),
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}

	pathLogger := logger.GetForComponent("price_path")
	pathLogger.Debug().
		Str("startPrice", cfg.StartPrice.String()).
		Str("drift", cfg.Drift.String()).
		Str("volatility", cfg.Volatility.String()).
		Dur("step", cfg.StepDuration).
		Int("steps", cfg.StepCount).
		Int64("seed", cfg.Seed).
		Msg("Synthetic GBM path created")
	return s, nil
}

func (s *Synthetic) Next(ctx context.Context) (types.PricePathSample, error) {
	if err := ctx.Err(); err != nil {
		return types.PricePathSample{}, err
	}
	if s.step > s.cfg.StepCount {
		return types.PricePathSample{}, io.EOF
	}

	if s.step > 0 {
		z := decimal.NewFromFloat(s.priceRNG.NormFloat64())
		exponent := s.driftTerm.Add(s.volTerm.Mul(z))
		growth, err := exponent.ExpTaylor(clmm.Precision)
		if err != nil {
			return types.PricePathSample{}, fmt.Errorf("%w: step %d exponent %s: %w", types.ErrNumericOverflow, s.step, exponent, err)
		}
		next := s.price.Mul(growth).Truncate(clmm.Precision)
		if !next.IsPositive() {
			return types.PricePathSample{}, fmt.Errorf("%w: price underflowed to zero at step %d", types.ErrNumericOverflow, s.step)
		}
		s.price = next
	}

	volume, err := s.cfg.Volume.NextVolume(s.volumeRNG)
	if err != nil {
		return types.PricePathSample{}, err
	}
	sample := types.PricePathSample{
		Timestamp: s.cfg.StartTime.Add(time.Duration(s.step) * s.cfg.StepDuration),
		Price:     s.price,
		Volume:    volume,
	}
	s.step++
	return sample, nil
}

// Reset rewinds to the start price and replays the same random draws.
func (s *Synthetic) Reset() error {
	s.priceRNG, s.volumeRNG = s.sources()
	if s.priceRNG == nil || s.volumeRNG == nil {
		return fmt.Errorf("%w: random source factory returned nil", types.ErrValidation)
	}
	s.step = 0
	s.price = s.cfg.StartPrice
	return nil
}

func (s *Synthetic) Len() int { return s.cfg.StepCount + 1 }

// Config returns the configuration the path was built with.
func (s *Synthetic) Config() GBMConfig { return s.cfg }
