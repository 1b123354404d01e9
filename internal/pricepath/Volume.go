package pricepath

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/clmm"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// VolumeModel draws the pool volume traded during one synthetic step, in token B.
type VolumeModel interface {
	NextVolume(rng RandomSource) (decimal.Decimal, error)
	Validate() error
}

// ConstantVolume yields the same volume every step.
type ConstantVolume struct {
	Amount decimal.Decimal `yaml:"amount" json:"amount"`
}

func (v ConstantVolume) NextVolume(RandomSource) (decimal.Decimal, error) {
	return v.Amount, nil
}

func (v ConstantVolume) Validate() error {
	if v.Amount.IsNegative() {
		return fmt.Errorf("%w: constant volume cannot be negative, got %s", types.ErrValidation, v.Amount)
	}
	return nil
}

// UniformVolume draws uniformly from [Min, Max).
type UniformVolume struct {
	Min decimal.Decimal `yaml:"min" json:"min"`
	Max decimal.Decimal `yaml:"max" json:"max"`
}

func (v UniformVolume) NextVolume(rng RandomSource) (decimal.Decimal, error) {
	u := decimal.NewFromFloat(rng.Float64())
	return v.Min.Add(v.Max.Sub(v.Min).Mul(u)).Truncate(clmm.Precision), nil
}

func (v UniformVolume) Validate() error {
	if v.Min.IsNegative() || v.Max.LessThan(v.Min) {
		return fmt.Errorf("%w: uniform volume needs 0 <= min <= max, got [%s, %s]", types.ErrValidation, v.Min, v.Max)
	}
	return nil
}

// LogNormalVolume draws Median * exp(Sigma * Z).
type LogNormalVolume struct {
	Median decimal.Decimal `yaml:"median" json:"median"`
	Sigma  decimal.Decimal `yaml:"sigma" json:"sigma"`
}

func (v LogNormalVolume) NextVolume(rng RandomSource) (decimal.Decimal, error) {
	x := v.Sigma.Mul(decimal.NewFromFloat(rng.NormFloat64()))
	growth, err := x.ExpTaylor(clmm.Precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: volume exponent %s: %w", types.ErrNumericOverflow, x, err)
	}
	return v.Median.Mul(growth).Truncate(clmm.Precision), nil
}

func (v LogNormalVolume) Validate() error {
	if v.Median.IsNegative() || v.Sigma.IsNegative() {
		return fmt.Errorf("%w: log-normal volume needs non-negative median and sigma, got %s/%s",
			types.ErrValidation, v.Median, v.Sigma)
	}
	return nil
}
