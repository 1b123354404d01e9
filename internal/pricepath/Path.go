/*

This file contains the price path abstraction consumed by the simulator and the historical replay path.

A Path is a finite, restartable, lazily consumed sequence of samples. Next returns io.EOF
once the path is exhausted; Reset rewinds it so the exact same sequence is produced again.

*/

package pricepath

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// Source names the origin of a path, as accepted by scenario configuration.
type Source string

const (
	SourceHistorical Source = "HISTORICAL"
	SourceSynthetic  Source = "SYNTHETIC"
)

// Path yields price samples in timestamp order.
type Path interface {
	// Next returns the next sample, or io.EOF when the path is exhausted.
	Next(ctx context.Context) (types.PricePathSample, error)
	// Reset rewinds the path to its first sample.
	Reset() error
	// Len returns the total number of samples the path yields.
	Len() int
}

// Historical replays supplied samples unmodified.
type Historical struct {
	samples []types.PricePathSample
	cursor  int
}

// NewHistorical validates samples and returns a path replaying them.
// The slice is copied so later mutation by the caller cannot change the path.
func NewHistorical(samples []types.PricePathSample) (*Historical, error) {
	if err := types.ValidateSamples(samples); err != nil {
		return nil, fmt.Errorf("historical path: %w", err)
	}
	owned := make([]types.PricePathSample, len(samples))
	copy(owned, samples)
	return &Historical{samples: owned}, nil
}

func (h *Historical) Next(ctx context.Context) (types.PricePathSample, error) {
	if err := ctx.Err(); err != nil {
		return types.PricePathSample{}, err
	}
	if h.cursor >= len(h.samples) {
		return types.PricePathSample{}, io.EOF
	}
	s := h.samples[h.cursor]
	h.cursor++
	return s, nil
}

func (h *Historical) Reset() error {
	h.cursor = 0
	return nil
}

func (h *Historical) Len() int { return len(h.samples) }

// Samples returns a copy of the replayed samples.
func (h *Historical) Samples() []types.PricePathSample {
	out := make([]types.PricePathSample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Collect rewinds p and drains it into a slice.
func Collect(ctx context.Context, p Path) ([]types.PricePathSample, error) {
	if err := p.Reset(); err != nil {
		return nil, err
	}
	out := make([]types.PricePathSample, 0, p.Len())
	for {
		s, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}
