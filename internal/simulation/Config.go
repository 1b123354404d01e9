package simulation

import (
	"fmt"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultPoolLiquidity is the active pool liquidity assumed when none is configured.
var DefaultPoolLiquidity = decimal.NewFromInt(1_000_000_000)

// Config holds everything a simulation needs besides the strategy and the price path.
type Config struct {
	RunID         string               // Optional; a random UUID is used when empty
	Capital       decimal.Decimal      // Initial capital in token B
	Pool          types.PoolParameters // Fee tier, tick spacing and decimals
	PoolLiquidity decimal.Decimal      // Active pool liquidity in the same units as position liquidity
	RebalanceCost decimal.Decimal      // Flat cost in token B paid on every rebalance

	// InitialRange overrides the strategy's range policy for the first position only.
	InitialRange *types.PriceRange

	// AlignToTicks widens every range to usable ticks of the pool and computes
	// protocol liquidity. Requires Pool.TickSpacing > 0.
	AlignToTicks bool
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if !c.Capital.IsPositive() {
		return fmt.Errorf("%w: capital must be positive, got %s", types.ErrValidation, c.Capital)
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if c.PoolLiquidity.IsZero() {
		c.PoolLiquidity = DefaultPoolLiquidity
	}
	if c.PoolLiquidity.IsNegative() {
		return fmt.Errorf("%w: pool liquidity cannot be negative, got %s", types.ErrValidation, c.PoolLiquidity)
	}
	if c.RebalanceCost.IsNegative() {
		return fmt.Errorf("%w: rebalance cost cannot be negative, got %s", types.ErrValidation, c.RebalanceCost)
	}
	if c.InitialRange != nil {
		if err := c.InitialRange.Validate(); err != nil {
			return err
		}
	}
	if c.AlignToTicks && c.Pool.TickSpacing <= 0 {
		return fmt.Errorf("%w: tick alignment needs a positive tick spacing", types.ErrValidation)
	}
	return nil
}
