/*

This is a custom type for pools which contains the parameters a protocol adapter supplies about one CLMM pool.

The simulator treats these as opaque configuration: the fee tier drives fee accrual,
the tick spacing drives optional range alignment, and the decimals drive the conversion
into protocol liquidity.

*/

package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PoolParameters struct {
	Address     string          `json:"address,omitempty"` // e.g., Whirlpool account address
	TokenA      Token           `json:"token_a"`           // Base token, price is quoted as B per A
	TokenB      Token           `json:"token_b"`           // Quote token
	TickSpacing int32           `json:"tick_spacing"`      // e.g., 64 for a 0.30% Whirlpool; 0 disables tick alignment
	FeeTier     decimal.Decimal `json:"fee_tier"`          // e.g., 0.003 for 0.30%
}

// DecimalsA returns the decimals of the base token.
func (p PoolParameters) DecimalsA() int { return p.TokenA.Decimals }

// DecimalsB returns the decimals of the quote token.
func (p PoolParameters) DecimalsB() int { return p.TokenB.Decimals }

// Validate checks the parameters are usable by the simulator.
func (p PoolParameters) Validate() error {
	if p.FeeTier.IsNegative() || p.FeeTier.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: fee tier must be in [0, 1), got %s", ErrValidation, p.FeeTier)
	}
	if p.TickSpacing < 0 {
		return fmt.Errorf("%w: tick spacing cannot be negative, got %d", ErrValidation, p.TickSpacing)
	}
	if p.TokenA.Decimals < 0 || p.TokenA.Decimals > 18 || p.TokenB.Decimals < 0 || p.TokenB.Decimals > 18 {
		return fmt.Errorf("%w: token decimals must be between 0 and 18, got %d/%d",
			ErrValidation, p.TokenA.Decimals, p.TokenB.Decimals)
	}
	return nil
}
