/*

This file contains the types for positions which contain all the state needed for simulating a liquidity position and its rebalances.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulated CLMM position. Immutable while open: a rebalance closes it and opens a new one.
type Position struct {
	ID           uuid.UUID       `json:"id"`
	Capital      decimal.Decimal `json:"capital"`                 // Value committed at open, in token B
	Range        PriceRange      `json:"range"`                   // Active price range
	Liquidity    decimal.Decimal `json:"liquidity"`               // Value-space liquidity L derived from capital, entry price and range
	EntryPrice   decimal.Decimal `json:"entry_price"`             // Price at open
	OpenedAt     time.Time       `json:"opened_at"`               // Timestamp of the sample that opened the position
	OpenedStep   int             `json:"opened_step"`             // Index of that sample
	AmountA      decimal.Decimal `json:"amount_a"`                // Token A deposited at open
	AmountB      decimal.Decimal `json:"amount_b"`                // Token B deposited at open
	TickLower    *int32          `json:"tick_lower,omitempty"`    // Set when the range was aligned to pool ticks
	TickUpper    *int32          `json:"tick_upper,omitempty"`    // Set when the range was aligned to pool ticks
	RawLiquidity *sdkmath.Int    `json:"raw_liquidity,omitempty"` // Protocol (u128) liquidity, set when pool decimals are known
}

// RebalanceReasonKind identifies why a strategy moved or closed a position.
type RebalanceReasonKind string

const (
	ReasonPeriodic       RebalanceReasonKind = "PERIODIC"
	ReasonPriceThreshold RebalanceReasonKind = "PRICE_THRESHOLD"
	ReasonILThreshold    RebalanceReasonKind = "IL_THRESHOLD"
	ReasonOutOfRange     RebalanceReasonKind = "OUT_OF_RANGE"
	ReasonManual         RebalanceReasonKind = "MANUAL"
)

// RebalanceReason carries the reason kind plus the measured value that triggered it
// (steps elapsed, price change, IL percentage or current price).
type RebalanceReason struct {
	Kind  RebalanceReasonKind `json:"kind"`
	Value decimal.Decimal     `json:"value"`
}

// RebalanceEvent records one close-and-reopen (or final close) decided by a strategy.
type RebalanceEvent struct {
	Step         int             `json:"step"`
	Timestamp    time.Time       `json:"timestamp"`
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	OldRange     PriceRange      `json:"old_range"`
	NewRange     *PriceRange     `json:"new_range,omitempty"` // nil when the strategy closed the position
	Reason       RebalanceReason `json:"reason"`
	ClosedValue  decimal.Decimal `json:"closed_value"` // Value of the old position at the trigger price
	Cost         decimal.Decimal `json:"cost"`
	RealizedIL   decimal.Decimal `json:"realized_il"`
}
