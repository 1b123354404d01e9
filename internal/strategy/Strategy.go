/*

This file contains the rebalancing strategy abstraction.

The set of strategies is closed: Static, Periodic, Threshold and ILLimit. Each one is a pure
decision over a Context built by the simulator; none of them keeps mutable state, so one
Strategy value can be shared by any number of concurrent simulations. Per-run memory lives
in State, which the simulator owns.

Going out of range never forces a rebalance on its own. Only the active strategy's rule can
trigger one, which keeps range width and rebalance timing independent parameters.

*/

package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Kind identifies one of the four strategy variants.
type Kind string

const (
	KindStatic    Kind = "STATIC"
	KindPeriodic  Kind = "PERIODIC"
	KindThreshold Kind = "THRESHOLD"
	KindILLimit   Kind = "IL_LIMIT"
)

// Kinds lists every strategy variant in a stable order.
var Kinds = []Kind{KindStatic, KindPeriodic, KindThreshold, KindILLimit}

// ParseKind accepts the canonical names case-insensitively, plus "ILLIMIT".
func ParseKind(s string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "STATIC":
		return KindStatic, nil
	case "PERIODIC":
		return KindPeriodic, nil
	case "THRESHOLD":
		return KindThreshold, nil
	case "IL_LIMIT", "ILLIMIT":
		return KindILLimit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategyType, s)
	}
}

// Action is the outcome of a decision.
type Action string

const (
	ActionHold      Action = "HOLD"
	ActionRebalance Action = "REBALANCE"
	ActionClose     Action = "CLOSE"
)

// Decision is what a strategy wants done after observing a sample.
type Decision struct {
	Action   Action
	NewRange types.PriceRange // Set only for ActionRebalance
	Reason   types.RebalanceReason
}

// Hold is the no-op decision.
func Hold() Decision { return Decision{Action: ActionHold} }

// Context is the simulated state a strategy decides on.
type Context struct {
	Step                int
	Timestamp           time.Time
	Price               decimal.Decimal
	Range               types.PriceRange
	EntryPrice          decimal.Decimal
	StepsSinceOpen      int
	StepsSinceRebalance int
	ILPct               decimal.Decimal // IL of the open position as a fraction of its capital, <= 0
	FeesEarned          decimal.Decimal
}

// InRange uses the same inclusive bounds as fee accrual.
func (c Context) InRange() bool { return c.Range.Contains(c.Price) }

// PriceChangeFromEntry returns price/entry - 1.
func (c Context) PriceChangeFromEntry() decimal.Decimal {
	if !c.EntryPrice.IsPositive() {
		return decimal.Zero
	}
	return c.Price.Div(c.EntryPrice).Sub(decimal.NewFromInt(1))
}

// Strategy decides, sample by sample, whether to hold, rebalance or close a position.
type Strategy interface {
	Kind() Kind
	// ID is a canonical identifier including every parameter.
	ID() string
	// Decide must not mutate anything; it sees the state through ctx only.
	Decide(ctx Context) Decision
	// Ranges returns the range policy used for the initial open and every rebalance.
	Ranges() RangeSpec

	sealed()
}

// State is the per-run strategy memory. It is owned by exactly one simulation.
type State struct {
	OpenedStep          int
	LastRebalanceStep   int
	RebalanceCount      int
	LastRebalanceReason types.RebalanceReasonKind
}

// NewState returns the state of a run whose position opened at step.
func NewState(step int) State {
	return State{OpenedStep: step, LastRebalanceStep: step}
}

// Rebalanced records a rebalance at step and resets the timers.
func (s *State) Rebalanced(step int, reason types.RebalanceReasonKind) {
	s.OpenedStep = step
	s.LastRebalanceStep = step
	s.RebalanceCount++
	s.LastRebalanceReason = reason
}

// Context builds the decision context for the current sample.
func (s State) Context(step int, ts time.Time, price decimal.Decimal, pos types.Position, ilPct, fees decimal.Decimal) Context {
	return Context{
		Step:                step,
		Timestamp:           ts,
		Price:               price,
		Range:               pos.Range,
		EntryPrice:          pos.EntryPrice,
		StepsSinceOpen:      step - s.OpenedStep,
		StepsSinceRebalance: step - s.LastRebalanceStep,
		ILPct:               ilPct,
		FeesEarned:          fees,
	}
}

// ValidateRebalance enforces the post-condition of every rebalance: the new range must
// strictly contain the price that triggered it.
func ValidateRebalance(trigger decimal.Decimal, newRange types.PriceRange) error {
	if err := newRange.Validate(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRebalance, err)
	}
	if !newRange.StrictlyContains(trigger) {
		return fmt.Errorf("%w: new range %s does not strictly contain trigger price %s",
			types.ErrInvalidRebalance, newRange, trigger)
	}
	return nil
}
