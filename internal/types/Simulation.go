/*

This file contains the output types of a simulation run: the snapshot time series and the summary totals.

*/

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotEvent tells which transition produced a snapshot.
type SnapshotEvent string

const (
	EventStep      SnapshotEvent = "STEP"      // One per price path sample
	EventRebalance SnapshotEvent = "REBALANCE" // After a new position was opened
	EventClose     SnapshotEvent = "CLOSE"     // Terminal snapshot
)

// SimulationSnapshot is an immutable record of the simulated state at one point in time.
type SimulationSnapshot struct {
	Step                 int             `json:"step"`
	Timestamp            time.Time       `json:"timestamp"`
	Event                SnapshotEvent   `json:"event"`
	Price                decimal.Decimal `json:"price"`
	PositionValue        decimal.Decimal `json:"position_value"`         // Value of the open position, fees excluded
	FeesEarnedCumulative decimal.Decimal `json:"fees_earned_cumulative"` // Never decreases
	ImpermanentLoss      decimal.Decimal `json:"impermanent_loss"`       // Realized plus current IL, <= 0
	ILPct                decimal.Decimal `json:"il_pct"`                 // IL of the open position as a fraction of its capital
	NetPnL               decimal.Decimal `json:"net_pnl"`
	InRange              bool            `json:"in_range"`
}

// SimulationSummary holds the totals of a finished run.
type SimulationSummary struct {
	InitialCapital     decimal.Decimal  `json:"initial_capital"`
	EntryPrice         decimal.Decimal  `json:"entry_price"`
	ExitPrice          decimal.Decimal  `json:"exit_price"`
	FinalPositionValue decimal.Decimal  `json:"final_position_value"`
	FinalValue         decimal.Decimal  `json:"final_value"` // Position value plus collected fees
	TotalFees          decimal.Decimal  `json:"total_fees"`
	TotalIL            decimal.Decimal  `json:"total_il"`
	FinalILPct         decimal.Decimal  `json:"final_il_pct"`
	NetPnL             decimal.Decimal  `json:"net_pnl"`
	TotalReturnPct     decimal.Decimal  `json:"total_return_pct"`
	HodlValue          decimal.Decimal  `json:"hodl_value"`
	HodlReturnPct      decimal.Decimal  `json:"hodl_return_pct"`
	VsHodlPct          decimal.Decimal  `json:"vs_hodl_pct"`
	MaxDrawdown        decimal.Decimal  `json:"max_drawdown"` // Fraction of peak wealth
	RebalanceCount     int              `json:"rebalance_count"`
	TotalRebalanceCost decimal.Decimal  `json:"total_rebalance_cost"`
	TimeInRange        decimal.Decimal  `json:"time_in_range"` // Fraction of STEP snapshots in range
	SharpeRatio        *decimal.Decimal `json:"sharpe_ratio,omitempty"`
	Steps              int              `json:"steps"`
	ClosedByStrategy   bool             `json:"closed_by_strategy"`
}

// SimulationReport is the full output of one simulator run.
type SimulationReport struct {
	RunID      string               `json:"run_id"`
	Strategy   string               `json:"strategy"`
	Pool       PoolParameters       `json:"pool"`
	Snapshots  []SimulationSnapshot `json:"snapshots"`
	Positions  []Position           `json:"positions"`
	Rebalances []RebalanceEvent     `json:"rebalances"`
	PnLHistory []decimal.Decimal    `json:"pnl_history"` // Net PnL per STEP snapshot
	Summary    SimulationSummary    `json:"summary"`
}

// StepSnapshots returns only the per-sample snapshots.
func (r *SimulationReport) StepSnapshots() []SimulationSnapshot {
	out := make([]SimulationSnapshot, 0, len(r.Snapshots))
	for _, s := range r.Snapshots {
		if s.Event == EventStep {
			out = append(out, s)
		}
	}
	return out
}
