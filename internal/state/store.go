/*

This file contains the persistence contract shared by the PostgreSQL store and the
in-memory store used when no database is configured.

*/

package state

import (
	"context"
	"errors"
	"time"

	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNotFound       = errors.New("record not found")
	ErrNotInitialized = errors.New("database not initialized")
	ErrNilReport      = errors.New("report is nil")
)

// Run sources
const (
	SourceCLI       = "cli"
	SourceAPI       = "api"
	SourceScheduler = "scheduler"
)

// RunRecord is a stored simulation report.
type RunRecord struct {
	RunID     string                  `json:"run_id"`
	CreatedAt time.Time               `json:"created_at"`
	Source    string                  `json:"source"`
	Tags      []string                `json:"tags"`
	Report    *types.SimulationReport `json:"report"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	RunID          string          `json:"run_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Source         string          `json:"source"`
	Strategy       string          `json:"strategy"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
	TotalFees      decimal.Decimal `json:"total_fees"`
	TotalIL        decimal.Decimal `json:"total_il"`
	TimeInRange    decimal.Decimal `json:"time_in_range"`
	RebalanceCount int             `json:"rebalance_count"`
}

// OptimizationRecord is a stored grid search result.
type OptimizationRecord struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	Source      string            `json:"source"`
	CycleNumber *int              `json:"cycle_number,omitempty"` // Set by the scheduler
	Result      *optimizer.Result `json:"result"`
}

// StrategyStats aggregates stored runs of one strategy type.
type StrategyStats struct {
	Runs           int             `json:"runs"`
	AvgNetPnL      decimal.Decimal `json:"avg_net_pnl"`
	AvgFees        decimal.Decimal `json:"avg_fees"`
	AvgTimeInRange decimal.Decimal `json:"avg_time_in_range"`
	ProfitableRuns int             `json:"profitable_runs"`
}

// Analytics summarizes everything stored.
type Analytics struct {
	TotalRuns          int                      `json:"total_runs"`
	TotalOptimizations int                      `json:"total_optimizations"`
	AvgNetPnL          decimal.Decimal          `json:"avg_net_pnl"`
	BestNetPnL         decimal.Decimal          `json:"best_net_pnl"`
	TotalRebalances    int                      `json:"total_rebalances"`
	ByStrategy         map[string]StrategyStats `json:"by_strategy"`
	CurrentCycle       int                      `json:"current_cycle"`
}

// Store persists runs and optimization results.
type Store interface {
	SaveSimulationReport(ctx context.Context, report *types.SimulationReport, source string, tags []string) error
	GetSimulationRun(ctx context.Context, runID string) (*RunRecord, error)
	ListSimulationRuns(ctx context.Context, limit int) ([]RunSummary, error)
	SaveOptimizationRun(ctx context.Context, rec *OptimizationRecord) (string, error)
	GetOptimizationRun(ctx context.Context, id string) (*OptimizationRecord, error)
	GetAnalytics(ctx context.Context) (*Analytics, error)
}

// CycleCounter is the persistent scheduler cycle number.
type CycleCounter interface {
	GetCurrentCycleNumber(ctx context.Context) (int, error)
	IncrementCycleNumber(ctx context.Context) (int, error)
	ResetCycleNumber(ctx context.Context, cycleNumber int) error
}

// clampLimit bounds list sizes.
func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 10 // Default limit
	}
	return limit
}

func summarize(rec *RunRecord) RunSummary {
	s := rec.Report.Summary
	return RunSummary{
		RunID:          rec.RunID,
		CreatedAt:      rec.CreatedAt,
		Source:         rec.Source,
		Strategy:       rec.Report.Strategy,
		NetPnL:         s.NetPnL,
		TotalFees:      s.TotalFees,
		TotalIL:        s.TotalIL,
		TimeInRange:    s.TimeInRange,
		RebalanceCount: s.RebalanceCount,
	}
}
