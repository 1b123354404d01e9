package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store and CycleCounter on a PostgreSQL pool.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps db. The schema must already exist.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveSimulationReport saves a complete simulation report to the database.
func (s *PostgresStore) SaveSimulationReport(ctx context.Context, report *types.SimulationReport, source string, tags []string) error {
	if s.db == nil {
		return ErrNotInitialized
	}
	if report == nil {
		return ErrNilReport
	}

	// Marshal all JSONB fields
	poolJSON, err := json.Marshal(report.Pool)
	if err != nil {
		return fmt.Errorf("failed to marshal pool: %w", err)
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	snapshotsJSON, err := json.Marshal(report.Snapshots)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshots: %w", err)
	}
	positionsJSON, err := json.Marshal(report.Positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	rebalancesJSON, err := json.Marshal(report.Rebalances)
	if err != nil {
		return fmt.Errorf("failed to marshal rebalances: %w", err)
	}

	sum := report.Summary
	var sharpe decimal.NullDecimal
	if sum.SharpeRatio != nil {
		sharpe = decimal.NewNullDecimal(*sum.SharpeRatio)
	}
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO simulation_runs (
			run_id, created_at, source, tags, strategy, strategy_type,
			initial_capital, net_pnl, total_fees, total_il, time_in_range, max_drawdown,
			sharpe_ratio, rebalance_count, closed_by_strategy,
			pool, summary, snapshots, positions, rebalances
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20);
	`
	_, err = s.db.ExecContext(ctx, query,
		report.RunID, time.Now().UTC(), source, pq.Array(tags), report.Strategy, strategyKind(report.Strategy),
		sum.InitialCapital, sum.NetPnL, sum.TotalFees, sum.TotalIL, sum.TimeInRange, sum.MaxDrawdown,
		sharpe, sum.RebalanceCount, sum.ClosedByStrategy,
		poolJSON, summaryJSON, snapshotsJSON, positionsJSON, rebalancesJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save simulation run %s: %w", report.RunID, err)
	}

	lg := logger.GetForComponent("run_store")
	lg.Info().
		Str("run_id", report.RunID).
		Str("strategy", report.Strategy).
		Str("net_pnl", sum.NetPnL.String()).
		Msg("Simulation run saved to database")
	return nil
}

// GetSimulationRun retrieves a specific run by its ID
func (s *PostgresStore) GetSimulationRun(ctx context.Context, runID string) (*RunRecord, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT
			run_id, created_at, source, tags, strategy,
			pool, summary, snapshots, positions, rebalances
		FROM simulation_runs
		WHERE run_id = $1
	`

	rec := &RunRecord{Report: &types.SimulationReport{}}
	var poolJSON, summaryJSON, snapshotsJSON, positionsJSON, rebalancesJSON []byte
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&rec.RunID, &rec.CreatedAt, &rec.Source, pq.Array(&rec.Tags), &rec.Report.Strategy,
		&poolJSON, &summaryJSON, &snapshotsJSON, &positionsJSON, &rebalancesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to query run by ID: %w", err)
	}

	// Unmarshal JSON fields
	fields := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"pool", poolJSON, &rec.Report.Pool},
		{"summary", summaryJSON, &rec.Report.Summary},
		{"snapshots", snapshotsJSON, &rec.Report.Snapshots},
		{"positions", positionsJSON, &rec.Report.Positions},
		{"rebalances", rebalancesJSON, &rec.Report.Rebalances},
	}
	for _, f := range fields {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s of run %s: %w", f.name, runID, err)
		}
	}
	rec.Report.RunID = rec.RunID
	for _, snap := range rec.Report.Snapshots {
		if snap.Event == types.EventStep {
			rec.Report.PnLHistory = append(rec.Report.PnLHistory, snap.NetPnL)
		}
	}
	return rec, nil
}

// ListSimulationRuns retrieves recent runs, newest first.
func (s *PostgresStore) ListSimulationRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT
			run_id, created_at, source, strategy,
			net_pnl, total_fees, total_il, time_in_range, rebalance_count
		FROM simulation_runs
		ORDER BY created_at DESC, run_id
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query recent runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.CreatedAt, &r.Source, &r.Strategy,
			&r.NetPnL, &r.TotalFees, &r.TotalIL, &r.TimeInRange, &r.RebalanceCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

// strategyKind returns the strategy type of a strategy ID such as "THRESHOLD(...)".
func strategyKind(id string) string {
	kind, _, _ := strings.Cut(id, "(")
	return kind
}
