package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/logger"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/optimizer"
	"github.com/shopspring/decimal"
)

// SaveOptimizationRun saves a grid search result and returns its ID. A missing ID is generated.
func (s *PostgresStore) SaveOptimizationRun(ctx context.Context, rec *OptimizationRecord) (string, error) {
	if s.db == nil {
		return "", ErrNotInitialized
	}
	if rec == nil || rec.Result == nil {
		return "", errors.New("optimization result is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal optimization result: %w", err)
	}

	var bestKey sql.NullString
	var bestScore decimal.NullDecimal
	if best, ok := rec.Result.Best(); ok {
		bestKey = sql.NullString{String: best.Key, Valid: true}
		if best.Defined {
			bestScore = decimal.NewNullDecimal(best.Score)
		}
	}
	var cycle sql.NullInt64
	if rec.CycleNumber != nil {
		cycle = sql.NullInt64{Int64: int64(*rec.CycleNumber), Valid: true}
	}

	stmt := `
		INSERT INTO optimization_runs (
			optimization_id, created_at, source, cycle_number,
			objective, grid_size, ranked_count, failed_count, pending_count, duration_ms,
			best_key, best_score, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`
	r := rec.Result
	_, err = s.db.ExecContext(ctx, stmt,
		rec.ID, rec.CreatedAt, rec.Source, cycle,
		string(r.Objective), r.GridSize, len(r.Ranked), len(r.Failed), r.Pending, r.Duration.Milliseconds(),
		bestKey, bestScore, resultJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert optimization run: %w", err)
	}

	lg := logger.GetForComponent("optimization_store")
	lg.Info().
		Str("optimization_id", rec.ID).
		Str("objective", string(r.Objective)).
		Int("grid_size", r.GridSize).
		Str("best", bestKey.String).
		Msg("Saved optimization run")
	return rec.ID, nil
}

// GetOptimizationRun loads a stored grid search result.
func (s *PostgresStore) GetOptimizationRun(ctx context.Context, id string) (*OptimizationRecord, error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	query := `
		SELECT optimization_id, created_at, source, cycle_number, result
		FROM optimization_runs
		WHERE optimization_id = $1
	`
	rec := &OptimizationRecord{Result: &optimizer.Result{}}
	var cycle sql.NullInt64
	var resultJSON []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &cycle, &resultJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: optimization %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to query optimization by ID: %w", err)
	}
	if cycle.Valid {
		n := int(cycle.Int64)
		rec.CycleNumber = &n
	}
	if err := json.Unmarshal(resultJSON, rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal optimization result %s: %w", id, err)
	}
	return rec, nil
}
