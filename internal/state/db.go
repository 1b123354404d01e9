package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN returns the lib/pq key/value connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB initializes the global database connection pool.
func InitDB(cfg DBConfig) error {
	db, err := Open(cfg.DSN())
	if err != nil {
		return err
	}
	DB = db
	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// Open opens and pings a pool for dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS simulation_runs (
		run_id VARCHAR(64) PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		source VARCHAR(32) NOT NULL,
		tags TEXT[] NOT NULL DEFAULT '{}',
		strategy VARCHAR(255) NOT NULL,
		strategy_type VARCHAR(32) NOT NULL,

		-- Summary columns for listing and analytics
		initial_capital DECIMAL(38, 18) NOT NULL,
		net_pnl DECIMAL(38, 18) NOT NULL,
		total_fees DECIMAL(38, 18) NOT NULL,
		total_il DECIMAL(38, 18) NOT NULL,
		time_in_range DECIMAL(20, 18) NOT NULL,
		max_drawdown DECIMAL(20, 18) NOT NULL,
		sharpe_ratio DECIMAL(38, 18),
		rebalance_count INTEGER NOT NULL,
		closed_by_strategy BOOLEAN NOT NULL DEFAULT FALSE,

		-- Full report
		pool JSONB NOT NULL,
		summary JSONB NOT NULL,
		snapshots JSONB NOT NULL,
		positions JSONB NOT NULL,
		rebalances JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_simulation_runs_created ON simulation_runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_simulation_runs_strategy_type ON simulation_runs(strategy_type);

	CREATE TABLE IF NOT EXISTS optimization_runs (
		optimization_id VARCHAR(64) PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		source VARCHAR(32) NOT NULL,
		cycle_number INTEGER,
		objective VARCHAR(64) NOT NULL,
		grid_size INTEGER NOT NULL,
		ranked_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		pending_count INTEGER NOT NULL,
		duration_ms BIGINT NOT NULL,
		best_key TEXT,
		best_score DECIMAL(38, 18),
		result JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_optimization_runs_created ON optimization_runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_optimization_runs_cycle ON optimization_runs(cycle_number DESC);

	-- Cycle counter table for persistent scheduler cycle tracking
	CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	-- Insert initial row if it doesn't exist
	INSERT INTO cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// DropTablesSQL removes every table EnsureSchema creates.
const DropTablesSQL = `
	DROP TABLE IF EXISTS simulation_runs CASCADE;
	DROP TABLE IF EXISTS optimization_runs CASCADE;
	DROP TABLE IF EXISTS cycle_counter CASCADE;
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return ErrNotInitialized
	}
	return ApplySchema(context.Background(), DB)
}

// ApplySchema creates the tables on db. Safe to run multiple times.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
