package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ultra-signal-engine/config"
	"ultra-signal-engine/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  *logging.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		Pool: pool,
		log:  logging.WithComponent("database"),
	}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations creates the schema if it does not exist
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signal_history (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			side TEXT NOT NULL,
			final_confidence DOUBLE PRECISION NOT NULL,
			risk_level TEXT NOT NULL,
			entry DOUBLE PRECISION NOT NULL DEFAULT 0,
			stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			rr_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			dominance_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			sources_used JSONB NOT NULL DEFAULT '[]',
			sub_scores JSONB NOT NULL DEFAULT '{}',
			reasoning JSONB NOT NULL DEFAULT '[]',
			change_reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_symbol ON signal_history(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_timeframe ON signal_history(timeframe)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_created_at ON signal_history(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_history_symbol_timeframe ON signal_history(symbol, timeframe, created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info("Database migrations completed", "count", len(migrations))
	return nil
}
