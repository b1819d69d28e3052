// Package storage provides database connections and repository
// implementations for the fund ledger: Postgres for the authoritative
// journal and lot history, ClickHouse for the decoded-transaction
// archive, and Redis for the reference-price cache.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fund-ledger/internal/config"
)

const connectTimeout = 10 * time.Second

// PostgresDB owns the pgx connection pool shared by the journal and
// ledger repositories.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB opens a pool against the configured database and
// verifies it with a ping before returning.
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func postgresDSN(cfg *config.PostgresConfig) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.MaxConnections,
	)
}

// Pool exposes the underlying pool to the repositories.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close releases the connection pool.
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
