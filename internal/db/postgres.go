// internal/db/postgres.go
package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectAttempts = 5

// PostgresDB owns the pool the team, opt-in and mood repositories share.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB opens a pool sized for pair-up fan-out and waits for the
// server to answer, retrying while a freshly started database comes up.
func NewPostgresDB(databaseURL string, maxConns int) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	poolCfg.MaxConnIdleTime = 10 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pg := &PostgresDB{Pool: pool}
	backoff := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = pg.Ping(context.Background())
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			pool.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}
		log.Printf("[DB] ⏳ Waiting for PostgreSQL (attempt %d/%d): %v", attempt, connectAttempts, err)
		time.Sleep(backoff)
		backoff *= 2
	}

	log.Printf("[DB] ✅ Connected to PostgreSQL (max %d conns)", poolCfg.MaxConns)
	return pg, nil
}

// Ping reports whether the pool can reach the server within a few seconds.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

func (db *PostgresDB) Close() {
	if db.Pool == nil {
		return
	}
	db.Pool.Close()
	log.Println("[DB] PostgreSQL pool closed")
}
