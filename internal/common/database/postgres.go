// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"policy-monitor/internal/common/config"

	_ "github.com/lib/pq"
)

// Connections sitting idle longer than this are torn down so the pool
// tracks the server-side idle timeout.
const connMaxAge = 5 * time.Minute

// PostgresClient holds the shared connection pool. The registry, the
// catalog resolver, and the submission store all run on this one pool.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool. The connection itself is lazy; callers
// should Ping before trusting it.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(connMaxAge)
	db.SetConnMaxIdleTime(connMaxAge)

	return &PostgresClient{DB: db}, nil
}

// Ping verifies the pool can reach the server. Also serves the health
// endpoint.
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
