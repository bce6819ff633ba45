// Package storage keeps the connection journal of the device in
// PostgreSQL.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "openprofinetdevice"

type PostgresClient struct {
	pool *pgxpool.Pool
}

// NewPostgresClient opens the pool and waits at most cfg.ConnectTimeout
// for the first successful ping.
func NewPostgresClient(ctx context.Context, cfg config.DatabaseConfig) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &PostgresClient{pool: pool}, nil
}

func (p *PostgresClient) Close() {
	p.pool.Close()
}

// Pool satisfies DB for the journal.
func (p *PostgresClient) Pool() *pgxpool.Pool {
	return p.pool
}
