// Package warehouse adapts a Postgres-compatible warehouse as both a schema
// source (catalog introspection) and a transactional schema sink. Structural
// changes go through DDL; semantic metadata that has no native home rides on
// table and column comments.
package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"semasync/config"
	"semasync/errs"
)

// PlatformName identifies schemas read from or written to the warehouse.
const PlatformName = "postgres"

const serviceName = "warehouse"

// Connect builds a connection pool and verifies it with a ping. The caller
// owns the pool and closes it on shutdown.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := cfg.RequireWarehouse(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, &errs.ConnectionError{Service: serviceName, Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &errs.ConnectionError{Service: serviceName, Err: err}
	}
	return pool, nil
}
