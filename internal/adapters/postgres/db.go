package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// applicationName tags GeoSampler connections in pg_stat_activity.
const applicationName = "geosampler"

// DB is the connection pool behind the grid_sessions store. The API and the
// extractor worker share one database, so both binaries open it; cmd/migrate
// uses it to apply the schema and the readiness probe pings it.
type DB struct {
	Pool *pgxpool.Pool
}

// poolConfig parses dsn and applies the pool size. maxConns <= 0 keeps the
// pgx default. An application_name already in the DSN wins.
func poolConfig(dsn string, maxConns int32) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

// New opens the pool and fails fast when the database is unreachable.
func New(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := poolConfig(dsn, maxConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Ping satisfies the readiness Pinger.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() {
	db.Pool.Close()
}
