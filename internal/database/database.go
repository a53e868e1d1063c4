package database

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/gurkanfikretgunak/bio/internal/cache"
	"github.com/gurkanfikretgunak/bio/internal/metrics"
	"github.com/gurkanfikretgunak/bio/internal/remoteconfig"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the parameter table the store reads from.
const Schema = `CREATE TABLE IF NOT EXISTS remote_config (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store serves remote configuration parameters from a Postgres table.
type Store struct {
	db     *pgxpool.Pool
	values *cache.Cache[remoteconfig.Values]
}

var (
	_ remoteconfig.Store     = (*Store)(nil)
	_ remoteconfig.Publisher = (*Store)(nil)
)

func NewStore(ctx context.Context, dbURL string, settings remoteconfig.Settings) (*Store, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute
	config.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Store{
		db:     pool,
		values: cache.NewCache[remoteconfig.Values](settings.MinimumFetchInterval),
	}, nil
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Fetch(ctx context.Context) (remoteconfig.Values, error) {
	if v, ok := s.values.Get(); ok {
		metrics.StoreRequests.WithLabelValues("postgres", "cached").Inc()
		return maps.Clone(*v), nil
	}

	version := s.values.Version()
	rows, err := s.db.Query(ctx, `SELECT key, value FROM remote_config`)
	if err != nil {
		metrics.StoreRequests.WithLabelValues("postgres", "error").Inc()
		return nil, s.wrap(ctx, err)
	}

	values, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var kv [2]string
		err := row.Scan(&kv[0], &kv[1])
		return kv, err
	})
	if err != nil {
		metrics.StoreRequests.WithLabelValues("postgres", "error").Inc()
		return nil, s.wrap(ctx, err)
	}

	out := make(remoteconfig.Values, len(values))
	for _, kv := range values {
		out[kv[0]] = kv[1]
	}

	metrics.StoreRequests.WithLabelValues("postgres", "ok").Inc()
	s.values.SetIfVersion(out, version)
	return maps.Clone(out), nil
}

func (s *Store) Publish(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO remote_config (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`, key, value)
	if err != nil {
		return s.wrap(ctx, err)
	}
	s.values.Invalidate()
	return nil
}

func (s *Store) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w", remoteconfig.ErrUnavailable, err)
}
