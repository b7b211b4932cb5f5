package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/observability"
)

// Compile-time check that PostgresStore implements UserStore.
var _ UserStore = (*PostgresStore)(nil)

// PostgresStore persists user containers in a single table keyed by the
// identity cache key, with the container as a JSONB column.
//
// Schema:
//
//	CREATE TABLE user_containers (
//	    cache_key  TEXT PRIMARY KEY,
//	    container  JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStore struct {
	logger *slog.Logger
	db     *pgxpool.Pool
}

// NewPostgresStore creates a repository instance over the given pool.
func NewPostgresStore(log *slog.Logger, db *pgxpool.Pool) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{logger: log, db: db}
}

// Load fetches and decodes the container for key. Absent rows and
// undecodable payloads both return (nil, nil).
func (s *PostgresStore) Load(ctx context.Context, key string) (*Container, error) {
	query := `SELECT container FROM user_containers WHERE cache_key = $1`

	var raw []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		observability.StoreOps.WithLabelValues("postgres", "load", "miss").Inc()
		return nil, nil
	}
	if err != nil {
		observability.StoreOps.WithLabelValues("postgres", "load", "error").Inc()
		return nil, fmt.Errorf("failed to load user container %q: %w", key, err)
	}

	c := decodeContainer(raw)
	if c == nil {
		s.logger.Warn("discarding undecodable user container", slog.String("key", key))
		observability.StoreOps.WithLabelValues("postgres", "load", "corrupt").Inc()
		return nil, nil
	}

	observability.StoreOps.WithLabelValues("postgres", "load", "ok").Inc()
	return c, nil
}

// Save upserts the container under key.
func (s *PostgresStore) Save(ctx context.Context, key string, c *Container) error {
	raw, err := encodeContainer(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_containers (cache_key, container, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key)
		DO UPDATE SET container = EXCLUDED.container, updated_at = now()`

	if _, err := s.db.Exec(ctx, query, key, raw); err != nil {
		observability.StoreOps.WithLabelValues("postgres", "save", "error").Inc()
		return fmt.Errorf("failed to save user container %q: %w", key, err)
	}

	observability.StoreOps.WithLabelValues("postgres", "save", "ok").Inc()
	return nil
}

// Delete removes the container row for key. Deleting an absent key is a
// no-op.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_containers WHERE cache_key = $1`, key); err != nil {
		observability.StoreOps.WithLabelValues("postgres", "delete", "error").Inc()
		return fmt.Errorf("failed to delete user container %q: %w", key, err)
	}
	observability.StoreOps.WithLabelValues("postgres", "delete", "ok").Inc()
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// Name identifies this component in readiness probes.
func (s *PostgresStore) Name() string { return "postgres" }

// Check verifies database connectivity.
func (s *PostgresStore) Check(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// NewPostgresPool initializes a PostgreSQL connection pool from
// configuration and verifies connectivity before returning it.
func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config cannot be nil")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	initCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
