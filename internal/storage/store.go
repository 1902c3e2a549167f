package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"trendwatch/internal/config"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// EpisodeStore persists characterized episodes.
type EpisodeStore interface {
	Init(ctx context.Context) error
	UpsertEpisode(ctx context.Context, rec EpisodeRecord) error
	ListRecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error)
	ListEpisodesBetween(ctx context.Context, from, to time.Time) ([]EpisodeRecord, error)
	Close()
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// NewStore opens the configured episode store. An empty DSN means persistence is disabled
// and returns a nil store.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (EpisodeStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		store, err := NewSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres", "postgresql", "":
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
