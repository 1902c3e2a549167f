package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	createEpisodesSQL = `CREATE TABLE IF NOT EXISTS episodes (
        country_code TEXT        NOT NULL,
        start_date   DATE        NOT NULL,
        end_date     DATE        NOT NULL,
        peak_date    DATE        NOT NULL,
        peak_value   DOUBLE PRECISION NOT NULL,
        threshold    DOUBLE PRECISION NOT NULL,
        local_start  DATE        NOT NULL,
        local_end    DATE        NOT NULL,
        impact       NUMERIC     NOT NULL,
        quartile     INTEGER     NOT NULL DEFAULT 0,
        terms        TEXT[]      NOT NULL DEFAULT '{}',
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (country_code, start_date)
    );`

	upsertEpisodeSQL = `INSERT INTO episodes (
        country_code,
        start_date,
        end_date,
        peak_date,
        peak_value,
        threshold,
        local_start,
        local_end,
        impact,
        quartile,
        terms
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,ARRAY[$11]::text[]
    )
    ON CONFLICT (country_code, start_date) DO UPDATE
    SET
        end_date    = EXCLUDED.end_date,
        peak_date   = EXCLUDED.peak_date,
        peak_value  = EXCLUDED.peak_value,
        threshold   = EXCLUDED.threshold,
        local_start = EXCLUDED.local_start,
        local_end   = EXCLUDED.local_end,
        impact      = EXCLUDED.impact,
        quartile    = EXCLUDED.quartile,
        terms       = CASE
            WHEN $11 = ANY(episodes.terms) THEN episodes.terms
            ELSE array_append(episodes.terms, $11)
        END;`

	listRecentEpisodesSQL = `SELECT
        country_code,
        start_date,
        end_date,
        peak_date,
        peak_value,
        threshold,
        local_start,
        local_end,
        impact::text,
        quartile,
        terms,
        created_at
    FROM episodes
    ORDER BY start_date DESC, country_code
    LIMIT $1;`

	listEpisodesBetweenSQL = `SELECT
        country_code,
        start_date,
        end_date,
        peak_date,
        peak_value,
        threshold,
        local_start,
        local_end,
        impact::text,
        quartile,
        terms,
        created_at
    FROM episodes
    WHERE start_date >= $1
      AND start_date < $2
    ORDER BY start_date, country_code;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// pgxPool is the subset of *pgxpool.Pool the store needs.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type connAcquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// Postgres stores episodes in PostgreSQL.
type Postgres struct {
	pool  pgxPool
	conns connAcquirer
}

// NewPostgres wires a pgx pool into a Postgres store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	if pool == nil {
		return &Postgres{}
	}
	return &Postgres{pool: pool, conns: pool}
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Init creates the episodes table when absent.
func (s *Postgres) Init(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createEpisodesSQL); err != nil {
		return fmt.Errorf("create episodes table: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
// The lock is session scoped, so the acquiring connection is held until unlock.
func (s *Postgres) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if s == nil || s.conns == nil {
		return nil, false, ErrNotConfigured
	}

	conn, err := s.conns.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Postgres) getPool() (pgxPool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertEpisode inserts the episode or refreshes it, appending the topic to terms when new.
func (s *Postgres) UpsertEpisode(ctx context.Context, rec EpisodeRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertEpisodeSQL,
		rec.CountryCode,
		rec.StartDate,
		rec.EndDate,
		rec.PeakDate,
		rec.PeakValue,
		rec.Threshold,
		rec.LocalStart,
		rec.LocalEnd,
		rec.Impact.String(),
		rec.Quartile,
		rec.Topic(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert episode: %w", execErr)
	}
	return nil
}

// ListRecentEpisodes lists the most recent episodes ordered by descending start date.
func (s *Postgres) ListRecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEpisodesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent episodes: %w", queryErr)
	}
	return collectEpisodes(rows)
}

// ListEpisodesBetween lists episodes starting in [from, to).
func (s *Postgres) ListEpisodesBetween(ctx context.Context, from, to time.Time) ([]EpisodeRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEpisodesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list episodes between: %w", queryErr)
	}
	return collectEpisodes(rows)
}

func collectEpisodes(rows pgx.Rows) ([]EpisodeRecord, error) {
	defer rows.Close()

	records := make([]EpisodeRecord, 0)
	for rows.Next() {
		var (
			rec       EpisodeRecord
			impactStr string
		)
		if err := rows.Scan(
			&rec.CountryCode,
			&rec.StartDate,
			&rec.EndDate,
			&rec.PeakDate,
			&rec.PeakValue,
			&rec.Threshold,
			&rec.LocalStart,
			&rec.LocalEnd,
			&impactStr,
			&rec.Quartile,
			&rec.Terms,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		impact, err := decimal.NewFromString(impactStr)
		if err != nil {
			return nil, fmt.Errorf("parse impact: %w", err)
		}
		rec.Impact = impact
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var (
	_ EpisodeStore   = (*Postgres)(nil)
	_ AdvisoryLocker = (*Postgres)(nil)
)
