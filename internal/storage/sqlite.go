package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const sqliteDateLayout = "2006-01-02"

const (
	sqliteUpsertEpisodeSQL = `INSERT INTO episodes (
		country_code, start_date, end_date, peak_date, peak_value, threshold,
		local_start, local_end, impact, quartile, terms, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (country_code, start_date) DO UPDATE SET
		end_date    = excluded.end_date,
		peak_date   = excluded.peak_date,
		peak_value  = excluded.peak_value,
		threshold   = excluded.threshold,
		local_start = excluded.local_start,
		local_end   = excluded.local_end,
		impact      = excluded.impact,
		quartile    = excluded.quartile,
		terms       = CASE
			WHEN excluded.terms = '' THEN episodes.terms
			WHEN episodes.terms = '' THEN excluded.terms
			WHEN instr(',' || episodes.terms || ',', ',' || excluded.terms || ',') > 0 THEN episodes.terms
			ELSE episodes.terms || ',' || excluded.terms
		END`

	sqliteSelectEpisodesSQL = `SELECT country_code, start_date, end_date, peak_date, peak_value, threshold,
		local_start, local_end, impact, quartile, terms, created_at
	FROM episodes`
)

// SQLite stores episodes in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (but does not initialise) a SQLite episode store.
func NewSQLite(dsn string) (*SQLite, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:trendwatch.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Init creates the episodes table when absent.
func (s *SQLite) Init(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConfigured
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			country_code TEXT NOT NULL,
			start_date   TEXT NOT NULL,
			end_date     TEXT NOT NULL,
			peak_date    TEXT NOT NULL,
			peak_value   REAL NOT NULL,
			threshold    REAL NOT NULL,
			local_start  TEXT NOT NULL,
			local_end    TEXT NOT NULL,
			impact       TEXT NOT NULL,
			quartile     INTEGER NOT NULL DEFAULT 0,
			terms        TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			PRIMARY KEY (country_code, start_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_start ON episodes(start_date)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// UpsertEpisode inserts the episode or refreshes it, appending the topic to terms when new.
func (s *SQLite) UpsertEpisode(ctx context.Context, rec EpisodeRecord) error {
	if s.db == nil {
		return ErrNotConfigured
	}
	_, err := s.db.ExecContext(ctx, sqliteUpsertEpisodeSQL,
		rec.CountryCode,
		formatDay(rec.StartDate),
		formatDay(rec.EndDate),
		formatDay(rec.PeakDate),
		rec.PeakValue,
		rec.Threshold,
		formatDay(rec.LocalStart),
		formatDay(rec.LocalEnd),
		rec.Impact.String(),
		rec.Quartile,
		rec.Topic(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert episode: %w", err)
	}
	return nil
}

// ListRecentEpisodes lists the most recent episodes ordered by descending start date.
func (s *SQLite) ListRecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error) {
	if s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx,
		sqliteSelectEpisodesSQL+` ORDER BY start_date DESC, country_code LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent episodes: %w", err)
	}
	return scanSQLiteEpisodes(rows)
}

// ListEpisodesBetween lists episodes starting in [from, to).
func (s *SQLite) ListEpisodesBetween(ctx context.Context, from, to time.Time) ([]EpisodeRecord, error) {
	if s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx,
		sqliteSelectEpisodesSQL+` WHERE start_date >= ? AND start_date < ? ORDER BY start_date, country_code`,
		formatDay(from), formatDay(to))
	if err != nil {
		return nil, fmt.Errorf("list episodes between: %w", err)
	}
	return scanSQLiteEpisodes(rows)
}

func scanSQLiteEpisodes(rows *sql.Rows) ([]EpisodeRecord, error) {
	defer rows.Close()

	out := make([]EpisodeRecord, 0)
	for rows.Next() {
		var (
			rec                                    EpisodeRecord
			start, end, peak, localStart, localEnd string
			impact, terms, created                 string
		)
		if err := rows.Scan(&rec.CountryCode, &start, &end, &peak, &rec.PeakValue, &rec.Threshold,
			&localStart, &localEnd, &impact, &rec.Quartile, &terms, &created); err != nil {
			return nil, err
		}

		var err error
		for _, f := range []struct {
			raw string
			dst *time.Time
		}{
			{start, &rec.StartDate},
			{end, &rec.EndDate},
			{peak, &rec.PeakDate},
			{localStart, &rec.LocalStart},
			{localEnd, &rec.LocalEnd},
		} {
			if *f.dst, err = time.Parse(sqliteDateLayout, f.raw); err != nil {
				return nil, fmt.Errorf("parse stored date %q: %w", f.raw, err)
			}
		}
		if rec.Impact, err = decimal.NewFromString(impact); err != nil {
			return nil, fmt.Errorf("parse impact: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.Terms = []string{}
		if terms != "" {
			rec.Terms = strings.Split(terms, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatDay(t time.Time) string {
	return t.UTC().Format(sqliteDateLayout)
}

var _ EpisodeStore = (*SQLite)(nil)
