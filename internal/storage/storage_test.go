package storage

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwatch/internal/config"
	"trendwatch/internal/spike"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecord(topic string) EpisodeRecord {
	peak := spike.Point{Date: day(2022, 9, 21), Value: 100}
	info, _ := spike.NewInfo(peak, 20,
		spike.Point{Date: day(2022, 9, 19), Value: 30},
		spike.Point{Date: day(2022, 9, 10), Value: 18},
		spike.Point{Date: day(2022, 9, 25), Value: 40},
		spike.Point{Date: day(2022, 10, 4), Value: 15},
	)
	return RecordFromEpisode(spike.Episode{
		CountryCode: "IR",
		Topic:       topic,
		Info:        info,
		Impact:      decimal.RequireFromString("412.5"),
		Quartile:    3,
	})
}

func TestRecordFromEpisode(t *testing.T) {
	rec := sampleRecord("/m/0ctcb2")

	assert.Equal(t, day(2022, 9, 10), rec.StartDate)
	assert.Equal(t, day(2022, 10, 4), rec.EndDate)
	assert.Equal(t, day(2022, 9, 19), rec.LocalStart)
	assert.Equal(t, day(2022, 9, 25), rec.LocalEnd)
	assert.Equal(t, []string{"/m/0ctcb2"}, rec.Terms)
	assert.Equal(t, "/m/0ctcb2", rec.Topic())
}

func TestPostgresUpsertEpisode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := sampleRecord("/m/0ctcb2")
	mock.ExpectExec(regexp.QuoteMeta(upsertEpisodeSQL)).
		WithArgs("IR", rec.StartDate, rec.EndDate, rec.PeakDate, 100.0, 20.0,
			rec.LocalStart, rec.LocalEnd, "412.5", 3, "/m/0ctcb2").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := &Postgres{pool: mock}
	require.NoError(t, store.UpsertEpisode(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertEpisodeWrapsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("boom")
	mock.ExpectExec(regexp.QuoteMeta(upsertEpisodeSQL)).WillReturnError(boom)

	store := &Postgres{pool: mock}
	err = store.UpsertEpisode(context.Background(), sampleRecord("x"))
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRecentEpisodes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	created := time.Date(2022, 10, 5, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"country_code", "start_date", "end_date", "peak_date", "peak_value", "threshold",
		"local_start", "local_end", "impact", "quartile", "terms", "created_at",
	}).AddRow("IR", day(2022, 9, 10), day(2022, 10, 4), day(2022, 9, 21), 100.0, 20.0,
		day(2022, 9, 19), day(2022, 9, 25), "412.5", 3, []string{"a", "b"}, created)

	mock.ExpectQuery(regexp.QuoteMeta(listRecentEpisodesSQL)).WithArgs(5).WillReturnRows(rows)

	store := &Postgres{pool: mock}
	got, err := store.ListRecentEpisodes(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("412.5").Equal(got[0].Impact))
	assert.Equal(t, []string{"a", "b"}, got[0].Terms)
	assert.Equal(t, created, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresNotConfigured(t *testing.T) {
	store := NewPostgres(nil)
	assert.ErrorIs(t, store.UpsertEpisode(context.Background(), EpisodeRecord{}), ErrNotConfigured)

	_, _, err := store.TryAdvisoryLock(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewStoreWithoutDSN(t *testing.T) {
	store, err := NewStore(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = NewStore(context.Background(), config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	store, err := NewSQLite("file:" + filepath.Join(t.TempDir(), "episodes.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestSQLiteUpsertAppendsTerms(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEpisode(ctx, sampleRecord("/m/0ctcb2")))
	require.NoError(t, store.UpsertEpisode(ctx, sampleRecord("/m/0ctcb2")))

	second := sampleRecord("/m/012t0g")
	second.EndDate = day(2022, 10, 6)
	second.Quartile = 2
	require.NoError(t, store.UpsertEpisode(ctx, second))

	got, err := store.ListRecentEpisodes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"/m/0ctcb2", "/m/012t0g"}, got[0].Terms)
	assert.Equal(t, day(2022, 10, 6), got[0].EndDate)
	assert.Equal(t, 2, got[0].Quartile)
	assert.True(t, decimal.RequireFromString("412.5").Equal(got[0].Impact))
}

func TestSQLiteListEpisodesBetween(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()

	early := sampleRecord("a")
	late := sampleRecord("a")
	late.CountryCode = "TR"
	late.StartDate = day(2023, 3, 1)
	require.NoError(t, store.UpsertEpisode(ctx, early))
	require.NoError(t, store.UpsertEpisode(ctx, late))

	got, err := store.ListEpisodesBetween(ctx, day(2023, 1, 1), day(2024, 1, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TR", got[0].CountryCode)

	recent, err := store.ListRecentEpisodes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "TR", recent[0].CountryCode)
}
