package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendwatch/internal/series"
	"trendwatch/internal/window"
)

func testWindow(t *testing.T) window.Window {
	start, err := window.ParseMonth("2023-05")
	require.NoError(t, err)
	return window.Window{Start: start, End: start.AddMonths(7)}
}

func TestNames(t *testing.T) {
	w := testWindow(t)
	assert.Equal(t, "2023-05_multiTimeline.csv", FineName(w.Start))
	assert.Equal(t, "2023-05_coarseMultiTimeline.csv", CoarseName(w.Start))

	d := Dir{Root: "data"}
	assert.Equal(t, filepath.Join("data", "IR", "2023-05_coarseMultiTimeline.csv"), d.Path("ir", w, window.Coarse))
}

func TestWriteThenExists(t *testing.T) {
	d := Dir{Root: t.TempDir()}
	w := testWindow(t)

	assert.False(t, d.Exists("IR", w, window.Fine))

	s := series.Series{series.Point(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), 12)}
	require.NoError(t, d.Write("IR", w, window.Fine, s))

	assert.True(t, d.Exists("IR", w, window.Fine))
	assert.False(t, d.Exists("IR", w, window.Coarse))

	got, err := d.Read("IR", w, window.Fine)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestEmptyFileIsNotMaterialized(t *testing.T) {
	d := Dir{Root: t.TempDir()}
	w := testWindow(t)

	path := d.Path("TR", w, window.Fine)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	assert.False(t, d.Materialized("TR")(w, window.Fine))
}

func TestMaterializedDrivesAudit(t *testing.T) {
	d := Dir{Root: t.TempDir()}
	req := window.PlanRequest{
		Start:   testWindow(t).Start,
		End:     testWindow(t).Start.AddMonths(20),
		Size:    8,
		Overlap: 2,
		Today:   time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC),
	}
	plan, err := window.Plan(req)
	require.NoError(t, err)

	s := series.Series{series.Point(time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC), 1)}
	for _, w := range plan[1:] {
		require.NoError(t, d.Write("RU", w, window.Coarse, s))
	}

	missing, err := window.Audit("RU", req, d.Materialized("RU"))
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, plan[0].Start, missing[0].Start)
}
