package artifact

import (
	"os"
	"path/filepath"
	"strings"

	"trendwatch/internal/series"
	"trendwatch/internal/window"
)

const (
	fineSuffix   = "_multiTimeline.csv"
	coarseSuffix = "_coarseMultiTimeline.csv"
)

// FineName is the file name of the window-range series starting in m.
func FineName(m window.Month) string { return m.String() + fineSuffix }

// CoarseName is the file name of the series-start-to-window-end series for the window starting in m.
func CoarseName(m window.Month) string { return m.String() + coarseSuffix }

// Dir lays out per-country artifact files under a root directory.
type Dir struct {
	Root string
}

// CountryDir returns the directory holding one country's artifacts.
func (d Dir) CountryDir(country string) string {
	return filepath.Join(d.Root, strings.ToUpper(country))
}

// Path returns where the artifact of the given kind lives.
func (d Dir) Path(country string, w window.Window, kind window.ArtifactKind) string {
	name := FineName(w.Start)
	if kind == window.Coarse {
		name = CoarseName(w.Start)
	}
	return filepath.Join(d.CountryDir(country), name)
}

// Exists reports whether the artifact is present and non-empty.
func (d Dir) Exists(country string, w window.Window, kind window.ArtifactKind) bool {
	info, err := os.Stat(d.Path(country, w, kind))
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Materialized binds Exists to a country for window.Audit.
func (d Dir) Materialized(country string) window.Materialized {
	return func(w window.Window, kind window.ArtifactKind) bool {
		return d.Exists(country, w, kind)
	}
}

// Write stores a fetched series for the window.
func (d Dir) Write(country string, w window.Window, kind window.ArtifactKind, s series.Series) error {
	return series.WriteFile(d.Path(country, w, kind), s)
}

// Read loads a stored series; a missing file yields os.ErrNotExist.
func (d Dir) Read(country string, w window.Window, kind window.ArtifactKind) (series.Series, error) {
	return series.ReadFile(d.Path(country, w, kind))
}
