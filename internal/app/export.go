package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"trendwatch/internal/series"
	"trendwatch/internal/spike"
)

// ExportOptions hold parameters for exporting a series with its episodes.
type ExportOptions struct {
	SeriesPath  string
	CountryCode string
	Peaks       []string
	Threshold   float64
	From        *time.Time
	To          *time.Time
	PNGPath     string
	CSVPath     string
}

// Export renders a series as CSV and/or PNG. When a threshold is given the chart carries the
// threshold line and the boundary markers of every peak.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.SeriesPath == "" {
		return errors.New("--series is required")
	}

	s, err := series.ReadFile(opts.SeriesPath)
	if err != nil {
		return err
	}
	if len(s) == 0 {
		a.Logger.Info().Str("path", opts.SeriesPath).Msg("series is empty")
		return nil
	}
	full := s
	if opts.From != nil || opts.To != nil {
		from, to := s[0].Date, s[len(s)-1].Date
		if opts.From != nil {
			from = series.Day(*opts.From)
		}
		if opts.To != nil {
			to = series.Day(*opts.To)
		}
		if to.Before(from) {
			return errors.New("from must not be after to")
		}
		s = s.Between(from, to)
	}
	if len(s) == 0 {
		a.Logger.Info().Msg("no samples in export window")
		return nil
	}

	var infos []spike.Info
	if opts.Threshold > 0 {
		peaks, err := resolvePeaks(full, opts.Peaks)
		if err != nil {
			return err
		}
		for _, peak := range peaks {
			info, err := spike.Characterize(full, peak, opts.Threshold)
			if err != nil {
				a.Logger.Error().Err(err).Time("peak", peak.Date).Msg("skip peak markers")
				continue
			}
			infos = append(infos, info)
		}
	}

	a.Logger.Info().Int("samples", len(s)).Int("episodes", len(infos)).Msg("exporting series")

	if opts.CSVPath != "" {
		if err := series.WriteFile(opts.CSVPath, s); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		title := strings.ToUpper(opts.CountryCode)
		if err := a.writeSeriesPNG(opts.PNGPath, title, s, opts.Threshold, infos); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) writeSeriesPNG(path, title string, s series.Series, threshold float64, infos []spike.Info) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(s))
	y := make([]float64, 0, len(s))
	for _, sample := range s {
		if !sample.Present {
			continue
		}
		x = append(x, sample.Date)
		y = append(y, sample.Value)
	}
	if len(x) < 2 {
		return fmt.Errorf("need at least two present samples to plot, got %d", len(x))
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Title:  title,
		Width:  a.Config.Export.Width,
		Height: a.Config.Export.Height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Search interest",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Interest",
				XValues: x,
				YValues: y,
			},
		},
	}

	if threshold > 0 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Threshold",
			XValues: []time.Time{x[0], x[len(x)-1]},
			YValues: []float64{threshold, threshold},
			Style: chart.Style{
				StrokeColor:     chart.ColorRed,
				StrokeDashArray: []float64{5, 5},
			},
		})
	}

	if len(infos) > 0 {
		var bx []time.Time
		var by []float64
		for _, info := range infos {
			for _, p := range []spike.Point{info.GlobalLeft, info.LocalLeft, info.Peak, info.LocalRight, info.GlobalRight} {
				bx = append(bx, p.Date)
				by = append(by, p.Value)
			}
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Boundaries",
			XValues: bx,
			YValues: by,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    chart.ColorOrange,
			},
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
