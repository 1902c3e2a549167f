package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"trendwatch/internal/series"
	"trendwatch/internal/service"
	"trendwatch/internal/spike"
)

// CharacterizeOptions configure the characterize command.
type CharacterizeOptions struct {
	SeriesPath  string
	CountryCode string
	// Peaks are YYYY-MM-DD dates; empty means the series maximum.
	Peaks     []string
	Threshold float64
	Strict    bool
	// OutPath optionally receives the episodes as CSV.
	OutPath string
	// NoPublish skips the configured sinks.
	NoPublish bool
}

// Characterize measures every peak of a stitched series and publishes the resulting episodes.
func (a *App) Characterize(ctx context.Context, opts CharacterizeOptions) ([]spike.Episode, error) {
	if opts.SeriesPath == "" {
		return nil, errors.New("--series is required")
	}
	if strings.TrimSpace(opts.CountryCode) == "" {
		return nil, errors.New("--country is required")
	}

	s, err := series.ReadFile(opts.SeriesPath)
	if err != nil {
		return nil, err
	}
	peaks, err := resolvePeaks(s, opts.Peaks)
	if err != nil {
		return nil, err
	}

	deps := pipelineDeps{}
	if !opts.NoPublish {
		out, closeSink, err := a.newSink(ctx)
		if err != nil {
			return nil, err
		}
		if closeSink != nil {
			defer closeSink()
		}
		deps.out = out
	}

	pipeline, err := a.newPipeline(service.Options{}, deps)
	if err != nil {
		return nil, err
	}

	episodes, err := pipeline.Characterize(ctx, service.CharacterizeRequest{
		CountryCode: opts.CountryCode,
		Series:      s,
		Peaks:       peaks,
		Threshold:   opts.Threshold,
		Strict:      opts.Strict,
	})
	if err != nil && len(episodes) == 0 {
		return nil, err
	}

	if opts.OutPath != "" {
		if werr := writeEpisodesCSV(opts.OutPath, episodes); werr != nil {
			return episodes, errors.Join(err, werr)
		}
	}

	a.Logger.Info().
		Str("country", strings.ToUpper(opts.CountryCode)).
		Int("peaks", len(peaks)).
		Int("episodes", len(episodes)).
		Msg("characterization complete")
	return episodes, err
}

func resolvePeaks(s series.Series, dates []string) ([]spike.Point, error) {
	if len(dates) == 0 {
		top, ok := s.Max()
		if !ok {
			return nil, errors.New("series has no present samples")
		}
		return []spike.Point{{Date: top.Date, Value: top.Value}}, nil
	}

	peaks := make([]spike.Point, 0, len(dates))
	for _, raw := range dates {
		date, err := series.ParseDate(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		sample, ok := s.Lookup(date)
		if !ok || !sample.Present {
			return nil, fmt.Errorf("peak %s has no sample in the series", date.Format(series.DateLayout))
		}
		peaks = append(peaks, spike.Point{Date: sample.Date, Value: sample.Value})
	}
	return peaks, nil
}

func writeEpisodesCSV(path string, episodes []spike.Episode) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"country_code", "topic", "peak_date", "peak_value", "threshold",
		"local_start", "local_end", "start_date", "end_date", "impact", "quartile",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, ep := range episodes {
		info := ep.Info
		record := []string{
			ep.CountryCode,
			ep.Topic,
			info.Peak.Date.Format(series.DateLayout),
			strconv.FormatFloat(info.Peak.Value, 'f', -1, 64),
			strconv.FormatFloat(info.Threshold, 'f', -1, 64),
			info.LocalLeft.Date.Format(series.DateLayout),
			info.LocalRight.Date.Format(series.DateLayout),
			ep.Start().Format(series.DateLayout),
			ep.End().Format(series.DateLayout),
			ep.Impact.String(),
			strconv.Itoa(ep.Quartile),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
