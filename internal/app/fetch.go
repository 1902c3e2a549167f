package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"trendwatch/internal/ledger"
	"trendwatch/internal/service"
	"trendwatch/internal/window"
)

// FetchOptions configure the fetch command. Exactly one mode applies: TargetWindows re-collects
// ledger rows, Daily refreshes the most recent windows, otherwise the full range is fetched.
type FetchOptions struct {
	Countries     []string
	CountriesFile string
	TargetWindows string
	Daily         bool
	StartMonth    string
	EndMonth      string
	Workers       int
	SkipExisting  bool
	Progress      bool
}

// AuditOptions configure the audit command.
type AuditOptions struct {
	Countries     []string
	CountriesFile string
	StartMonth    string
	EndMonth      string
	Workers       int
}

// Fetch downloads and writes window artifacts.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) error {
	seriesFrom, err := a.monthOrDefault(opts.StartMonth, a.Config.Window.StartMonth)
	if err != nil {
		return err
	}

	pipeline, err := a.newPipeline(service.Options{
		SeriesFrom:   seriesFrom,
		Workers:      opts.Workers,
		SkipExisting: opts.SkipExisting,
		Progress:     opts.Progress,
	}, pipelineDeps{fetch: a.newFetcher()})
	if err != nil {
		return err
	}

	today := time.Now().UTC()

	if opts.TargetWindows != "" {
		targets, err := ledger.Read(opts.TargetWindows)
		if err != nil {
			return fmt.Errorf("read target windows: %w", err)
		}
		if len(targets) == 0 {
			a.Logger.Info().Str("path", opts.TargetWindows).Msg("no target windows to recollect")
			return nil
		}
		a.Logger.Info().Int("targets", len(targets)).Msg("recollecting missing windows")
		return pipeline.Recollect(ctx, targets, today)
	}

	countries, err := a.resolveCountries(opts.Countries, opts.CountriesFile)
	if err != nil {
		return err
	}

	req := pipeline.DailyRequest(today)
	if !opts.Daily {
		end, err := a.monthOrDefault(opts.EndMonth, a.Config.Window.EndMonth)
		if err != nil {
			return err
		}
		req = pipeline.Request(seriesFrom, end, today)
	}

	a.Logger.Info().
		Int("countries", len(countries)).
		Str("start", req.Start.String()).
		Str("end", req.End.String()).
		Bool("daily", opts.Daily).
		Msg("fetching windows")
	return pipeline.FetchAll(ctx, countries, req)
}

// Audit reports every planned window lacking an artifact and appends it to the ledger.
func (a *App) Audit(ctx context.Context, opts AuditOptions) ([]window.MissingWindow, error) {
	countries, err := a.resolveCountries(opts.Countries, opts.CountriesFile)
	if err != nil {
		return nil, err
	}
	start, err := a.monthOrDefault(opts.StartMonth, a.Config.Window.StartMonth)
	if err != nil {
		return nil, err
	}
	end, err := a.monthOrDefault(opts.EndMonth, a.Config.Window.EndMonth)
	if err != nil {
		return nil, err
	}

	pipeline, err := a.newPipeline(service.Options{SeriesFrom: start, Workers: opts.Workers}, pipelineDeps{})
	if err != nil {
		return nil, err
	}

	missing, err := pipeline.AuditAll(ctx, countries, pipeline.Request(start, end, time.Now().UTC()))
	if err != nil {
		return missing, err
	}
	a.Logger.Info().
		Int("countries", len(countries)).
		Int("missing", len(missing)).
		Str("ledger", a.Config.Data.MissingPath).
		Msg("audit complete")
	return missing, nil
}

// monthOrDefault parses raw, falling back to def. Both empty yields the zero month.
func (a *App) monthOrDefault(raw, def string) (window.Month, error) {
	if strings.TrimSpace(raw) == "" {
		raw = def
	}
	if strings.TrimSpace(raw) == "" {
		return window.Month{}, nil
	}
	return window.ParseMonth(strings.TrimSpace(raw))
}

func (a *App) resolveCountries(flagged []string, path string) ([]string, error) {
	var countries []string
	switch {
	case len(flagged) > 0:
		countries = flagged
	case path != "":
		fromFile, err := readCountriesFile(path)
		if err != nil {
			return nil, err
		}
		countries = fromFile
	default:
		countries = a.Config.Data.Countries
	}
	countries = normalizeCountries(countries)
	if len(countries) == 0 {
		return nil, errors.New("no countries given; use --countries, --countries-file or data.countries")
	}
	return countries, nil
}

func normalizeCountries(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// readCountriesFile reads the country_code column of a CSV file.
func readCountriesFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	col := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), "country_code") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s: missing country_code column", path)
	}

	var countries []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if col < len(record) {
			countries = append(countries, record[col])
		}
	}
	return countries, nil
}
