package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"trendwatch/internal/series"
	"trendwatch/internal/storage"
)

// ShowOptions configure the show command. A non-nil From switches to a date-range listing
// over episode start days, both ends inclusive.
type ShowOptions struct {
	Limit int
	From  *time.Time
	To    *time.Time
}

// Show prints stored episodes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show episodes")
	}
	defer closeStore()

	records, err := listEpisodes(ctx, store, opts)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no episodes found")
		return nil
	}
	return renderEpisodes(os.Stdout, records)
}

// listEpisodes applies ShowOptions. To is the last start day, inclusive.
func listEpisodes(ctx context.Context, store storage.EpisodeStore, opts ShowOptions) ([]storage.EpisodeRecord, error) {
	if opts.From == nil {
		return store.ListRecentEpisodes(ctx, opts.Limit)
	}
	end := series.Day(time.Now()).AddDate(0, 0, 1)
	if opts.To != nil {
		end = series.Day(*opts.To).AddDate(0, 0, 1)
	}
	return store.ListEpisodesBetween(ctx, series.Day(*opts.From), end)
}

func renderEpisodes(w io.Writer, records []storage.EpisodeRecord) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)
	table.Header("Country", "Start", "End", "Peak", "Peak Value", "Threshold", "Impact", "Quartile", "Terms")

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.CountryCode,
			rec.StartDate.Format(series.DateLayout),
			rec.EndDate.Format(series.DateLayout),
			rec.PeakDate.Format(series.DateLayout),
			strconv.FormatFloat(rec.PeakValue, 'f', 1, 64),
			strconv.FormatFloat(rec.Threshold, 'f', 1, 64),
			rec.Impact.StringFixed(1),
			strconv.Itoa(rec.Quartile),
			sanitizeInline(strings.Join(rec.Terms, ", ")),
		})
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
