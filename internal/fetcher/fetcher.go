package fetcher

import (
	"context"

	"trendwatch/internal/series"
	"trendwatch/internal/window"
)

// Request identifies one graph query.
type Request struct {
	CountryCode string
	Topic       string
	From        window.Month
	To          window.Month
}

// SeriesFetcher retrieves a daily search-interest series for a month range.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, req Request) (series.Series, error)
}
