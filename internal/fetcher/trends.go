package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"trendwatch/internal/series"
)

const graphPath = "/trends/v1beta/graph"

// ErrRateLimited marks an HTTP 429 from the trends API.
var ErrRateLimited = errors.New("trends api: quota exhausted")

// TrendsOptions parameterise the trends graph fetcher.
type TrendsOptions struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	Attempts      int
	RetryDelay    time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// Trends fetches daily series from the trends graph endpoint.
type Trends struct {
	opts    TrendsOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewTrends constructs a trends fetcher.
func NewTrends(opts TrendsOptions, logger zerolog.Logger) *Trends {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 61 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://www.googleapis.com"
	}

	return &Trends{
		opts:    opts,
		logger:  logger.With().Str("component", "trends_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		baseURL: baseURL,
		sleep:   sleepContext,
	}
}

// FetchSeries queries the graph endpoint, retrying up to Attempts times.
// A 429 waits (attempt+1) × RetryDelay before the next try; other failures retry immediately.
func (t *Trends) FetchSeries(ctx context.Context, req Request) (series.Series, error) {
	if req.CountryCode == "" || req.Topic == "" {
		return nil, errors.New("country code and topic required")
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("invalid range %s..%s", req.From, req.To)
	}

	terms := cacheBustedTerms(req.Topic)

	var lastErr error
	for attempt := 0; attempt < t.opts.Attempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		s, err := t.fetchOnce(ctx, req, terms)
		if err == nil {
			return s, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		log := t.logger.Warn().Err(err).
			Str("country", req.CountryCode).
			Str("from", req.From.String()).
			Str("to", req.To.String()).
			Int("attempt", attempt+1)

		if errors.Is(err, ErrRateLimited) {
			delay := time.Duration(attempt+1) * t.opts.RetryDelay
			log.Dur("delay", delay).Msg("rate limited, backing off")
			if err := t.sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		log.Msg("graph request failed")
	}

	t.logger.Error().Err(lastErr).
		Str("country", req.CountryCode).
		Str("from", req.From.String()).
		Str("to", req.To.String()).
		Msg("unable to retrieve series")
	return nil, fmt.Errorf("fetch %s %s..%s after %d attempts: %w",
		req.CountryCode, req.From, req.To, t.opts.Attempts, lastErr)
}

func (t *Trends) fetchOnce(ctx context.Context, req Request, terms string) (series.Series, error) {
	query := url.Values{}
	query.Set("terms", terms)
	query.Set("restrictions.startDate", req.From.String())
	query.Set("restrictions.endDate", req.To.String())
	query.Set("restrictions.geo", strings.ToUpper(req.CountryCode))
	if t.opts.APIKey != "" {
		query.Set("key", t.opts.APIKey)
	}

	endpoint := t.baseURL + graphPath + "?" + query.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(t.opts.UserAgent); ua != "" {
		httpReq.Header.Set("User-Agent", ua)
	} else {
		httpReq.Header.Set("User-Agent", "trendwatch/1.0")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	return parseGraph(payload)
}

type graphResponse struct {
	Lines []struct {
		Term   string `json:"term"`
		Points []struct {
			Date  string   `json:"date"`
			Value *float64 `json:"value"`
		} `json:"points"`
	} `json:"lines"`
}

// parseGraph reads lines[0].points; an empty response is an empty series.
func parseGraph(payload []byte) (series.Series, error) {
	var res graphResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode graph response: %w", err)
	}
	if len(res.Lines) == 0 {
		return series.Series{}, nil
	}

	points := res.Lines[0].Points
	out := make(series.Series, 0, len(points))
	for _, p := range points {
		date, err := series.ParseDate(p.Date)
		if err != nil {
			return nil, err
		}
		if p.Value == nil {
			out = append(out, series.Gap(date))
			continue
		}
		out = append(out, series.Point(date, *p.Value))
	}
	out.Sort()
	return out, nil
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w (%d)", ErrRateLimited, status)
	}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w (%d)", ErrRateLimited, status)
		}
		if apiErr.Error.Message != "" {
			return fmt.Errorf("trends api error (%d): %s", status, apiErr.Error.Message)
		}
		if apiErr.Error.Status != "" {
			return fmt.Errorf("trends api error (%d): %s", status, apiErr.Error.Status)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("trends api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("trends api error (%d)", status)
}

// cacheBustedTerms pads the topic with a random token so the API cannot serve a cached sample.
func cacheBustedTerms(topic string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	return fmt.Sprintf("%s + %s + %s", topic, token, strings.ToUpper(topic))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ SeriesFetcher = (*Trends)(nil)
