package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"trendwatch/internal/artifact"
	"trendwatch/internal/fetcher"
	"trendwatch/internal/ledger"
	"trendwatch/internal/series"
	"trendwatch/internal/sink"
	"trendwatch/internal/spike"
	"trendwatch/internal/storage"
	"trendwatch/internal/window"
)

// Options tune the pipeline.
type Options struct {
	Topic      string
	Size       int
	Overlap    int
	SeriesFrom window.Month
	Workers    int
	// SkipExisting leaves windows whose artifacts are already on disk untouched.
	SkipExisting bool
	Progress     bool
	LockKey      int64
	Countries    []string
}

// Pipeline orchestrates window fetching, coverage audits and episode publishing.
type Pipeline struct {
	opts    Options
	fetcher fetcher.SeriesFetcher
	dir     artifact.Dir
	ledger  *ledger.Ledger
	sink    sink.Sink
	locker  storage.AdvisoryLocker
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs the pipeline. fetch, missing, out and locker may be nil for commands that
// do not need them.
func New(opts Options, fetch fetcher.SeriesFetcher, dir artifact.Dir, missing *ledger.Ledger, out sink.Sink, locker storage.AdvisoryLocker, logger zerolog.Logger) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Pipeline{
		opts:    opts,
		fetcher: fetch,
		dir:     dir,
		ledger:  missing,
		sink:    out,
		locker:  locker,
		logger:  logger.With().Str("component", "pipeline").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Request builds the plan request for [start, end] using the configured window shape.
func (p *Pipeline) Request(start, end window.Month, today time.Time) window.PlanRequest {
	if end.IsZero() {
		end = window.MonthOf(today)
	}
	return window.PlanRequest{
		Start:   start,
		End:     end,
		Size:    p.opts.Size,
		Overlap: p.opts.Overlap,
		Today:   today,
	}
}

// FetchCountry materializes the fine and coarse artifact of every planned window.
// A window that fails is logged and skipped; the joined failures are returned.
func (p *Pipeline) FetchCountry(ctx context.Context, country string, req window.PlanRequest) error {
	if p.fetcher == nil {
		return errors.New("fetcher not configured")
	}
	plan, err := window.Plan(req)
	if err != nil {
		return err
	}

	country = strings.ToUpper(country)
	var errs []error
	for _, w := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.opts.SkipExisting && p.dir.Exists(country, w, window.Fine) && p.dir.Exists(country, w, window.Coarse) {
			continue
		}
		if err := p.fetchWindow(ctx, country, w); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error().Err(err).Str("country", country).Str("window", w.String()).Msg("window fetch failed")
			errs = append(errs, err)
			continue
		}
		p.logger.Debug().Str("country", country).Str("window", w.String()).Bool("terminal", w.Terminal).Msg("window fetched")
	}
	return errors.Join(errs...)
}

func (p *Pipeline) fetchWindow(ctx context.Context, country string, w window.Window) error {
	fine, err := p.fetcher.FetchSeries(ctx, fetcher.Request{
		CountryCode: country,
		Topic:       p.opts.Topic,
		From:        w.Start,
		To:          w.End,
	})
	if err != nil {
		return fmt.Errorf("fine %s: %w", w, err)
	}
	if w.Terminal {
		// the current day is still partial
		fine = fine.DropLast()
	}
	if err := p.dir.Write(country, w, window.Fine, fine); err != nil {
		return fmt.Errorf("write fine %s: %w", w, err)
	}

	coarseFrom := p.opts.SeriesFrom
	if coarseFrom.IsZero() || coarseFrom.After(w.Start) {
		coarseFrom = w.Start
	}
	coarse, err := p.fetcher.FetchSeries(ctx, fetcher.Request{
		CountryCode: country,
		Topic:       p.opts.Topic,
		From:        coarseFrom,
		To:          w.End,
	})
	if err != nil {
		return fmt.Errorf("coarse %s: %w", w, err)
	}
	if err := p.dir.Write(country, w, window.Coarse, coarse); err != nil {
		return fmt.Errorf("write coarse %s: %w", w, err)
	}
	return nil
}

// FetchAll runs FetchCountry for every country on a bounded worker pool.
func (p *Pipeline) FetchAll(ctx context.Context, countries []string, req window.PlanRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return p.forEachCountry(ctx, "fetch", countries, func(ctx context.Context, country string) error {
		return p.FetchCountry(ctx, country, req)
	})
}

// Recollect re-plans and fetches each ledger row's range.
func (p *Pipeline) Recollect(ctx context.Context, targets []window.MissingWindow, today time.Time) error {
	byCountry := make(map[string][]window.MissingWindow)
	countries := make([]string, 0)
	for _, t := range targets {
		if _, ok := byCountry[t.CountryCode]; !ok {
			countries = append(countries, t.CountryCode)
		}
		byCountry[t.CountryCode] = append(byCountry[t.CountryCode], t)
	}

	return p.forEachCountry(ctx, "recollect", countries, func(ctx context.Context, country string) error {
		var errs []error
		for _, t := range byCountry[country] {
			if err := p.FetchCountry(ctx, country, p.Request(t.Start, t.End, today)); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// AuditAll audits every country and appends the gaps to the ledger.
func (p *Pipeline) AuditAll(ctx context.Context, countries []string, req window.PlanRequest) ([]window.MissingWindow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		missing []window.MissingWindow
	)
	err := p.forEachCountry(ctx, "audit", countries, func(ctx context.Context, country string) error {
		country = strings.ToUpper(country)
		gaps, err := window.Audit(country, req, p.dir.Materialized(country))
		if err != nil {
			return err
		}
		if len(gaps) > 0 {
			p.logger.Warn().Str("country", country).Int("missing", len(gaps)).Msg("coverage gaps found")
		}
		if p.ledger != nil {
			if err := p.ledger.Append(gaps); err != nil {
				return fmt.Errorf("append ledger for %s: %w", country, err)
			}
		}
		mu.Lock()
		missing = append(missing, gaps...)
		mu.Unlock()
		return nil
	})

	sort.SliceStable(missing, func(i, j int) bool {
		if missing[i].CountryCode != missing[j].CountryCode {
			return missing[i].CountryCode < missing[j].CountryCode
		}
		return missing[i].Start.Before(missing[j].Start)
	})
	return missing, err
}

// DailyRequest anchors the update window overlap months before yesterday's month.
func (p *Pipeline) DailyRequest(today time.Time) window.PlanRequest {
	yesterday := today.UTC().AddDate(0, 0, -1)
	anchor := window.MonthOf(yesterday).AddMonths(-p.opts.Overlap)
	return p.Request(anchor, window.MonthOf(today.UTC()), today)
}

// DailyUpdate refreshes the most recent windows for every configured country.
func (p *Pipeline) DailyUpdate(ctx context.Context, today time.Time) error {
	if len(p.opts.Countries) == 0 {
		return errors.New("no countries configured")
	}
	return p.FetchAll(ctx, p.opts.Countries, p.DailyRequest(today))
}

// ProcessTick 执行一次定时更新，多实例时由 advisory lock 保证单点执行。
func (p *Pipeline) ProcessTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := p.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		p.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	start := p.now()
	if err := p.DailyUpdate(ctx, bucket); err != nil {
		return err
	}
	p.logger.Info().Time("bucket", bucket).Dur("elapsed", p.now().Sub(start)).Msg("daily update complete")
	return nil
}

// CharacterizeRequest describes one stitched series to characterize.
type CharacterizeRequest struct {
	CountryCode string
	Series      series.Series
	Peaks       []spike.Point
	Threshold   float64
	// Strict aborts on the first consistency fault instead of skipping the peak.
	Strict bool
}

// Characterize builds one episode per peak, ranks them into quartiles and publishes them.
func (p *Pipeline) Characterize(ctx context.Context, req CharacterizeRequest) ([]spike.Episode, error) {
	episodes := make([]spike.Episode, 0, len(req.Peaks))
	for _, peak := range req.Peaks {
		info, err := spike.Characterize(req.Series, peak, req.Threshold)
		if err != nil {
			var cerr *spike.ConsistencyError
			if errors.As(err, &cerr) && !req.Strict {
				p.logger.Error().Err(err).Str("country", req.CountryCode).
					Time("peak", peak.Date).Msg("inconsistent boundary, skipping peak")
				continue
			}
			return nil, fmt.Errorf("characterize %s peak %s: %w", req.CountryCode, peak.Date.Format(series.DateLayout), err)
		}
		episodes = append(episodes, spike.Episode{
			CountryCode: strings.ToUpper(req.CountryCode),
			Topic:       p.opts.Topic,
			Info:        info,
			Impact:      spike.Impact(req.Series, info, spike.GlobalRange),
		})
	}

	spike.AssignQuartiles(episodes)

	if p.sink == nil {
		return episodes, nil
	}
	var errs []error
	for _, ep := range episodes {
		if err := p.sink.Publish(ctx, ep); err != nil {
			p.logger.Error().Err(err).Str("country", ep.CountryCode).Time("start", ep.Start()).Msg("failed to publish episode")
			errs = append(errs, err)
		}
	}
	return episodes, errors.Join(errs...)
}

func (p *Pipeline) forEachCountry(ctx context.Context, label string, countries []string, fn func(context.Context, string) error) error {
	bar := p.newBar(len(countries), label)
	defer bar.Close()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, country := range countries {
		g.Go(func() error {
			err := fn(gctx, country)
			_ = bar.Add(1)
			if err == nil {
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			p.logger.Error().Err(err).Str("country", country).Str("stage", label).Msg("country failed")
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", country, err))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (p *Pipeline) newBar(n int, label string) *progressbar.ProgressBar {
	if p.opts.Progress {
		return progressbar.Default(int64(n), label)
	}
	return progressbar.DefaultSilent(int64(n), label)
}

func (p *Pipeline) acquireLock(ctx context.Context) (func(), bool, error) {
	if p.opts.LockKey == 0 || p.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := p.locker.TryAdvisoryLock(ctx, p.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
