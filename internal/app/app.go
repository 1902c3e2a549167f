package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"trendwatch/internal/artifact"
	"trendwatch/internal/config"
	"trendwatch/internal/fetcher"
	"trendwatch/internal/ledger"
	"trendwatch/internal/scheduler"
	"trendwatch/internal/service"
	"trendwatch/internal/sink"
	"trendwatch/internal/storage"
	"trendwatch/internal/window"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.SeriesFetcher {
	cfg := a.Config.Trends
	return fetcher.NewTrends(fetcher.TrendsOptions{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		Timeout:       cfg.RequestTimeout,
		Attempts:      cfg.Attempts,
		RetryDelay:    cfg.RetryDelay,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		UserAgent:     cfg.UserAgent,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (storage.EpisodeStore, func(), error) {
	store, err := storage.NewStore(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, nil
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("init episode store: %w", err)
	}
	return store, store.Close, nil
}

// newSink assembles the configured sinks. The returned closer releases every sink resource,
// including the store.
func (a *App) newSink(ctx context.Context) (sink.Sink, func(), error) {
	var (
		sinks   sink.Multi
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if a.Config.Sink.Store {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, nil, err
		}
		if store == nil {
			a.Logger.Warn().Msg("database.dsn not configured; episode persistence disabled")
		} else {
			closers = append(closers, closeStore)
			sinks = append(sinks, sink.NewStoreSink(store, a.Logger))
		}
	}

	if cfg := a.Config.Sink.Slack; cfg.Enabled {
		sinks = append(sinks, sink.NewSlack(cfg.Token, cfg.Channel, cfg.APIBase, cfg.Timeout, a.Logger))
	}

	if cfg := a.Config.Sink.Kafka; cfg.Enabled {
		k, err := sink.NewKafka(cfg.Brokers, cfg.Topic, a.Logger)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := k.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("close kafka writer")
			}
		})
		sinks = append(sinks, k)
	}

	if len(sinks) == 0 {
		return nil, closeAll, nil
	}
	return sinks, closeAll, nil
}

func (a *App) missingLedger() *ledger.Ledger {
	return ledger.New(a.Config.Data.MissingPath)
}

func (a *App) artifacts() artifact.Dir {
	return artifact.Dir{Root: a.Config.Data.Dir}
}

func (a *App) seriesFrom() (window.Month, error) {
	m, err := window.ParseMonth(a.Config.Window.StartMonth)
	if err != nil {
		return window.Month{}, fmt.Errorf("window.start_month: %w", err)
	}
	return m, nil
}

type pipelineDeps struct {
	fetch  fetcher.SeriesFetcher
	out    sink.Sink
	locker storage.AdvisoryLocker
}

func (a *App) newPipeline(opts service.Options, deps pipelineDeps) (*service.Pipeline, error) {
	if opts.SeriesFrom.IsZero() {
		from, err := a.seriesFrom()
		if err != nil {
			return nil, err
		}
		opts.SeriesFrom = from
	}
	opts.Topic = a.Config.Trends.Topic
	opts.Size = a.Config.Window.Size
	opts.Overlap = a.Config.Window.Overlap
	opts.Workers = a.Config.ResolveWorkers(opts.Workers)
	opts.LockKey = a.Config.Scheduler.AdvisoryLockKey

	return service.New(opts, deps.fetch, a.artifacts(), a.missingLedger(), deps.out, deps.locker, a.Logger), nil
}

// Run executes the long-running daily update service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if len(a.Config.Data.Countries) == 0 {
		return errors.New("data.countries not configured; nothing to update")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	} else {
		a.Logger.Warn().Msg("advisory lock unavailable; running without multi-instance guard")
	}

	pipeline, err := a.newPipeline(service.Options{Countries: a.Config.Data.Countries}, pipelineDeps{
		fetch:  a.newFetcher(),
		locker: locker,
	})
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		Immediate:    true,
	}, a.Logger)

	a.Logger.Info().Strs("countries", a.Config.Data.Countries).Msg("starting daily update service")
	err = sched.Run(ctx, pipeline.ProcessTick)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("daily update service stopped")
	return nil
}
