package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"trendwatch/internal/series"
	"trendwatch/internal/spike"
	"trendwatch/internal/storage"
)

// Sink 接收已完成刻画的异常片段。
type Sink interface {
	Publish(ctx context.Context, ep spike.Episode) error
}

// Multi fans an episode out to every sink and joins their errors.
type Multi []Sink

// Publish delivers to all sinks even when one fails.
func (m Multi) Publish(ctx context.Context, ep spike.Episode) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, ep); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreSink persists episodes through an EpisodeStore.
type StoreSink struct {
	store  storage.EpisodeStore
	logger zerolog.Logger
}

// NewStoreSink wraps a store.
func NewStoreSink(store storage.EpisodeStore, logger zerolog.Logger) *StoreSink {
	return &StoreSink{store: store, logger: logger.With().Str("component", "sink_store").Logger()}
}

// Publish upserts the episode.
func (s *StoreSink) Publish(ctx context.Context, ep spike.Episode) error {
	if err := s.store.UpsertEpisode(ctx, storage.RecordFromEpisode(ep)); err != nil {
		return fmt.Errorf("store episode %s %s: %w", ep.CountryCode, ep.Start().Format(series.DateLayout), err)
	}
	s.logger.Debug().Str("country", ep.CountryCode).Time("start", ep.Start()).Msg("episode stored")
	return nil
}

// RenderMessage is the plain one-message-per-episode text used by chat sinks.
func RenderMessage(ep spike.Episode) string {
	info := ep.Info
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[Search interest spike] %s\n", ep.CountryCode))
	if ep.Topic != "" {
		builder.WriteString(fmt.Sprintf("Topic: %s\n", ep.Topic))
	}
	builder.WriteString(fmt.Sprintf("Peak: %s (%.1f, threshold %.1f)\n",
		info.Peak.Date.Format(series.DateLayout), info.Peak.Value, info.Threshold))
	builder.WriteString(fmt.Sprintf("Local: %s → %s\n",
		info.LocalLeft.Date.Format(series.DateLayout), info.LocalRight.Date.Format(series.DateLayout)))
	builder.WriteString(fmt.Sprintf("Episode: %s → %s\n",
		ep.Start().Format(series.DateLayout), ep.End().Format(series.DateLayout)))
	builder.WriteString(fmt.Sprintf("Impact: %s (quartile %d)\n", ep.Impact.StringFixed(1), ep.Quartile))
	return builder.String()
}

var (
	_ Sink = Multi(nil)
	_ Sink = (*StoreSink)(nil)
)
