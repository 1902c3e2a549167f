package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"trendwatch/internal/spike"
)

// EpisodeRecord is one persisted anomalous episode, keyed by country and start date.
type EpisodeRecord struct {
	CountryCode string
	StartDate   time.Time
	EndDate     time.Time
	PeakDate    time.Time
	PeakValue   float64
	Threshold   float64
	LocalStart  time.Time
	LocalEnd    time.Time
	Impact      decimal.Decimal
	Quartile    int
	// Terms lists every topic that reported this episode.
	Terms     []string
	CreatedAt time.Time
}

// RecordFromEpisode flattens a characterized episode for persistence.
func RecordFromEpisode(ep spike.Episode) EpisodeRecord {
	terms := []string{}
	if ep.Topic != "" {
		terms = append(terms, ep.Topic)
	}
	return EpisodeRecord{
		CountryCode: ep.CountryCode,
		StartDate:   ep.Start(),
		EndDate:     ep.End(),
		PeakDate:    ep.Info.Peak.Date,
		PeakValue:   ep.Info.Peak.Value,
		Threshold:   ep.Info.Threshold,
		LocalStart:  ep.Info.LocalLeft.Date,
		LocalEnd:    ep.Info.LocalRight.Date,
		Impact:      ep.Impact,
		Quartile:    ep.Quartile,
		Terms:       terms,
	}
}

// Topic returns the first term, which is the topic the episode was inserted with.
func (r EpisodeRecord) Topic() string {
	if len(r.Terms) == 0 {
		return ""
	}
	return r.Terms[0]
}
