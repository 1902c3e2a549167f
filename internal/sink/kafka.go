package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"trendwatch/internal/series"
	"trendwatch/internal/spike"
)

// publishBatchTimeout bounds how long a single-message Publish waits for a batch to fill.
const publishBatchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes episodes as JSON messages keyed by country code.
type Kafka struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafka builds a writer for the topic.
func NewKafka(brokers []string, topic string, logger zerolog.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic not configured")
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: publishBatchTimeout,
		},
		logger: logger.With().Str("component", "sink_kafka").Logger(),
	}, nil
}

type point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type episodeMessage struct {
	CountryCode string  `json:"country_code"`
	Topic       string  `json:"topic,omitempty"`
	Peak        point   `json:"peak"`
	Threshold   float64 `json:"threshold"`
	LocalLeft   point   `json:"local_left"`
	GlobalLeft  point   `json:"global_left"`
	LocalRight  point   `json:"local_right"`
	GlobalRight point   `json:"global_right"`
	Impact      string  `json:"impact"`
	Quartile    int     `json:"quartile"`
}

func toPoint(p spike.Point) point {
	return point{Date: p.Date.Format(series.DateLayout), Value: p.Value}
}

func encodeEpisode(ep spike.Episode) ([]byte, error) {
	return json.Marshal(episodeMessage{
		CountryCode: ep.CountryCode,
		Topic:       ep.Topic,
		Peak:        toPoint(ep.Info.Peak),
		Threshold:   ep.Info.Threshold,
		LocalLeft:   toPoint(ep.Info.LocalLeft),
		GlobalLeft:  toPoint(ep.Info.GlobalLeft),
		LocalRight:  toPoint(ep.Info.LocalRight),
		GlobalRight: toPoint(ep.Info.GlobalRight),
		Impact:      ep.Impact.String(),
		Quartile:    ep.Quartile,
	})
}

// Publish writes one message per episode.
func (k *Kafka) Publish(ctx context.Context, ep spike.Episode) error {
	data, err := encodeEpisode(ep)
	if err != nil {
		return fmt.Errorf("marshal episode: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ep.CountryCode),
		Value: data,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	k.logger.Debug().Str("country", ep.CountryCode).Time("start", ep.Start()).Msg("episode written to kafka")
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

var _ Sink = (*Kafka)(nil)
