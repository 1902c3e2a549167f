package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trendwatch/internal/spike"
)

// Slack 通过 chat.postMessage 推送消息。
type Slack struct {
	token   string
	channel string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewSlack 构造 Slack 推送器。
func NewSlack(token, channel, baseURL string, timeout time.Duration, logger zerolog.Logger) *Slack {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}

	return &Slack{
		token:   token,
		channel: channel,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "sink_slack").Logger(),
	}
}

// Publish posts the rendered episode to the channel.
func (s *Slack) Publish(ctx context.Context, ep spike.Episode) error {
	payload := map[string]string{
		"channel": s.channel,
		"text":    RenderMessage(ep),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack 响应码异常: %d", resp.StatusCode)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("slack 返回 ok=false: %s", result.Error)
		}
	}

	s.logger.Info().Str("country", ep.CountryCode).
		Time("start", ep.Start()).
		Int("quartile", ep.Quartile).
		Msg("片段已推送 (Slack)")
	return nil
}

var _ Sink = (*Slack)(nil)
