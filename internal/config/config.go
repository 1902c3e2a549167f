package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"trendwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Trends    TrendsConfig    `mapstructure:"trends"`
	Window    WindowConfig    `mapstructure:"window"`
	Data      DataConfig      `mapstructure:"data"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Workers     int    `mapstructure:"workers"`
}

// TrendsConfig covers the trends graph API.
type TrendsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Topic          string        `mapstructure:"topic"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Attempts       int           `mapstructure:"attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// WindowConfig controls window planning.
type WindowConfig struct {
	StartMonth string `mapstructure:"start_month"`
	EndMonth   string `mapstructure:"end_month"`
	Size       int    `mapstructure:"size"`
	Overlap    int    `mapstructure:"overlap"`
}

// DataConfig locates on-disk artifacts.
type DataConfig struct {
	Dir         string   `mapstructure:"dir"`
	MissingPath string   `mapstructure:"missing_path"`
	Countries   []string `mapstructure:"countries"`
}

// DatabaseConfig encapsulates episode store connectivity.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the daily update cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SinkConfig selects where characterized episodes go.
type SinkConfig struct {
	Store bool        `mapstructure:"store"`
	Slack SlackConfig `mapstructure:"slack"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// SlackConfig 描述 Slack 推送参数。
type SlackConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token"`
	Channel string        `mapstructure:"channel"`
	APIBase string        `mapstructure:"api_base"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KafkaConfig describes the episode topic.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRENDWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trendwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.workers", 3)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)

	v.SetDefault("trends.api_key", "")
	v.SetDefault("trends.base_url", "https://www.googleapis.com")
	v.SetDefault("trends.topic", "/m/0ctcb2")
	v.SetDefault("trends.request_timeout", "30s")
	v.SetDefault("trends.attempts", 10)
	v.SetDefault("trends.retry_delay", "61s")
	v.SetDefault("trends.rate_per_second", 1.0)
	v.SetDefault("trends.burst", 1)
	v.SetDefault("trends.user_agent", "trendwatch/1.0")

	v.SetDefault("window.start_month", "2011-01")
	v.SetDefault("window.size", 8)
	v.SetDefault("window.overlap", 7)
	v.SetDefault("window.end_month", "")

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.missing_path", "missing_windows.csv")
	v.SetDefault("data.countries", []string{})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x74726e64))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("sink.store", true)
	v.SetDefault("sink.slack.enabled", false)
	v.SetDefault("sink.slack.token", "")
	v.SetDefault("sink.slack.channel", "")
	v.SetDefault("sink.slack.api_base", "https://slack.com/api")
	v.SetDefault("sink.slack.timeout", "10s")
	v.SetDefault("sink.kafka.enabled", false)
	v.SetDefault("sink.kafka.brokers", []string{})
	v.SetDefault("sink.kafka.topic", "trend-episodes")

	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.App.Workers <= 0 {
		return fmt.Errorf("app.workers must be greater than zero")
	}
	if c.Window.Size < 1 {
		return fmt.Errorf("window.size must be at least 1")
	}
	if c.Window.Overlap < 0 || c.Window.Overlap >= c.Window.Size {
		return fmt.Errorf("window.overlap must be in [0, window.size)")
	}
	if c.Trends.Attempts <= 0 {
		return fmt.Errorf("trends.attempts must be greater than zero")
	}
	if c.Trends.RatePerSecond <= 0 {
		return fmt.Errorf("trends.rate_per_second must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Sink.Slack.Enabled {
		if c.Sink.Slack.Token == "" {
			return fmt.Errorf("sink.slack.token 必须配置")
		}
		if c.Sink.Slack.Channel == "" {
			return fmt.Errorf("sink.slack.channel 必须配置")
		}
	}
	if c.Sink.Kafka.Enabled && len(c.Sink.Kafka.Brokers) == 0 {
		return fmt.Errorf("sink.kafka.brokers 必须配置")
	}
	return nil
}

// ResolveWorkers returns either the CLI override or config default.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.App.Workers
}
