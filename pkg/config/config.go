package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Stock is one watch list entry.
type Stock struct {
	Code     string  `yaml:"code" validate:"required"`
	Name     string  `yaml:"name"`
	Strategy string  `yaml:"strategy" default:"trend"`
	Cost     float64 `yaml:"cost"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

// SourcesConfig holds failover and circuit settings for the quote sources.
type SourcesConfig struct {
	Ranking          []string      `yaml:"ranking" validate:"min=1"`
	Timeout          time.Duration `yaml:"timeout" default:"30s"`
	MaxAttempts      int           `yaml:"max_attempts" default:"2"`
	Backoff          time.Duration `yaml:"backoff" default:"500ms"`
	FailureThreshold int           `yaml:"failure_threshold" default:"3"`
	Cooldown         time.Duration `yaml:"cooldown" default:"2m"`
	RateLimit        float64       `yaml:"rate_limit" default:"5"`
	Burst            int           `yaml:"burst" default:"10"`
}

// CollectorConfig holds fan-out settings for one collection pass.
type CollectorConfig struct {
	Workers     int `yaml:"workers" default:"16"`
	HistoryDays int `yaml:"history_days" default:"60"`
	NewsCount   int `yaml:"news_count" default:"3"`
}

// MACDPeriods holds the classic fast/slow/signal periods.
type MACDPeriods struct {
	Fast   int `yaml:"fast" default:"12"`
	Slow   int `yaml:"slow" default:"26"`
	Signal int `yaml:"signal" default:"9"`
}

// BollPeriods holds Bollinger band settings.
type BollPeriods struct {
	Window int `yaml:"window" default:"20"`
	NumStd int `yaml:"num_std" default:"2"`
}

// KDJPeriods holds stochastic settings.
type KDJPeriods struct {
	N  int `yaml:"n" default:"9"`
	M1 int `yaml:"m1" default:"3"`
	M2 int `yaml:"m2" default:"3"`
}

// IndicatorsConfig holds all indicator periods.
type IndicatorsConfig struct {
	MAWindow    int         `yaml:"ma_window" default:"20"`
	MACD        MACDPeriods `yaml:"macd"`
	RSIPeriod   int         `yaml:"rsi_period" default:"14"`
	Boll        BollPeriods `yaml:"boll"`
	KDJ         KDJPeriods  `yaml:"kdj"`
	ATRPeriod   int         `yaml:"atr_period" default:"14"`
	OBVMAPeriod int         `yaml:"obv_ma_period" default:"10"`
}

// SignalsConfig holds classification thresholds.
type SignalsConfig struct {
	// BreakBuffer is the anti-whipsaw tolerance applied to the realtime
	// MA before a break counts as effective. 0.995 means the price must
	// print 0.5% below the average.
	BreakBuffer float64 `yaml:"break_buffer" default:"0.995"`
	// InflowBullish is the smart-money net inflow (unit: 100M CNY) above
	// which a break is read as a possible shakeout instead of a breakdown.
	InflowBullish float64 `yaml:"inflow_bullish" default:"30"`
}

// TrackerConfig holds hit-rate evaluation thresholds, in percent.
type TrackerConfig struct {
	EvalLagDays int     `yaml:"eval_lag_days" default:"1"`
	WindowDays  int     `yaml:"window_days" default:"7"`
	DangerHit   float64 `yaml:"danger_hit" default:"-0.5"`
	DangerMiss  float64 `yaml:"danger_miss" default:"1.0"`
	SafeHit     float64 `yaml:"safe_hit" default:"-1.0"`
	SafeMiss    float64 `yaml:"safe_miss" default:"-2.0"`
	WatchBand   float64 `yaml:"watch_band" default:"2.0"`
}

// SQLiteConfig holds the embedded store settings.
type SQLiteConfig struct {
	Path string `yaml:"path" default:"data/sentinel.db"`
}

// ClickHouseConfig holds the warehouse store settings.
type ClickHouseConfig struct {
	Host        string        `yaml:"host" default:"localhost"`
	Port        int           `yaml:"port" default:"9000"`
	Database    string        `yaml:"database" default:"sentinel"`
	User        string        `yaml:"user" default:"default"`
	Password    string        `yaml:"password"`
	DialTimeout time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout time.Duration `yaml:"read_timeout" default:"30s"`
}

// StorageConfig selects and configures the record store backend.
type StorageConfig struct {
	Backend    string           `yaml:"backend" default:"sqlite" validate:"oneof=sqlite clickhouse"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// KafkaConfig holds the signal event publisher settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"sentinel.signals"`
	RequiredAcks int           `yaml:"required_acks" default:"-1"`
	Compression  string        `yaml:"compression" default:"gzip"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
}

// EventsConfig selects the event backend.
type EventsConfig struct {
	Backend string      `yaml:"backend" default:"none" validate:"oneof=none kafka"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// RedisConfig holds cache backend settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig holds cache TTLs.
type CacheConfig struct {
	Redis         RedisConfig   `yaml:"redis"`
	HistoryTTL    time.Duration `yaml:"history_ttl" default:"4h"`
	EvaluationTTL time.Duration `yaml:"evaluation_ttl" default:"720h"`
}

// AnalystConfig holds the narrative model client settings.
type AnalystConfig struct {
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model" default:"gemini-2.0-flash"`
	Timeout     time.Duration `yaml:"timeout" default:"60s"`
	MaxAttempts int           `yaml:"max_attempts" default:"3"`
}

// NotifyConfig holds webhook delivery settings.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Timeout    time.Duration `yaml:"timeout" default:"10s"`
}

type Config struct {
	Environment string           `yaml:"environment" default:"dev"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Watchlist   []Stock          `yaml:"watchlist" validate:"min=1,dive"`
	Indices     []string         `yaml:"indices"`
	Sources     SourcesConfig    `yaml:"sources"`
	Collector   CollectorConfig  `yaml:"collector"`
	Indicators  IndicatorsConfig `yaml:"indicators"`
	Signals     SignalsConfig    `yaml:"signals"`
	Tracker     TrackerConfig    `yaml:"tracker"`
	Storage     StorageConfig    `yaml:"storage"`
	Events      EventsConfig     `yaml:"events"`
	Cache       CacheConfig      `yaml:"cache"`
	Analyst     AnalystConfig    `yaml:"analyst"`
	Notify      NotifyConfig     `yaml:"notify"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SENTINEL_WATCHLIST"); v != "" {
		c.Watchlist = c.Watchlist[:0]
		for _, code := range strings.Split(v, ",") {
			c.Watchlist = append(c.Watchlist, Stock{Code: strings.TrimSpace(code), Strategy: "trend"})
		}
	}
	if v := os.Getenv("ANALYST_API_KEY"); v != "" {
		c.Analyst.APIKey = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Events.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Indicators.MAWindow < 2 {
		return fmt.Errorf("indicators.ma_window must be >= 2, got %d", c.Indicators.MAWindow)
	}
	if c.Signals.BreakBuffer <= 0 || c.Signals.BreakBuffer > 1 {
		return fmt.Errorf("signals.break_buffer must be in (0, 1], got %v", c.Signals.BreakBuffer)
	}
	if c.Events.Backend == "kafka" && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers required when events.backend is 'kafka'")
	}
	for _, s := range c.Sources.Ranking {
		switch s {
		case "eastmoney", "tencent", "sina":
		default:
			return fmt.Errorf("unknown source %q in sources.ranking", s)
		}
	}
	return nil
}
