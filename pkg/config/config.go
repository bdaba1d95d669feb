package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"DCAClock/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Timezone    string `yaml:"timezone" default:"Asia/Bangkok"`

	Logger      LoggerConfig      `yaml:"logger"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Advisory    AdvisoryConfig    `yaml:"advisory"`
	Guard       GuardConfig       `yaml:"guard"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Binance     BinanceConfig     `yaml:"binance"`
	Collector   CollectorConfig   `yaml:"collector"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Redis       RedisConfig       `yaml:"redis"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Notify      NotifyConfig      `yaml:"notify"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type AnalysisConfig struct {
	Symbols       []string      `yaml:"symbols" default:"[\"BTC/USDT\"]"`
	Periods       []int         `yaml:"periods" default:"[14,30,45,60]"`
	PrimaryPeriod int           `yaml:"primary_period" default:"30"`
	Source        string        `yaml:"source" default:"binance"`
	CacheTTL      time.Duration `yaml:"cache_ttl" default:"10m"`
	QuoteCurrency string        `yaml:"quote_currency" default:"THB"`
	DefaultAmount string        `yaml:"default_amount" default:"800"`
}

type AdvisoryConfig struct {
	Provider string        `yaml:"provider" default:"none"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Models   []string      `yaml:"models"`
	Timeout  time.Duration `yaml:"timeout" default:"30s"`
}

type GuardConfig struct {
	LeadTolerance  time.Duration `yaml:"lead_tolerance" default:"1m"`
	CatchUpWindow  time.Duration `yaml:"catch_up_window" default:"10m"`
	ExecuteTimeout time.Duration `yaml:"execute_timeout" default:"30s"`
	SettleTimeout  time.Duration `yaml:"settle_timeout" default:"1m"`
	ClaimTTL       time.Duration `yaml:"claim_ttl" default:"36h"`
}

type PersistenceConfig struct {
	Store         string        `yaml:"store" default:"redis"`
	FilePath      string        `yaml:"file_path" default:"data/dca_targets.json"`
	RetryAttempts int           `yaml:"retry_attempts" default:"3"`
	RetryInitial  time.Duration `yaml:"retry_initial" default:"1s"`
	RetryMax      time.Duration `yaml:"retry_max" default:"5s"`
}

type ExchangeConfig struct {
	Type      string        `yaml:"type" default:"paper"`
	BaseURL   string        `yaml:"base_url" default:"https://api.bitkub.com"`
	APIKey    string        `yaml:"api_key"`
	APISecret string        `yaml:"api_secret"`
	RateLimit float64       `yaml:"rate_limit" default:"5"`
	Timeout   time.Duration `yaml:"timeout" default:"10s"`
	FillWait  time.Duration `yaml:"fill_wait" default:"5s"`
}

type BinanceConfig struct {
	RESTURL        string        `yaml:"rest_url" default:"https://api.binance.com"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://stream.binance.com:9443/ws"`
	RateLimit      float64       `yaml:"rate_limit" default:"10"`
	Timeout        time.Duration `yaml:"timeout" default:"15s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

type CollectorConfig struct {
	Enabled bool     `yaml:"enabled"`
	Symbols []string `yaml:"symbols"`
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	TriggerInterval time.Duration `yaml:"trigger_interval" default:"1m"`
	AnalysisTime    string        `yaml:"analysis_time" default:"00:05"`
}

type RedisConfig struct {
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"dcaclock"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"dcaclock"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	CandleTable      string        `yaml:"candle_table" default:"candles_15m"`
	FillTable        string        `yaml:"fill_table" default:"dca_fills"`
}

type KafkaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic" default:"dca.events"`
	RequiredAcks    int           `yaml:"required_acks" default:"1"`
	Compression     string        `yaml:"compression" default:"snappy"`
	MaxAttempts     int           `yaml:"max_attempts" default:"3"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" default:"50ms"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	AutoCreateTopic bool          `yaml:"auto_create_topic"`
}

type NotifyConfig struct {
	Discord struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"discord"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		QueueSize  int           `yaml:"queue_size" default:"100"`
		RetryLimit int           `yaml:"retry_limit" default:"5"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	} `yaml:"queue"`
	ErrorDigest struct {
		Enabled        bool          `yaml:"enabled"`
		Interval       time.Duration `yaml:"interval" default:"5m"`
		CountThreshold int           `yaml:"count_threshold" default:"20"`
	} `yaml:"error_digest"`
}

// Default returns a configuration populated only with defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func read(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (when present), the YAML file, and then applies
// environment overrides. Secrets are expected to come from the environment.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("DCA_SYMBOLS"); v != "" {
		c.Analysis.Symbols = splitList(v)
	}
	if v := os.Getenv("CONFIG_STORE"); v != "" {
		c.Persistence.Store = v
	}
	if v := os.Getenv("ADVISORY_API_KEY"); v != "" {
		c.Advisory.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Advisory.APIKey == "" {
		c.Advisory.APIKey = v
	}
	if v := os.Getenv("BITKUB_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("BITKUB_API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("EXCHANGE"); v != "" {
		c.Exchange.Type = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.Discord.WebhookURL = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Notify.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notify.Telegram.ChatID = id
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Persistence.Store == "redis" || c.Notify.Queue.Enabled
}

// Validate checks if the configuration is valid.
// DefaultDCAAmount is the quote amount for records created without one and
// for legacy records that never carried one.
func (c *Config) DefaultDCAAmount() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Analysis.DefaultAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("analysis.default_amount: %w", err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("analysis.default_amount must be positive, got %s", d)
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if len(c.Analysis.Periods) == 0 {
		return fmt.Errorf("analysis.periods cannot be empty")
	}
	for _, p := range c.Analysis.Periods {
		if p < 2 {
			return fmt.Errorf("analysis.periods must be >= 2 days, got %d", p)
		}
	}
	if _, err := c.DefaultDCAAmount(); err != nil {
		return err
	}
	switch c.Analysis.Source {
	case "binance", "clickhouse":
	default:
		return fmt.Errorf("analysis.source must be 'binance' or 'clickhouse', got '%s'", c.Analysis.Source)
	}
	if c.Analysis.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("analysis.source 'clickhouse' requires clickhouse.enabled")
	}
	switch c.Persistence.Store {
	case "redis", "file", "memory":
	default:
		return fmt.Errorf("persistence.store must be 'redis', 'file' or 'memory', got '%s'", c.Persistence.Store)
	}
	if c.Persistence.RetryAttempts < 1 {
		return fmt.Errorf("persistence.retry_attempts must be >= 1")
	}
	switch c.Exchange.Type {
	case "paper":
	case "bitkub":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required for bitkub")
		}
	default:
		return fmt.Errorf("exchange.type must be 'bitkub' or 'paper', got '%s'", c.Exchange.Type)
	}
	switch c.Advisory.Provider {
	case "none":
	case "gemini", "openai":
		if c.Advisory.APIKey == "" {
			return fmt.Errorf("advisory.api_key is required for provider '%s'", c.Advisory.Provider)
		}
	default:
		return fmt.Errorf("advisory.provider must be 'gemini', 'openai' or 'none', got '%s'", c.Advisory.Provider)
	}
	if c.Guard.LeadTolerance < 0 || c.Guard.CatchUpWindow <= 0 {
		return fmt.Errorf("guard windows must be non-negative and catch_up_window > 0")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Collector.Enabled && !c.ClickHouse.Enabled {
		return fmt.Errorf("collector requires clickhouse.enabled")
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.TriggerInterval <= 0 {
			return fmt.Errorf("scheduler.trigger_interval must be > 0")
		}
		if !util.IsClock(c.Scheduler.AnalysisTime) {
			return fmt.Errorf("scheduler.analysis_time must be HH:MM, got '%s'", c.Scheduler.AnalysisTime)
		}
	}
	return nil
}
