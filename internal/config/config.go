package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Dhan        DhanConfig         `mapstructure:"dhan"`
	Underlyings []UnderlyingConfig `mapstructure:"underlyings"`
	Storage     StorageConfig      `mapstructure:"storage"`
	Cache       CacheConfig        `mapstructure:"cache"`
	Collector   CollectorConfig    `mapstructure:"collector"`
	Dashboard   DashboardConfig    `mapstructure:"dashboard"`
	Market      MarketConfig       `mapstructure:"market"`
	Notify      NotifyConfig       `mapstructure:"notify"`
	Logging     LoggingConfig      `mapstructure:"logging"`
}

type DhanConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	ClientID        string        `mapstructure:"client_id"`
	AccessToken     string        `mapstructure:"access_token"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type StorageConfig struct {
	Backend          string        `mapstructure:"backend"`
	Directory        string        `mapstructure:"directory"`
	SQLitePath       string        `mapstructure:"sqlite_path"`
	ArchiveDirectory string        `mapstructure:"archive_directory"`
	HistoryTTL       time.Duration `mapstructure:"history_ttl"`
}

type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPassword string        `mapstructure:"redis_password"`
	Prefix        string        `mapstructure:"prefix"`
	QuoteTTL      time.Duration `mapstructure:"quote_ttl"`
	ExpiriesTTL   time.Duration `mapstructure:"expiries_ttl"`
	ChainTTL      time.Duration `mapstructure:"chain_ttl"`
}

type CollectorConfig struct {
	Workers      int           `mapstructure:"workers"`
	Interval     time.Duration `mapstructure:"interval"`
	Scale        float64       `mapstructure:"scale"`
	RunOnStartup bool          `mapstructure:"run_on_startup"`
	StateFile    string        `mapstructure:"state_file"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
	ArchiveDaily bool          `mapstructure:"archive_daily"`
}

type DashboardConfig struct {
	Port            string        `mapstructure:"port"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CompareRefresh  time.Duration `mapstructure:"compare_refresh"`
	LiveWindow      int           `mapstructure:"live_window"`
	CompareBelow    int           `mapstructure:"compare_below"`
	CompareAbove    int           `mapstructure:"compare_above"`
	Scale           float64       `mapstructure:"scale"`
	CompareScale    float64       `mapstructure:"compare_scale"`
	IVFactor        float64       `mapstructure:"iv_factor"`
	SpotSources     []string      `mapstructure:"spot_sources"`
	YahooURL        string        `mapstructure:"yahoo_url"`
	WSEnabled       bool          `mapstructure:"ws_enabled"`
	Display         DisplayConfig `mapstructure:"display"`
}

// DisplayConfig holds the multipliers applied to greeks on the live board.
type DisplayConfig struct {
	IV    float64 `mapstructure:"iv"`
	Delta float64 `mapstructure:"delta"`
	Gamma float64 `mapstructure:"gamma"`
	Vega  float64 `mapstructure:"vega"`
}

type MarketConfig struct {
	Calendar string   `mapstructure:"calendar"`
	Timezone string   `mapstructure:"timezone"`
	Open     string   `mapstructure:"open"`
	Close    string   `mapstructure:"close"`
	Holidays []string `mapstructure:"holidays"`
}

type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Server    string `mapstructure:"server"`
	Topic     string `mapstructure:"topic"`
	Priority  string `mapstructure:"priority"`
	Tags      string `mapstructure:"tags"`
	Token     string `mapstructure:"token"`
	OnSuccess bool   `mapstructure:"on_success"`
}

type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from defaults, an optional YAML file, a .env file
// and MAXPAIN_* environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("MAXPAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("dhan.access_token", "MAXPAIN_DHAN_ACCESS_TOKEN", "DHAN_ACCESS_TOKEN")
	_ = v.BindEnv("dhan.client_id", "MAXPAIN_DHAN_CLIENT_ID", "DHAN_CLIENT_ID")
	_ = v.BindEnv("cache.redis_password", "MAXPAIN_CACHE_REDIS_PASSWORD")
	_ = v.BindEnv("notify.token", "MAXPAIN_NOTIFY_TOKEN", "NTFY_TOKEN")
	_ = v.BindEnv("notify.topic", "MAXPAIN_NOTIFY_TOPIC", "NTFY_TOPIC")
	_ = v.BindEnv("dashboard.port", "MAXPAIN_DASHBOARD_PORT", "PORT")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dhan.base_url", "https://api.dhan.co/v2")
	v.SetDefault("dhan.timeout", 10*time.Second)
	v.SetDefault("dhan.retry_count", 2)
	v.SetDefault("dhan.retry_delay", time.Second)
	v.SetDefault("dhan.request_interval", 3*time.Second)
	v.SetDefault("dhan.breaker_failures", 5)
	v.SetDefault("dhan.breaker_timeout", time.Minute)

	v.SetDefault("underlyings", DefaultUnderlyings())

	v.SetDefault("storage.backend", "csv")
	v.SetDefault("storage.directory", "data")
	v.SetDefault("storage.sqlite_path", "data/history.db")
	v.SetDefault("storage.archive_directory", "data/archive")
	v.SetDefault("storage.history_ttl", 15*time.Second)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "maxpain")
	v.SetDefault("cache.quote_ttl", 5*time.Second)
	v.SetDefault("cache.expiries_ttl", 120*time.Second)
	v.SetDefault("cache.chain_ttl", 30*time.Second)

	v.SetDefault("collector.workers", 2)
	v.SetDefault("collector.interval", 5*time.Minute)
	v.SetDefault("collector.scale", 10000)
	v.SetDefault("collector.run_on_startup", true)
	v.SetDefault("collector.state_file", "data/.collector-state")
	v.SetDefault("collector.metrics_addr", "")
	v.SetDefault("collector.archive_daily", false)

	v.SetDefault("dashboard.port", "8080")
	v.SetDefault("dashboard.refresh_interval", 30*time.Second)
	v.SetDefault("dashboard.compare_refresh", 360*time.Second)
	v.SetDefault("dashboard.live_window", 20)
	v.SetDefault("dashboard.compare_below", 25)
	v.SetDefault("dashboard.compare_above", 26)
	v.SetDefault("dashboard.scale", 10000)
	v.SetDefault("dashboard.compare_scale", 100)
	v.SetDefault("dashboard.iv_factor", 1000)
	v.SetDefault("dashboard.spot_sources", []string{"dhan", "yahoo"})
	v.SetDefault("dashboard.yahoo_url", "https://query1.finance.yahoo.com")
	v.SetDefault("dashboard.ws_enabled", true)
	v.SetDefault("dashboard.display.iv", 10000)
	v.SetDefault("dashboard.display.delta", 100000)
	v.SetDefault("dashboard.display.gamma", 10000000)
	v.SetDefault("dashboard.display.vega", 10000)

	v.SetDefault("market.calendar", "XNSE")
	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.holidays", []string{})

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "chart_with_downwards_trend")
	v.SetDefault("notify.on_success", false)

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}
