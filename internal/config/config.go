package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"odas-monitor/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Readiness  ReadinessConfig  `mapstructure:"readiness"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Server     ServerConfig     `mapstructure:"server"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs evaluation cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToStart    bool          `mapstructure:"align_to_start"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SimulationConfig seeds the simulated metric source and its starting point.
type SimulationConfig struct {
	Seed              int64   `mapstructure:"seed"`
	InitialVolatility float64 `mapstructure:"initial_volatility"`
	InitialLiquidity  float64 `mapstructure:"initial_liquidity"`
	InitialLatency    float64 `mapstructure:"initial_latency"`
	InitialSentiment  float64 `mapstructure:"initial_sentiment"`
	InitialAnomaly    float64 `mapstructure:"initial_anomaly"`
}

// ThresholdsConfig overrides the intervention threshold table.
type ThresholdsConfig struct {
	VolatilityMax float64 `mapstructure:"volatility_max"`
	LiquidityMin  float64 `mapstructure:"liquidity_min"`
	LatencyMax    float64 `mapstructure:"latency_max"`
	SentimentMin  float64 `mapstructure:"sentiment_min"`
	AnomalyMax    float64 `mapstructure:"anomaly_max"`
}

// ReadinessConfig governs the storage readiness gate.
type ReadinessConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	WarnAfter    time.Duration `mapstructure:"warn_after"`
}

// AlertingConfig defines intervention dispatch routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	CriticalOnly bool           `mapstructure:"critical_only"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ServerConfig controls the status/feed HTTP surface.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// FeedConfig tunes the intervention feed watcher.
type FeedConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	RecentLimit  int           `mapstructure:"recent_limit"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ODASWATCHER")
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
	v.SetDefault("app.name", "odaswatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5s")
	v.SetDefault("scheduler.align_to_start", false)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6f646173))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("simulation.seed", int64(1))
	v.SetDefault("simulation.initial_volatility", 0.08)
	v.SetDefault("simulation.initial_liquidity", 250000.0)
	v.SetDefault("simulation.initial_latency", 80.0)
	v.SetDefault("simulation.initial_sentiment", 0.65)
	v.SetDefault("simulation.initial_anomaly", 0.20)

	v.SetDefault("thresholds.volatility_max", 0.15)
	v.SetDefault("thresholds.liquidity_min", 100000.0)
	v.SetDefault("thresholds.latency_max", 150.0)
	v.SetDefault("thresholds.sentiment_min", 0.40)
	v.SetDefault("thresholds.anomaly_max", 0.85)

	v.SetDefault("readiness.poll_interval", "2s")
	v.SetDefault("readiness.warn_after", "30s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.critical_only", true)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8090")

	v.SetDefault("feed.poll_interval", "2s")
	v.SetDefault("feed.recent_limit", 50)

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
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
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Thresholds.VolatilityMax <= 0 {
		return fmt.Errorf("thresholds.volatility_max must be greater than zero")
	}
	if c.Thresholds.LiquidityMin <= 0 {
		return fmt.Errorf("thresholds.liquidity_min must be greater than zero")
	}
	if c.Thresholds.LatencyMax <= 0 {
		return fmt.Errorf("thresholds.latency_max must be greater than zero")
	}
	if c.Thresholds.SentimentMin <= 0 || c.Thresholds.SentimentMin >= 1 {
		return fmt.Errorf("thresholds.sentiment_min must be within (0, 1)")
	}
	if c.Thresholds.AnomalyMax <= 0 || c.Thresholds.AnomalyMax >= 1 {
		return fmt.Errorf("thresholds.anomaly_max must be within (0, 1)")
	}
	if c.Readiness.PollInterval <= 0 {
		return fmt.Errorf("readiness.poll_interval must be greater than zero")
	}
	if c.Feed.PollInterval <= 0 || c.Feed.RecentLimit <= 0 {
		return fmt.Errorf("feed.poll_interval and feed.recent_limit must be greater than zero")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must be set when server.enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
