package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/suivoice/atm/internal/types"
)

// Config materialises application configuration from file, environment, and
// defaults. Environment variables use the ATM_ prefix with dots replaced by
// underscores, e.g. ATM_DATABASE_HOST.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Web       WebConfig       `mapstructure:"web"`
}

// AppConfig holds general metadata.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Network string `mapstructure:"network"` // "mainnet" or "testnet"

	// OpeningBalanceUSD seeds the safety vault balance of the portfolio
	// book on startup.
	OpeningBalanceUSD float64 `mapstructure:"opening_balance_usd"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DatabaseConfig holds PostgreSQL connection parameters for the offline
// intent store.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// SchedulerConfig governs the auto-optimizer cadence.
type SchedulerConfig struct {
	Interval            time.Duration `mapstructure:"interval"`
	HysteresisIntervals int           `mapstructure:"hysteresis_intervals"`
	AutoStart           bool          `mapstructure:"auto_start"`
}

// RiskConfig holds the tunable thresholds of the decision engine.
type RiskConfig struct {
	Level             string  `mapstructure:"level"` // conservative|moderate|aggressive
	CrashFloorUSD     float64 `mapstructure:"crash_floor_usd"`
	SafetyDropPct     float64 `mapstructure:"safety_drop_pct"`
	RecoveryPct       float64 `mapstructure:"recovery_pct"`
	MinDeployApy      float64 `mapstructure:"min_deploy_apy"`
	DriftThresholdPct float64 `mapstructure:"drift_threshold_pct"`
	MinTradeUSD       float64 `mapstructure:"min_trade_usd"`
	HistoryLength     int     `mapstructure:"history_length"`
}

// FeedsConfig covers the external market data endpoints.
type FeedsConfig struct {
	PoolsURL     string        `mapstructure:"pools_url"`
	NativeURL    string        `mapstructure:"native_url"`
	PricesURL    string        `mapstructure:"prices_url"`
	FundingURL   string        `mapstructure:"funding_url"`
	OrderbookURL string        `mapstructure:"orderbook_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LedgerConfig bounds the in-memory decision ledger.
type LedgerConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// WebConfig configures the snapshot/command API server.
type WebConfig struct {
	Port string `mapstructure:"port"`
}

// Load builds configuration from an optional file path plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ATM")
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

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "atm")
	v.SetDefault("app.network", "testnet")
	v.SetDefault("app.opening_balance_usd", 100_000.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "atm")
	v.SetDefault("database.dbname", "atm")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.hysteresis_intervals", 5)
	v.SetDefault("scheduler.auto_start", true)

	v.SetDefault("risk.level", "moderate")
	v.SetDefault("risk.crash_floor_usd", 0.50)
	v.SetDefault("risk.safety_drop_pct", 8.0)
	v.SetDefault("risk.recovery_pct", 5.0)
	v.SetDefault("risk.min_deploy_apy", 4.0)
	v.SetDefault("risk.drift_threshold_pct", 10.0)
	v.SetDefault("risk.min_trade_usd", 25.0)
	// One append per cycle: 1440 points cover the 24h signal window at the
	// default 60s interval.
	v.SetDefault("risk.history_length", 1440)

	v.SetDefault("feeds.timeout", "5s")

	v.SetDefault("ledger.capacity", 50)

	v.SetDefault("web.port", "8080")
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

// Validate performs basic sanity checks before anything is wired.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.HysteresisIntervals <= 0 {
		return fmt.Errorf("scheduler.hysteresis_intervals must be positive")
	}
	if _, ok := RiskProfiles[strings.ToLower(c.Risk.Level)]; !ok {
		return fmt.Errorf("risk.level %q is not one of conservative, moderate, aggressive", c.Risk.Level)
	}
	if c.Risk.CrashFloorUSD <= 0 {
		return fmt.Errorf("risk.crash_floor_usd must be positive")
	}
	if c.Risk.HistoryLength <= 1 {
		return fmt.Errorf("risk.history_length must be at least 2")
	}
	if c.Ledger.Capacity <= 0 {
		return fmt.Errorf("ledger.capacity must be positive")
	}
	return nil
}

// Profile resolves the configured risk level to its fixed profile tuple.
func (c *Config) Profile() types.RiskProfile {
	return RiskProfiles[strings.ToLower(c.Risk.Level)]
}
