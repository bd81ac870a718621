package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Matcher     MatcherConfig     `yaml:"matcher" mapstructure:"matcher"`
	Valuation   ValuationConfig   `yaml:"valuation" mapstructure:"valuation"`
	Assumptions AssumptionsConfig `yaml:"assumptions" mapstructure:"assumptions"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BatchConfig configures batch re-pricing.
type BatchConfig struct {
	MaxConcurrentItems int `yaml:"max_concurrent_items" mapstructure:"max_concurrent_items"`
}

// RetryConfig configures retries of contended store writes.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MatcherConfig configures comp admission and scoring.
type MatcherConfig struct {
	MinScore         float64 `yaml:"min_score" mapstructure:"min_score"`
	BackfillMinScore float64 `yaml:"backfill_min_score" mapstructure:"backfill_min_score"`
	ColocationWindow int     `yaml:"colocation_window" mapstructure:"colocation_window"`
	VocabularyPath   string  `yaml:"vocabulary_path" mapstructure:"vocabulary_path"`
}

// ValuationConfig bounds the evidence considered per item.
type ValuationConfig struct {
	MaxSold   int `yaml:"max_sold" mapstructure:"max_sold"`
	MaxActive int `yaml:"max_active" mapstructure:"max_active"`
}

// AssumptionsConfig carries the seller economics used by the decision engine.
// Values are taken as given.
type AssumptionsConfig struct {
	PlatformFeeRate    float64 `yaml:"platform_fee_rate" mapstructure:"platform_fee_rate"`
	AvgShipCost        float64 `yaml:"avg_ship_cost" mapstructure:"avg_ship_cost"`
	CertCost           float64 `yaml:"cert_cost" mapstructure:"cert_cost"`
	CertShipInsureCost float64 `yaml:"cert_ship_insure_cost" mapstructure:"cert_ship_insure_cost"`
	TimePenaltyRate    float64 `yaml:"time_penalty_rate" mapstructure:"time_penalty_rate"`
	MinLiftDollars     float64 `yaml:"min_lift_dollars" mapstructure:"min_lift_dollars"`
	MinLiftPct         float64 `yaml:"min_lift_pct" mapstructure:"min_lift_pct"`
}

// MonitoringConfig configures valuation health checks and alert delivery.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	StaleAfterHours        int     `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
	MinCoverage            float64 `yaml:"min_coverage" mapstructure:"min_coverage"`
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold" mapstructure:"low_confidence_threshold"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FMV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fmv.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("batch.max_concurrent_items", 4)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_backoff_ms", 50)
	v.SetDefault("retry.max_backoff_ms", 2000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("matcher.min_score", 0.45)
	v.SetDefault("matcher.backfill_min_score", 0.25)
	v.SetDefault("matcher.colocation_window", 6)
	v.SetDefault("valuation.max_sold", 160)
	v.SetDefault("valuation.max_active", 20)
	v.SetDefault("assumptions.platform_fee_rate", 0.13)
	v.SetDefault("assumptions.avg_ship_cost", 15.0)
	v.SetDefault("assumptions.cert_cost", 45.0)
	v.SetDefault("assumptions.cert_ship_insure_cost", 20.0)
	v.SetDefault("assumptions.time_penalty_rate", 0.05)
	v.SetDefault("assumptions.min_lift_dollars", 150.0)
	v.SetDefault("assumptions.min_lift_pct", 0.20)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.stale_after_hours", 168)
	v.SetDefault("monitoring.min_coverage", 0.5)
	v.SetDefault("monitoring.low_confidence_threshold", 0.5)
	v.SetDefault("monitoring.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a mode depends on. Modes are "cli" and
// "serve". Assumptions are never validated.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	if c.Batch.MaxConcurrentItems < 1 || c.Batch.MaxConcurrentItems > 64 {
		errs = append(errs, "batch.max_concurrent_items must be between 1 and 64")
	}
	if c.Matcher.MinScore < 0 || c.Matcher.MinScore > 1 {
		errs = append(errs, "matcher.min_score must be between 0 and 1")
	}
	if c.Matcher.BackfillMinScore < 0 || c.Matcher.BackfillMinScore > 1 {
		errs = append(errs, "matcher.backfill_min_score must be between 0 and 1")
	}

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
