// Package config provides configuration management for the paper trading simulator.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "paper-trader/internal/errors"
	"paper-trader/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Simulator     SimulatorConfig    `mapstructure:"simulator"`
	Portfolio     PortfolioConfig    `mapstructure:"portfolio"`
	Store         StoreConfig        `mapstructure:"store"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	MarketData    MarketDataConfig   `mapstructure:"market_data"`
	Quality       QualityConfig      `mapstructure:"quality"`
}

// SimulatorConfig holds the execution model parameters.
type SimulatorConfig struct {
	BaseSlippageBps       float64 `mapstructure:"base_slippage_bps"`
	MaxSlippageBps        float64 `mapstructure:"max_slippage_bps"`
	ImpactThreshold       float64 `mapstructure:"impact_threshold"`
	VolatilityModel       string  `mapstructure:"volatility_model"` // random, hint
	ReferenceVolatility   float64 `mapstructure:"reference_volatility"`
	StopUrgencyMultiplier float64 `mapstructure:"stop_urgency_multiplier"`

	PerShareCommission float64 `mapstructure:"per_share_commission"`
	MinCommission      float64 `mapstructure:"min_commission"`
	MaxCommission      float64 `mapstructure:"max_commission"`
	SECFeeRate         float64 `mapstructure:"sec_fee_rate"`
	TAFFeePerShare     float64 `mapstructure:"taf_fee_per_share"`

	FillProbability        float64 `mapstructure:"fill_probability"`
	PartialFillProbability float64 `mapstructure:"partial_fill_probability"`
	PartialFillMin         float64 `mapstructure:"partial_fill_min"`
	PartialFillMax         float64 `mapstructure:"partial_fill_max"`

	PriceImprovementProbability float64 `mapstructure:"price_improvement_probability"`
	PriceImprovementMinBps      float64 `mapstructure:"price_improvement_min_bps"`
	PriceImprovementMaxBps      float64 `mapstructure:"price_improvement_max_bps"`
	LimitPartialFillProbability float64 `mapstructure:"limit_partial_fill_probability"`
	LimitPartialFillMin         float64 `mapstructure:"limit_partial_fill_min"`
	LimitPartialFillMax         float64 `mapstructure:"limit_partial_fill_max"`

	QuantityPrecision int32 `mapstructure:"quantity_precision"`
	PricePrecision    int32 `mapstructure:"price_precision"`

	SimulatedLatency time.Duration     `mapstructure:"simulated_latency"`
	Simplified       bool              `mapstructure:"simplified"`
	Seed             int64             `mapstructure:"seed"` // 0 seeds from the clock
	QueueWhenClosed  bool              `mapstructure:"queue_when_closed"`
	MarketHours      utils.MarketHours `mapstructure:"market_hours"`
}

// PortfolioConfig holds portfolio defaults.
type PortfolioConfig struct {
	DefaultID   string  `mapstructure:"default_id"`
	InitialCash float64 `mapstructure:"initial_cash"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// NotificationConfig holds notification sink configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Level   string        `mapstructure:"level"` // all, fills_only, errors_only
	Webhook WebhookConfig `mapstructure:"webhook"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RatePerSecond caps deliveries; zero disables the limit.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
}

// KafkaConfig holds Kafka publisher configuration.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// MarketDataConfig bounds the external snapshot lookup.
type MarketDataConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	// Consecutive failures before lookups are short-circuited for Cooldown.
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
	// MaxQuoteAge marks cached quotes older than this as unavailable. Zero disables.
	MaxQuoteAge time.Duration `mapstructure:"max_quote_age"`
}

// QualityConfig holds execution quality tracking thresholds.
type QualityConfig struct {
	SlippageAlertBps float64 `mapstructure:"slippage_alert_bps"`
	WindowSize       int     `mapstructure:"window_size"`
	AlertOnRejection bool    `mapstructure:"alert_on_rejection"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/paper-trader"
	}
	return filepath.Join(home, ".config", "paper-trader")
}

// DefaultSimulatorConfig returns the execution model defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		BaseSlippageBps:       2,
		MaxSlippageBps:        50,
		ImpactThreshold:       10000,
		VolatilityModel:       "random",
		ReferenceVolatility:   0.02,
		StopUrgencyMultiplier: 1.5,

		PerShareCommission: 0.005,
		MinCommission:      1.00,
		MaxCommission:      10.00,
		SECFeeRate:         0.0000008,
		TAFFeePerShare:     0.000119,

		FillProbability:        0.95,
		PartialFillProbability: 0.15,
		PartialFillMin:         0.6,
		PartialFillMax:         0.95,

		PriceImprovementProbability: 0.20,
		PriceImprovementMinBps:      1,
		PriceImprovementMaxBps:      5,
		LimitPartialFillProbability: 0.05,
		LimitPartialFillMin:         0.8,
		LimitPartialFillMax:         0.98,

		QuantityPrecision: 0,
		PricePrecision:    4,

		SimulatedLatency: 50 * time.Millisecond,
		QueueWhenClosed:  true,
		MarketHours:      utils.DefaultMarketHours(),
	}
}

// DefaultConfig returns a complete configuration with defaults applied.
func DefaultConfig() *Config {
	dir := DefaultConfigDir()
	return &Config{
		Simulator: DefaultSimulatorConfig(),
		Portfolio: PortfolioConfig{
			DefaultID:   "default",
			InitialCash: 100000,
		},
		Store: StoreConfig{
			Path: filepath.Join(dir, "papersim.db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			File:       false,
			FilePath:   filepath.Join(dir, "logs", "papersim.log"),
			MaxSize:    100,
			MaxBackups: 7,
			MaxAge:     30,
		},
		Notifications: NotificationConfig{
			Level: "all",
			Webhook: WebhookConfig{
				Timeout:       10 * time.Second,
				RatePerSecond: 5,
				Burst:         10,
			},
			Kafka: KafkaConfig{
				Topic: "paper-executions",
			},
		},
		MarketData: MarketDataConfig{
			Timeout:      5 * time.Second,
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,

			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
		},
		Quality: QualityConfig{
			SlippageAlertBps: 25,
			WindowSize:       100,
			AlertOnRejection: true,
		},
	}
}

// Load loads configuration from config.toml in the specified directory.
// If configDir is empty, uses the default config directory. A missing file
// is replaced by a template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("PAPER_TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	s := d.Simulator
	v.SetDefault("simulator.base_slippage_bps", s.BaseSlippageBps)
	v.SetDefault("simulator.max_slippage_bps", s.MaxSlippageBps)
	v.SetDefault("simulator.impact_threshold", s.ImpactThreshold)
	v.SetDefault("simulator.volatility_model", s.VolatilityModel)
	v.SetDefault("simulator.reference_volatility", s.ReferenceVolatility)
	v.SetDefault("simulator.stop_urgency_multiplier", s.StopUrgencyMultiplier)
	v.SetDefault("simulator.per_share_commission", s.PerShareCommission)
	v.SetDefault("simulator.min_commission", s.MinCommission)
	v.SetDefault("simulator.max_commission", s.MaxCommission)
	v.SetDefault("simulator.sec_fee_rate", s.SECFeeRate)
	v.SetDefault("simulator.taf_fee_per_share", s.TAFFeePerShare)
	v.SetDefault("simulator.fill_probability", s.FillProbability)
	v.SetDefault("simulator.partial_fill_probability", s.PartialFillProbability)
	v.SetDefault("simulator.partial_fill_min", s.PartialFillMin)
	v.SetDefault("simulator.partial_fill_max", s.PartialFillMax)
	v.SetDefault("simulator.price_improvement_probability", s.PriceImprovementProbability)
	v.SetDefault("simulator.price_improvement_min_bps", s.PriceImprovementMinBps)
	v.SetDefault("simulator.price_improvement_max_bps", s.PriceImprovementMaxBps)
	v.SetDefault("simulator.limit_partial_fill_probability", s.LimitPartialFillProbability)
	v.SetDefault("simulator.limit_partial_fill_min", s.LimitPartialFillMin)
	v.SetDefault("simulator.limit_partial_fill_max", s.LimitPartialFillMax)
	v.SetDefault("simulator.quantity_precision", s.QuantityPrecision)
	v.SetDefault("simulator.price_precision", s.PricePrecision)
	v.SetDefault("simulator.simulated_latency", s.SimulatedLatency)
	v.SetDefault("simulator.simplified", s.Simplified)
	v.SetDefault("simulator.seed", s.Seed)
	v.SetDefault("simulator.queue_when_closed", s.QueueWhenClosed)
	v.SetDefault("simulator.market_hours.open_hour", s.MarketHours.OpenHour)
	v.SetDefault("simulator.market_hours.close_hour", s.MarketHours.CloseHour)
	v.SetDefault("simulator.market_hours.extended_open_hour", s.MarketHours.ExtendedOpenHour)
	v.SetDefault("simulator.market_hours.extended_close_hour", s.MarketHours.ExtendedCloseHour)
	v.SetDefault("simulator.market_hours.trade_weekends", s.MarketHours.TradeWeekends)

	v.SetDefault("portfolio.default_id", d.Portfolio.DefaultID)
	v.SetDefault("portfolio.initial_cash", d.Portfolio.InitialCash)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)

	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.level", d.Notifications.Level)
	v.SetDefault("notifications.webhook.enabled", d.Notifications.Webhook.Enabled)
	v.SetDefault("notifications.webhook.url", d.Notifications.Webhook.URL)
	v.SetDefault("notifications.webhook.timeout", d.Notifications.Webhook.Timeout)
	v.SetDefault("notifications.webhook.rate_per_second", d.Notifications.Webhook.RatePerSecond)
	v.SetDefault("notifications.webhook.burst", d.Notifications.Webhook.Burst)
	v.SetDefault("notifications.kafka.enabled", d.Notifications.Kafka.Enabled)
	v.SetDefault("notifications.kafka.brokers", d.Notifications.Kafka.Brokers)
	v.SetDefault("notifications.kafka.topic", d.Notifications.Kafka.Topic)

	v.SetDefault("market_data.timeout", d.MarketData.Timeout)
	v.SetDefault("market_data.max_attempts", d.MarketData.MaxAttempts)
	v.SetDefault("market_data.initial_delay", d.MarketData.InitialDelay)
	v.SetDefault("market_data.failure_threshold", d.MarketData.FailureThreshold)
	v.SetDefault("market_data.cooldown", d.MarketData.Cooldown)
	v.SetDefault("market_data.max_quote_age", d.MarketData.MaxQuoteAge)

	v.SetDefault("quality.slippage_alert_bps", d.Quality.SlippageAlertBps)
	v.SetDefault("quality.window_size", d.Quality.WindowSize)
	v.SetDefault("quality.alert_on_rejection", d.Quality.AlertOnRejection)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Simulator.Validate(); err != nil {
		return err
	}
	if c.Portfolio.InitialCash < 0 {
		return apperrors.NewValidationError("portfolio.initial_cash", c.Portfolio.InitialCash, "must be non-negative")
	}
	switch c.Notifications.Level {
	case "", "all", "fills_only", "errors_only":
	default:
		return apperrors.NewValidationError("notifications.level", c.Notifications.Level, "must be all, fills_only or errors_only")
	}
	if c.Notifications.Webhook.RatePerSecond < 0 {
		return apperrors.NewValidationError("notifications.webhook.rate_per_second", c.Notifications.Webhook.RatePerSecond, "must be non-negative")
	}
	if c.Notifications.Kafka.Enabled && (len(c.Notifications.Kafka.Brokers) == 0 || c.Notifications.Kafka.Topic == "") {
		return apperrors.NewValidationError("notifications.kafka", c.Notifications.Kafka.Brokers, "brokers and topic are required when enabled")
	}
	if c.MarketData.MaxAttempts < 1 {
		return apperrors.NewValidationError("market_data.max_attempts", c.MarketData.MaxAttempts, "must be at least 1")
	}
	if c.Quality.SlippageAlertBps < 0 {
		return apperrors.NewValidationError("quality.slippage_alert_bps", c.Quality.SlippageAlertBps, "must be non-negative")
	}
	return nil
}

// Validate validates the execution model parameters.
func (s SimulatorConfig) Validate() error {
	probabilities := []struct {
		name  string
		value float64
	}{
		{"fill_probability", s.FillProbability},
		{"partial_fill_probability", s.PartialFillProbability},
		{"price_improvement_probability", s.PriceImprovementProbability},
		{"limit_partial_fill_probability", s.LimitPartialFillProbability},
	}
	for _, p := range probabilities {
		if p.value < 0 || p.value > 1 {
			return apperrors.NewValidationError("simulator."+p.name, p.value, "must be within [0, 1]")
		}
	}

	ranges := []struct {
		name     string
		min, max float64
	}{
		{"partial_fill", s.PartialFillMin, s.PartialFillMax},
		{"limit_partial_fill", s.LimitPartialFillMin, s.LimitPartialFillMax},
	}
	for _, r := range ranges {
		if r.min <= 0 || r.max > 1 || r.min > r.max {
			return apperrors.NewValidationError("simulator."+r.name+"_min/max", []float64{r.min, r.max}, "must satisfy 0 < min <= max <= 1")
		}
	}

	if s.BaseSlippageBps < 0 || s.MaxSlippageBps < 0 {
		return apperrors.NewValidationError("simulator.base_slippage_bps", s.BaseSlippageBps, "slippage must be non-negative")
	}
	if s.ImpactThreshold <= 0 {
		return apperrors.NewValidationError("simulator.impact_threshold", s.ImpactThreshold, "must be positive")
	}
	if s.StopUrgencyMultiplier < 1 {
		return apperrors.NewValidationError("simulator.stop_urgency_multiplier", s.StopUrgencyMultiplier, "must be at least 1")
	}
	if s.PerShareCommission < 0 || s.MinCommission < 0 || s.MinCommission > s.MaxCommission {
		return apperrors.NewValidationError("simulator.min_commission", s.MinCommission, "commission bounds must satisfy 0 <= min <= max")
	}
	if s.SECFeeRate < 0 || s.TAFFeePerShare < 0 {
		return apperrors.NewValidationError("simulator.sec_fee_rate", s.SECFeeRate, "fee rates must be non-negative")
	}
	if s.PriceImprovementMinBps < 0 || s.PriceImprovementMinBps > s.PriceImprovementMaxBps {
		return apperrors.NewValidationError("simulator.price_improvement_min_bps", s.PriceImprovementMinBps, "must satisfy 0 <= min <= max")
	}
	switch s.VolatilityModel {
	case "", "random":
	case "hint":
		if s.ReferenceVolatility <= 0 {
			return apperrors.NewValidationError("simulator.reference_volatility", s.ReferenceVolatility, "must be positive for the hint model")
		}
	default:
		return apperrors.NewValidationError("simulator.volatility_model", s.VolatilityModel, "must be random or hint")
	}
	if s.QuantityPrecision < 0 || s.PricePrecision < 0 {
		return apperrors.NewValidationError("simulator.price_precision", s.PricePrecision, "precision must be non-negative")
	}
	if s.SimulatedLatency < 0 {
		return apperrors.NewValidationError("simulator.simulated_latency", s.SimulatedLatency, "must be non-negative")
	}
	if !s.MarketHours.Validate() {
		return apperrors.NewValidationError("simulator.market_hours", s.MarketHours, "inconsistent session table")
	}
	return nil
}
