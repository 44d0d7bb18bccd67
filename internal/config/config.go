// Package config loads runtime configuration for the earnings VRP digest
// service from environment variables, following OS env > .env file >
// built-in defaults. There is no OS secret-store integration available
// in this deployment target, so that top priority tier is a no-op here.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every tunable the core components need at startup.
type Config struct {
	Port    int
	DevMode bool

	DatabasePath string

	LogLevel string

	EarningsCalendarAPIKey string
	OptionsDataAPIKey      string
	PaidSentimentAPIKey    string
	DownstreamWebhookURL   string
	DownstreamSecret       string

	AlertIngestSharedKey string
	BotWebhookSecret     string

	EarningsCalendarBucketCapacity float64
	EarningsCalendarRefillPerSec   float64
	OptionsDataBucketCapacity      float64
	OptionsDataRefillPerSec        float64
	SentimentBucketCapacity        float64
	SentimentRefillPerSec          float64

	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerRecoveryTimeout  time.Duration

	DailyCallCeiling         int
	MonthlyCostCeiling       float64
	PaidSentimentCostPerCall float64

	MinHistoricalMoves int

	LiquidityMinOI              int
	LiquidityGoodOI             int
	LiquidityExcellentOI        int
	LiquidityMinVolume          int
	LiquidityGoodVolume         int
	LiquidityExcellentVolume    int
	LiquidityMaxSpreadPct       float64
	LiquidityGoodSpreadPct      float64
	LiquidityExcellentSpreadPct float64

	TradeableThreshold float64

	VRPRatioFloor   float64
	MaxDigestSize   int
	SentimentHotTTL time.Duration

	CacheL1Capacity    int
	CacheSchemaVersion string

	IVLogRetentionDays int

	MaxConcurrentJobs int
}

// Load reads configuration from the environment, applying defaults for
// anything unset, then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnvAsInt("PORT", 8080),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DatabasePath: getEnv("DATABASE_PATH", "./data/vrp.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		EarningsCalendarAPIKey: getEnv("EARNINGS_CALENDAR_API_KEY", ""),
		OptionsDataAPIKey:      getEnv("OPTIONS_DATA_API_KEY", ""),
		PaidSentimentAPIKey:    getEnv("PAID_SENTIMENT_API_KEY", ""),
		DownstreamWebhookURL:   getEnv("DOWNSTREAM_WEBHOOK_URL", ""),
		DownstreamSecret:       getEnv("DOWNSTREAM_SECRET", ""),

		AlertIngestSharedKey: getEnv("ALERT_INGEST_SHARED_KEY", ""),
		BotWebhookSecret:     getEnv("BOT_WEBHOOK_SECRET", ""),

		EarningsCalendarBucketCapacity: getEnvAsFloat("EARNINGS_CALENDAR_BUCKET_CAPACITY", 25),
		EarningsCalendarRefillPerSec:   getEnvAsFloat("EARNINGS_CALENDAR_REFILL_PER_SEC", 25.0/86400.0),
		OptionsDataBucketCapacity:      getEnvAsFloat("OPTIONS_DATA_BUCKET_CAPACITY", 60),
		OptionsDataRefillPerSec:        getEnvAsFloat("OPTIONS_DATA_REFILL_PER_SEC", 1.0),
		SentimentBucketCapacity:        getEnvAsFloat("SENTIMENT_BUCKET_CAPACITY", 5),
		SentimentRefillPerSec:          getEnvAsFloat("SENTIMENT_REFILL_PER_SEC", 0.05),

		BreakerFailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: getEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerRecoveryTimeout:  getEnvAsDuration("BREAKER_RECOVERY_TIMEOUT", 60*time.Second),

		DailyCallCeiling:         getEnvAsInt("DAILY_CALL_CEILING", 40),
		MonthlyCostCeiling:       getEnvAsFloat("MONTHLY_COST_CEILING", 5.00),
		PaidSentimentCostPerCall: getEnvAsFloat("PAID_SENTIMENT_COST_PER_CALL", 0.01),

		MinHistoricalMoves: getEnvAsInt("MIN_HISTORICAL_MOVES", 4),

		LiquidityMinOI:              getEnvAsInt("LIQUIDITY_MIN_OI", 50),
		LiquidityGoodOI:             getEnvAsInt("LIQUIDITY_GOOD_OI", 200),
		LiquidityExcellentOI:        getEnvAsInt("LIQUIDITY_EXCELLENT_OI", 1000),
		LiquidityMinVolume:          getEnvAsInt("LIQUIDITY_MIN_VOLUME", 10),
		LiquidityGoodVolume:         getEnvAsInt("LIQUIDITY_GOOD_VOLUME", 100),
		LiquidityExcellentVolume:    getEnvAsInt("LIQUIDITY_EXCELLENT_VOLUME", 500),
		LiquidityMaxSpreadPct:       getEnvAsFloat("LIQUIDITY_MAX_SPREAD_PCT", 0.15),
		LiquidityGoodSpreadPct:      getEnvAsFloat("LIQUIDITY_GOOD_SPREAD_PCT", 0.08),
		LiquidityExcellentSpreadPct: getEnvAsFloat("LIQUIDITY_EXCELLENT_SPREAD_PCT", 0.03),

		TradeableThreshold: getEnvAsFloat("TRADEABLE_THRESHOLD", 55.0),

		VRPRatioFloor:   getEnvAsFloat("VRP_RATIO_FLOOR", 1.2),
		MaxDigestSize:   getEnvAsInt("MAX_DIGEST_SIZE", 15),
		SentimentHotTTL: getEnvAsDuration("SENTIMENT_HOT_TTL", 3*time.Hour),

		CacheL1Capacity:    getEnvAsInt("CACHE_L1_CAPACITY", 2048),
		CacheSchemaVersion: getEnv("CACHE_SCHEMA_VERSION", "v1"),

		IVLogRetentionDays: getEnvAsInt("IV_LOG_RETENTION_DAYS", 180),

		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants that must hold before the
// service accepts webhook traffic or schedules any job.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MinHistoricalMoves < 1 {
		return fmt.Errorf("MIN_HISTORICAL_MOVES must be >= 1")
	}
	if c.MaxDigestSize < 1 {
		return fmt.Errorf("MAX_DIGEST_SIZE must be >= 1")
	}
	if c.DailyCallCeiling < 0 || c.MonthlyCostCeiling < 0 {
		return fmt.Errorf("budget ceilings must be non-negative")
	}
	return nil
}

// AlertIngestConfigured reports whether the alert-ingest endpoint has a
// shared key and may therefore accept requests. Fails closed otherwise.
func (c *Config) AlertIngestConfigured() bool {
	return c.AlertIngestSharedKey != ""
}

// BotWebhookConfigured reports whether the bot-webhook endpoint has a
// secret token configured.
func (c *Config) BotWebhookConfigured() bool {
	return c.BotWebhookSecret != ""
}

// MarshalZerologObject masks every secret-shaped field so dumping the
// config to structured logs at startup never leaks credentials.
func (c *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Int("port", c.Port).
		Bool("dev_mode", c.DevMode).
		Str("database_path", c.DatabasePath).
		Str("log_level", c.LogLevel).
		Str("earnings_calendar_api_key", mask(c.EarningsCalendarAPIKey)).
		Str("options_data_api_key", mask(c.OptionsDataAPIKey)).
		Str("paid_sentiment_api_key", mask(c.PaidSentimentAPIKey)).
		Str("downstream_secret", mask(c.DownstreamSecret)).
		Str("alert_ingest_shared_key", mask(c.AlertIngestSharedKey)).
		Str("bot_webhook_secret", mask(c.BotWebhookSecret)).
		Int("daily_call_ceiling", c.DailyCallCeiling).
		Float64("monthly_cost_ceiling", c.MonthlyCostCeiling)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
