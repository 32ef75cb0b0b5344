package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scoring  ScoringConfig
	Policy   PolicyConfig
	Logging  LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	AllowedOriginsCSV string
}

// DatabaseConfig describes connectivity to the transaction datastore. An
// empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// RedisConfig describes the optional read-through projection cache. An empty
// address disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	FeedTTL  time.Duration
}

// ScoringConfig describes the external fraud-scoring endpoint.
type ScoringConfig struct {
	URL string
	// Payload selects how the payment document travels: "xml" posts the raw
	// document, "json" wraps it in a {"data": ...} envelope.
	Payload  string
	Timeout  time.Duration
	FailOpen bool
}

// PolicyConfig enumerates the classification and transfer policy knobs.
type PolicyConfig struct {
	FlagThreshold     float64
	BlockThreshold    float64
	TransferFee       decimal.Decimal
	Currency          string
	HighValueAdvisory decimal.Decimal
	FeedPollInterval  time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultDBMaxConns      = 10
	defaultScoringTimeout  = 10 * time.Second
	defaultScoringPayload  = "xml"
	defaultFlagThreshold   = 0.5
	defaultBlockThreshold  = 0.8
	defaultCurrency        = "TZS"
	defaultFeedTTL         = 2 * time.Second
	defaultPollInterval    = 2 * time.Second
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:              valueOrDefault("SERVER_HOST", defaultHost),
			ReadTimeout:       defaultReadTimeout,
			WriteTimeout:      defaultWriteTimeout,
			IdleTimeout:       defaultIdleTimeout,
			ShutdownTimeout:   defaultShutdownTimeout,
			AllowedOriginsCSV: os.Getenv("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MaxConnections: parseIntWithDefault("DATABASE_MAX_CONNECTIONS", defaultDBMaxConns),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseIntWithDefault("REDIS_DB", 0),
			FeedTTL:  defaultFeedTTL,
		},
		Scoring: ScoringConfig{
			URL:      os.Getenv("SCORING_URL"),
			Payload:  valueOrDefault("SCORING_PAYLOAD", defaultScoringPayload),
			Timeout:  defaultScoringTimeout,
			FailOpen: parseBoolWithDefault("SCORING_FAIL_OPEN", true),
		},
		Policy: PolicyConfig{
			FlagThreshold:    parseFloatWithDefault("POLICY_FLAG_THRESHOLD", defaultFlagThreshold),
			BlockThreshold:   parseFloatWithDefault("POLICY_BLOCK_THRESHOLD", defaultBlockThreshold),
			Currency:         valueOrDefault("POLICY_CURRENCY", defaultCurrency),
			FeedPollInterval: defaultPollInterval,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	for _, tc := range []struct {
		key  string
		dest *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout},
		{"SCORING_TIMEOUT", &cfg.Scoring.Timeout},
		{"FEED_POLL_INTERVAL", &cfg.Policy.FeedPollInterval},
		{"REDIS_FEED_TTL", &cfg.Redis.FeedTTL},
	} {
		if v := os.Getenv(tc.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", tc.key, err)
			}
			*tc.dest = d
		}
	}

	fee, err := parseDecimalWithDefault("POLICY_TRANSFER_FEE", decimal.Zero)
	if err != nil {
		return Config{}, err
	}
	cfg.Policy.TransferFee = fee

	advisory, err := parseDecimalWithDefault("POLICY_HIGH_VALUE_ADVISORY", decimal.NewFromInt(1_000_000))
	if err != nil {
		return Config{}, err
	}
	cfg.Policy.HighValueAdvisory = advisory

	if cfg.Scoring.Payload != "xml" && cfg.Scoring.Payload != "json" {
		return Config{}, fmt.Errorf("invalid SCORING_PAYLOAD %q: must be xml or json", cfg.Scoring.Payload)
	}
	if cfg.Policy.FlagThreshold > cfg.Policy.BlockThreshold {
		return Config{}, fmt.Errorf("flag threshold %v exceeds block threshold %v",
			cfg.Policy.FlagThreshold, cfg.Policy.BlockThreshold)
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseFloatWithDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil {
			return val
		}
	}
	return fallback
}

func parseDecimalWithDefault(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
