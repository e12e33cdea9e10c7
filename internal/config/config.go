package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime knob for the service.
type Config struct {
	DatabaseURL string
	RedisURL    string

	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	Environment        string

	JWTSecret string
	TokenTTL  time.Duration

	LogLevel  string
	LogFormat string

	RateLimitEnabled     bool
	RateLimitSubmissions int
	RateLimitWindow      time.Duration

	// Governance policy knobs.
	GatesEnabled        bool
	PreviewLimit        int
	BulkThreshold       int
	ConfidenceThreshold float64
	ClassifierTimeout   time.Duration
	PreviewTimeout      time.Duration
	SecondFactorTTL     time.Duration
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
)

// Load reads configuration from the environment, with .env as a
// development convenience.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		ServerPort:         getEnvOrDefault("SERVER_PORT", "8080"),
		ServerReadTimeout:  getEnvOrDefaultDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		ServerWriteTimeout: getEnvOrDefaultDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:  getEnvOrDefaultDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		Environment:        getEnvOrDefault("ENV", "development"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvOrDefaultDuration("TOKEN_TTL", time.Hour),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		RateLimitEnabled:     getEnvOrDefaultBool("RATE_LIMIT_ENABLED", true),
		RateLimitSubmissions: getEnvOrDefaultInt("RATE_LIMIT_SUBMISSIONS", 30),
		RateLimitWindow:      getEnvOrDefaultDuration("RATE_LIMIT_WINDOW", time.Minute),

		GatesEnabled:        getEnvOrDefaultBool("GOVERNANCE_GATES_ENABLED", true),
		PreviewLimit:        getEnvOrDefaultInt("GOVERNANCE_PREVIEW_LIMIT", 50),
		BulkThreshold:       getEnvOrDefaultInt("GOVERNANCE_BULK_THRESHOLD", 25),
		ConfidenceThreshold: getEnvOrDefaultFloat("GOVERNANCE_CONFIDENCE_THRESHOLD", 0.5),
		ClassifierTimeout:   getEnvOrDefaultDuration("GOVERNANCE_CLASSIFIER_TIMEOUT", 5*time.Second),
		PreviewTimeout:      getEnvOrDefaultDuration("GOVERNANCE_PREVIEW_TIMEOUT", 5*time.Second),
		SecondFactorTTL:     getEnvOrDefaultDuration("SECOND_FACTOR_TTL", 5*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvOrDefaultDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
