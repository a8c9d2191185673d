// Package config provides application configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/callprep/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Config holds all application configuration.
type Config struct {
	Port           string   `validate:"required,numeric"`
	FrontendURL    string   `validate:"omitempty,url"`
	AllowedOrigins []string `validate:"required,min=1,dive,required"`
	GRPCAddr       string   `validate:"omitempty,hostname_port"`
	PlaybookPath   string   `validate:"omitempty,file"`
	MaxRequestBody int64    `validate:"gt=0"`
	// TrustProxy enables X-Forwarded-For / X-Real-IP handling.
	TrustProxy bool

	Session   SessionConfig
	Log       LogConfig
	RateLimit RateLimitConfig
}

// SessionConfig controls the coaching session store.
type SessionConfig struct {
	DSN           string        `validate:"required"`
	TTL           time.Duration `validate:"gt=0"`
	SweepInterval time.Duration `validate:"gt=0"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `validate:"oneof=json console"`
	File   string
}

// RateLimitConfig bounds chat requests per owner.
type RateLimitConfig struct {
	Requests int           `validate:"gt=0"`
	Window   time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		GRPCAddr:       getEnv("GRPC_ADDR", ""),
		PlaybookPath:   getEnv("PLAYBOOK_PATH", ""),
		MaxRequestBody: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64<<10)),
		TrustProxy:     getEnvBool("TRUST_PROXY", true),
		Session: SessionConfig{
			DSN:           getEnv("SESSION_DSN", store.MemoryDSN),
			TTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return oops.In("config").Wrapf(err, "invalid configuration")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
