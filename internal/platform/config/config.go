package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	SessionSecret string `env:"SESSION_SECRET"`
	RedisURL      string `env:"REDIS_URL"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	WorldBankBaseURL string        `env:"WORLDBANK_BASE_URL" default:"https://api.worldbank.org/v2"`
	RefreshInterval  time.Duration `env:"REFRESH_INTERVAL" default:"60s"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" default:"30s"`
	CountryCacheTTL  time.Duration `env:"COUNTRY_CACHE_TTL" default:"24h"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"24h"`

	RateLimitPerSecond float64 `env:"RATE_LIMIT_PER_SECOND" default:"5"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UseRedis reports whether session tables live in Redis rather than in process memory.
func (c *Config) UseRedis() bool {
	return c.RedisURL != ""
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if len(cfg.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}

	u, err := url.Parse(cfg.WorldBankBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("WORLDBANK_BASE_URL must be an absolute URL, got %q", cfg.WorldBankBaseURL)
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"REFRESH_INTERVAL", cfg.RefreshInterval},
		{"FETCH_TIMEOUT", cfg.FetchTimeout},
		{"COUNTRY_CACHE_TTL", cfg.CountryCacheTTL},
		{"SESSION_MAX_AGE", cfg.SessionMaxAge},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	if cfg.SessionMaxAge < cfg.RefreshInterval {
		return errors.New("SESSION_MAX_AGE must not be shorter than REFRESH_INTERVAL")
	}

	if cfg.RateLimitPerSecond <= 0 || cfg.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_PER_SECOND and RATE_LIMIT_BURST must be positive")
	}

	return nil
}
