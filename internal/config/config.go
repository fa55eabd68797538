// Package config handles application configuration from environment variables
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	BaseURL       string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	SessionSecret string `env:"SESSION_SECRET"`
	SecureCookies bool   `env:"SECURE_COOKIES" envDefault:"false"`
	AutoMigrate   bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`

	PromptTemplatePath string `env:"PROMPT_TEMPLATE_PATH"`

	LLM      LLMConfig
	Identity IdentityConfig
	Billing  BillingConfig
	Cache    CacheConfig
	Mail     MailConfig
	Worker   WorkerConfig
}

// LLMConfig configures the hosted model the plans are generated with
type LLMConfig struct {
	APIKey      string        `env:"OPEN_ROUTER_API_KEY"`
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	Model       string        `env:"LLM_MODEL" envDefault:"meta-llama/llama-3.2-3b-instruct:free"`
	Temperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"1500"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
}

// IdentityConfig configures the OAuth2 identity provider
type IdentityConfig struct {
	ClientID     string   `env:"IDP_CLIENT_ID"`
	ClientSecret string   `env:"IDP_CLIENT_SECRET"`
	AuthURL      string   `env:"IDP_AUTH_URL"`
	TokenURL     string   `env:"IDP_TOKEN_URL"`
	UserInfoURL  string   `env:"IDP_USERINFO_URL"`
	Scopes       []string `env:"IDP_SCOPES" envDefault:"openid,email,profile"`
}

// Enabled returns true if the identity provider configuration is complete
func (c IdentityConfig) Enabled() bool {
	return c.ClientID != "" && c.AuthURL != "" && c.TokenURL != "" && c.UserInfoURL != ""
}

// BillingConfig holds the payment provider price IDs per plan interval
type BillingConfig struct {
	PriceWeekly  string `env:"STRIPE_PRICE_WEEKLY"`
	PriceMonthly string `env:"STRIPE_PRICE_MONTHLY"`
	PriceYearly  string `env:"STRIPE_PRICE_YEARLY"`
}

// CacheConfig selects where generated plans are cached
type CacheConfig struct {
	Backend string        `env:"CACHE_BACKEND" envDefault:"none"`
	TTL     time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	Dir     string        `env:"CACHE_DIR"`
}

// MailConfig configures outgoing email; an empty address logs mail instead
type MailConfig struct {
	SMTPAddr string `env:"SMTP_ADDR"`
	From     string `env:"MAIL_FROM" envDefault:"no-reply@workoutplan.local"`
}

// WorkerConfig configures the background generation worker
type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`
	MaxRetry    int `env:"WORKER_MAX_RETRY" envDefault:"3"`
}

// Load reads configuration from a .env file (when present) and the environment
func Load() (Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// Validate ensures the settings the API server needs are present
func (c Config) Validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	return errors.Join(append(errs, c.generationErrors()...)...)
}

// ValidateWorker checks the settings the background worker needs. The worker
// never signs anything, so SESSION_SECRET is not required.
func (c Config) ValidateWorker() error {
	errs := c.generationErrors()
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.MaxRetry < 0 {
		errs = append(errs, fmt.Errorf("WORKER_MAX_RETRY must not be negative, got %d", c.Worker.MaxRetry))
	}
	return errors.Join(errs...)
}

// generationErrors covers the model and cache settings both processes use.
func (c Config) generationErrors() []error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("OPEN_ROUTER_API_KEY is required"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLM.MaxTokens))
	}
	switch c.Cache.Backend {
	case "none", "file", "redis":
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND must be none, file or redis, got %q", c.Cache.Backend))
	}
	return errs
}
