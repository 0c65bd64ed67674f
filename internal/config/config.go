package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required" validate:"required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required" validate:"required"`

	PayPalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	PayPalBaseURL      string `env:"PAYPAL_BASE_URL" envDefault:"https://api-m.sandbox.paypal.com" validate:"omitempty,url"`
	PayPalWebhookID    string `env:"PAYPAL_WEBHOOK_ID"`

	BaseCurrency        string   `env:"BASE_CURRENCY" envDefault:"EUR" validate:"required,len=3,uppercase"`
	SupportedCurrencies []string `env:"SUPPORTED_CURRENCIES" envDefault:"EUR,USD,GBP" validate:"required,min=1,dive,len=3,uppercase"`

	ExchangeRateAPIURL string        `env:"EXCHANGE_RATE_API_URL" envDefault:"https://api.frankfurter.dev/v1/latest" validate:"required,url"`
	ExchangeRateTTL    time.Duration `env:"EXCHANGE_RATE_TTL" envDefault:"1h"`
	FallbackRatesPath  string        `env:"FALLBACK_RATES_PATH"`

	SeedCatalogPath string `env:"SEED_CATALOG_PATH"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"noop" validate:"omitempty,oneof=noop resend"`
	EmailAPIKey   string `env:"EMAIL_API_KEY" validate:"required_if=EmailProvider resend"`
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"orders@paycart.dev" validate:"omitempty,email"`

	SentryDSN string `env:"SENTRY_DSN"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	Port      string     `env:"PORT" envDefault:"8080"`
}

var configValidator = validator.New()

func Load() (*Config, error) {
	var cfg Config

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PayPalEnabled reports whether the PayPal gateway should be wired. The
// three credentials must be set together.
func (c *Config) PayPalEnabled() bool {
	return strings.TrimSpace(c.PayPalClientID) != ""
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	hasClientID := strings.TrimSpace(c.PayPalClientID) != ""
	hasClientSecret := strings.TrimSpace(c.PayPalClientSecret) != ""
	hasWebhookID := strings.TrimSpace(c.PayPalWebhookID) != ""
	if hasClientID != hasClientSecret || hasClientID != hasWebhookID {
		return fmt.Errorf("PAYPAL_CLIENT_ID, PAYPAL_CLIENT_SECRET and PAYPAL_WEBHOOK_ID must be set together")
	}

	base := strings.ToUpper(strings.TrimSpace(c.BaseCurrency))
	for _, cur := range c.SupportedCurrencies {
		if strings.ToUpper(strings.TrimSpace(cur)) == base {
			return nil
		}
	}
	return fmt.Errorf("SUPPORTED_CURRENCIES must include the base currency %s", base)
}
