package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL,required" validate:"required,url"`

	StripeSecretKey     string        `env:"STRIPE_SECRET_KEY,required" validate:"required"`
	StripeWebhookSecret string        `env:"STRIPE_WEBHOOK_SECRET,required" validate:"required"`
	StripeTimeout       time.Duration `env:"STRIPE_TIMEOUT" envDefault:"10s" validate:"gt=0"`

	CheckoutSuccessPath  string   `env:"CHECKOUT_SUCCESS_PATH" envDefault:"/checkout/success" validate:"startswith=/"`
	CheckoutCancelPath   string   `env:"CHECKOUT_CANCEL_PATH" envDefault:"/cart" validate:"startswith=/"`
	CheckoutMembersOnly  bool     `env:"CHECKOUT_MEMBERS_ONLY" envDefault:"false"`
	CheckoutAllowedCIDRs []string `env:"CHECKOUT_ALLOWED_CIDRS" envSeparator:"," validate:"dive,cidr"`

	MemberTokenSecret string `env:"MEMBER_TOKEN_SECRET,required" validate:"required,min=32"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	SessionStoreProvider  string `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"omitempty,oneof=resend postmark mailgun none"`
	EmailAPIKey   string `env:"EMAIL_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM"`
	EmailDomain   string `env:"EMAIL_DOMAIN"`
	ShopName      string `env:"SHOP_NAME" envDefault:"Storefront"`

	CatalogPath string `env:"CATALOG_PATH"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

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

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	switch c.EmailProvider {
	case "resend", "postmark", "mailgun":
		if strings.TrimSpace(c.EmailAPIKey) == "" || strings.TrimSpace(c.EmailFrom) == "" {
			return fmt.Errorf("EMAIL_API_KEY and EMAIL_FROM are required when EMAIL_PROVIDER is %s", c.EmailProvider)
		}
		if c.EmailProvider == "mailgun" && strings.TrimSpace(c.EmailDomain) == "" {
			return fmt.Errorf("EMAIL_DOMAIN is required when EMAIL_PROVIDER is mailgun")
		}
	}

	return nil
}

// CheckoutNetworks parses CHECKOUT_ALLOWED_CIDRS. An empty list allows
// every client.
func (c *Config) CheckoutNetworks() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.CheckoutAllowedCIDRs))
	for _, raw := range c.CheckoutAllowedCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid CHECKOUT_ALLOWED_CIDRS entry %q: %w", raw, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

// SecureCookies reports whether session cookies need the Secure flag.
func (c *Config) SecureCookies() bool {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return true
	}
	return !isLocalHost(parsed.Hostname())
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
