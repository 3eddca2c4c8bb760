package brokerauth

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// DefaultAllowedPhones and DefaultAdminPhones seed the allowlist when no
// configuration is present, so a fresh checkout has at least one operator
// able to log in and administer the user list.
var (
	DefaultAllowedPhones = []string{"+254704505523"}
	DefaultAdminPhones   = []string{"+254704505523"}
)

// Config carries every knob the service reads from the environment.
type Config struct {
	Environment string `json:"environment"`
	HTTPPort    int    `json:"http_port"`
	DSN         string `json:"dsn"`

	Provider string `json:"provider"`

	CookieName     string `json:"cookie_name"`
	SessionTTLDays int    `json:"session_ttl_days"`

	AllowedPhones []string `json:"allowed_phones"`
	AdminPhones   []string `json:"admin_phones"`

	WebhookURLs    []string `json:"webhook_urls"`
	AllowedOrigins []string `json:"allowed_origins"`

	// DevTokenSecret signs dev-provider tokens; ignored by the firebase
	// provider, which reads GOOGLE_APPLICATION_CREDENTIALS on its own.
	DevTokenSecret string `json:"-"`
}

// ConfigFromEnv builds a Config from environment variables, applying the
// defaults a local dev setup expects.
func ConfigFromEnv() *Config {
	cfg := &Config{
		Environment:    envOr("APP_ENV", "development"),
		HTTPPort:       envIntOr("PORT", 8080),
		DSN:            envOr("DATABASE_DSN", "file::memory:?cache=shared"),
		Provider:       envOr("AUTH_PROVIDER", "devtoken"),
		CookieName:     envOr("SESSION_COOKIE_NAME", DefaultCookieName),
		SessionTTLDays: envIntOr("SESSION_TTL_DAYS", 7),
		AllowedPhones:  ParseCommaList(os.Getenv("ALLOWED_PHONES")),
		AdminPhones:    ParseCommaList(os.Getenv("ADMIN_PHONES")),
		WebhookURLs:    ParseCommaList(os.Getenv("NOTIFY_WEBHOOK_URLS")),
		AllowedOrigins: ParseCommaList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DevTokenSecret: envOr("DEVTOKEN_SECRET", "local-dev-secret"),
	}

	if len(cfg.AllowedPhones) == 0 {
		cfg.AllowedPhones = append([]string{}, DefaultAllowedPhones...)
	}
	if len(cfg.AdminPhones) == 0 {
		cfg.AdminPhones = append([]string{}, DefaultAdminPhones...)
	}

	return cfg
}

// Validate will validate the configuration
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Environment, validation.Required),
		validation.Field(&c.HTTPPort, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.Provider, validation.Required, validation.In("firebase", "devtoken")),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.SessionTTLDays, validation.Min(1), validation.Max(14)),
	)
}

// IsProduction reports whether the service runs with production hardening,
// which currently only toggles Secure cookies and the dev webhook sink.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// SessionTTL returns the configured session lifetime.
func (c Config) SessionTTL() time.Duration {
	if c.SessionTTLDays <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(c.SessionTTLDays) * 24 * time.Hour
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
