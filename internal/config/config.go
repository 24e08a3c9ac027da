package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/clinicaleng/cmms/internal/platform/plan"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	AuthIssuer               string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL              string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience             string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey           string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant            string        `mapstructure:"DEFAULT_TENANT"`
	DefaultPlan              string        `mapstructure:"DEFAULT_PLAN"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS             float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int           `mapstructure:"RATE_LIMIT_BURST"`
	PublicRateLimitPerMinute int           `mapstructure:"PUBLIC_RATE_LIMIT_PER_MINUTE"`
	BulkMaxItems             int           `mapstructure:"BULK_MAX_ITEMS"`
	BulkTxTimeout            time.Duration `mapstructure:"BULK_TX_TIMEOUT"`
	RequestTimeout           time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AlertRecipients          []string      `mapstructure:"ALERT_RECIPIENTS"`
	NotificationChannel      string        `mapstructure:"NOTIFICATION_CHANNEL"`
	TrustedProxies           []string      `mapstructure:"TRUSTED_PROXIES"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEFAULT_TENANT", "DEFAULT_PLAN", "CORS_ORIGINS", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "PUBLIC_RATE_LIMIT_PER_MINUTE", "BULK_MAX_ITEMS",
	"BULK_TX_TIMEOUT", "REQUEST_TIMEOUT", "ALERT_RECIPIENTS", "NOTIFICATION_CHANNEL",
	"TRUSTED_PROXIES",
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first without overriding variables that
// are already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("DEFAULT_PLAN", string(plan.Basico))
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("PUBLIC_RATE_LIMIT_PER_MINUTE", 10)
	v.SetDefault("BULK_MAX_ITEMS", 100)
	v.SetDefault("BULK_TX_TIMEOUT", 60*time.Second)
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("NOTIFICATION_CHANNEL", "cmms:notifications")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.AlertRecipients = splitList(cfg.AlertRecipients)
	cfg.TrustedProxies = splitList(cfg.TrustedProxies)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitList expands a single comma separated env value into its trimmed,
// non-empty parts.
func splitList(in []string) []string {
	if len(in) == 1 && strings.Contains(in[0], ",") {
		in = strings.Split(in[0], ",")
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source is mandatory.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
	}
	if c.IsProduction() && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_ISSUER is required in production")
	}
	if !plan.Tier(c.DefaultPlan).Valid() {
		return fmt.Errorf("DEFAULT_PLAN must be BASICO, PROFISSIONAL or ENTERPRISE, got %q", c.DefaultPlan)
	}
	if c.BulkMaxItems < 1 {
		return fmt.Errorf("BULK_MAX_ITEMS must be positive, got %d", c.BulkMaxItems)
	}
	if c.BulkTxTimeout <= 0 {
		return fmt.Errorf("BULK_TX_TIMEOUT must be positive, got %s", c.BulkTxTimeout)
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("TRUSTED_PROXIES: %w", err)
		}
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
