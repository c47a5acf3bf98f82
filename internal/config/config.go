// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/clicktrail/clicktrail/internal/auth"
)

// Supported state backends.
const (
	StateBackendBolt  = "bolt"
	StateBackendRedis = "redis"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Click log
	AnalyticsEnabled bool   `env:"ANALYTICS_ENABLED" envDefault:"true"`
	ClickLogPath     string `env:"CLICK_LOG_PATH" envDefault:"data/clicks.log"`
	ClickLogMaxBytes int64  `env:"CLICK_LOG_MAX_BYTES" envDefault:"10485760"` // 0 disables rotation
	ClickLogSync     bool   `env:"CLICK_LOG_SYNC" envDefault:"false"`

	// Rate limiting
	RateLimitEnabled     bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"20"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`

	// Rate-limit state and unique-impression markers
	StateBackend     string        `env:"STATE_BACKEND" envDefault:"bolt"`
	StatePath        string        `env:"STATE_PATH" envDefault:"data/state.db"`
	StateOpenTimeout time.Duration `env:"STATE_OPEN_TIMEOUT" envDefault:"5s"`
	RedisURL         string        `env:"REDIS_URL" envDefault:""`

	// Proxies whose X-Forwarded-For and X-Real-IP headers are believed.
	// CIDRs or bare addresses. Empty means clients are identified by the
	// socket address only.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Comma-separated list of redirect target domains (subdomains included)
	AllowedDomains string `env:"ALLOWED_DOMAINS" envDefault:""`

	// IANA zone for log timestamps and calendar days
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	// Case-insensitive bot/crawler matching in quality scores
	QualityFoldCase bool `env:"QUALITY_FOLD_CASE" envDefault:"false"`

	// Housekeeping
	UniqueRetentionDays  int           `env:"UNIQUE_RETENTION_DAYS" envDefault:"2"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"` // 0 disables

	// Admin stats endpoint. Empty hash disables the endpoint.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH" envDefault:""`
	AdminRateLimit int    `env:"ADMIN_RATE_LIMIT" envDefault:"60"` // requests per RATE_LIMIT_WINDOW

	// Stats
	StatsTopDomains    int `env:"STATS_TOP_DOMAINS" envDefault:"10"`
	StatsHourlyBuckets int `env:"STATS_HOURLY_BUCKETS" envDefault:"24"`

	location       *time.Location
	trustedProxies []netip.Prefix
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminEnabled reports whether the admin stats endpoint is served.
func (c *Config) AdminEnabled() bool {
	return c.AdminTokenHash != ""
}

// GetAllowedDomains parses the comma-separated domains string into a slice.
func (c *Config) GetAllowedDomains() []string {
	if c.AllowedDomains == "" {
		return nil
	}

	domains := strings.Split(c.AllowedDomains, ",")
	result := make([]string, 0, len(domains))

	for _, domain := range domains {
		trimmed := strings.TrimSpace(domain)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// GetTrustedProxies returns the networks parsed from TRUSTED_PROXIES.
// Nil until Validate succeeds.
func (c *Config) GetTrustedProxies() []netip.Prefix {
	return c.trustedProxies
}

// Location returns the configured time zone. UTC until Validate succeeds.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Validate rejects values the application cannot run with and resolves
// the time zone.
func (c *Config) Validate() error {
	var errs []error

	if c.AppPort <= 0 || c.AppPort > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT %d out of range", c.AppPort))
	}
	if c.ClickLogPath == "" && c.AnalyticsEnabled {
		errs = append(errs, errors.New("CLICK_LOG_PATH is required when analytics is enabled"))
	}
	if c.ClickLogMaxBytes < 0 {
		errs = append(errs, errors.New("CLICK_LOG_MAX_BYTES must not be negative"))
	}
	if c.RateLimitEnabled && c.RateLimitMaxRequests < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_REQUESTS must be at least 1"))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	switch c.StateBackend {
	case StateBackendBolt:
		if c.StatePath == "" {
			errs = append(errs, errors.New("STATE_PATH is required for the bolt backend"))
		}
	case StateBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATE_BACKEND %q is not one of bolt, redis", c.StateBackend))
	}

	if c.UniqueRetentionDays < 1 {
		errs = append(errs, errors.New("UNIQUE_RETENTION_DAYS must be at least 1"))
	}
	if c.HousekeepingInterval < 0 {
		errs = append(errs, errors.New("HOUSEKEEPING_INTERVAL must not be negative"))
	}
	if c.AdminTokenHash != "" {
		if err := auth.ValidateHash(c.AdminTokenHash); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_TOKEN_HASH: %w", err))
		}
	}
	if c.AdminRateLimit < 1 {
		errs = append(errs, errors.New("ADMIN_RATE_LIMIT must be at least 1"))
	}
	if c.StatsTopDomains < 1 || c.StatsHourlyBuckets < 1 {
		errs = append(errs, errors.New("STATS_TOP_DOMAINS and STATS_HOURLY_BUCKETS must be at least 1"))
	}

	proxies, err := parseTrustedProxies(c.TrustedProxies)
	if err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	} else {
		c.trustedProxies = proxies
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE: %w", err))
	} else {
		c.location = loc
	}

	return errors.Join(errs...)
}

// parseTrustedProxies accepts CIDRs and bare addresses. A bare address
// becomes a single-host prefix.
func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, err
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
