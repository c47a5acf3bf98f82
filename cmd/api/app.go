package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clicktrail/clicktrail/internal/clicklog"
	"github.com/clicktrail/clicktrail/internal/config"
	"github.com/clicktrail/clicktrail/internal/handler"
	"github.com/clicktrail/clicktrail/internal/housekeeping"
	"github.com/clicktrail/clicktrail/internal/impression"
	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/metrics"
	"github.com/clicktrail/clicktrail/internal/middleware"
	"github.com/clicktrail/clicktrail/internal/quality"
	"github.com/clicktrail/clicktrail/internal/ratelimit"
	"github.com/clicktrail/clicktrail/internal/service"
	"github.com/clicktrail/clicktrail/internal/stats"
)

// app holds the wired components of one server process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store        kv.Store
	clickLog     *clicklog.Logger
	metrics      *metrics.InMemoryRecorder
	limiter      *ratelimit.Limiter
	adminLimiter *ratelimit.Limiter
	clicks       *service.ClickService
	janitor      *housekeeping.Janitor // nil when HOUSEKEEPING_INTERVAL is 0
}

// newApp opens the state store and builds every component on top of it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := kv.Open(ctx, kv.Options{
		Backend:     cfg.StateBackend,
		Path:        cfg.StatePath,
		OpenTimeout: cfg.StateOpenTimeout,
		RedisURL:    cfg.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s state store: %w", cfg.StateBackend, err)
	}

	recorder := metrics.NewInMemory()

	clickLog := clicklog.New(clicklog.Config{
		Enabled:  cfg.AnalyticsEnabled,
		Path:     cfg.ClickLogPath,
		MaxBytes: cfg.ClickLogMaxBytes,
		Sync:     cfg.ClickLogSync,
		Location: cfg.Location(),
	}, logger, recorder)

	limiter := ratelimit.New(store, ratelimit.Config{
		Enabled:     cfg.RateLimitEnabled,
		MaxRequests: cfg.RateLimitMaxRequests,
		Window:      cfg.RateLimitWindow,
		Prefix:      ratelimit.IPPrefix,
	})
	adminLimiter := ratelimit.New(store, ratelimit.Config{
		Enabled:     cfg.RateLimitEnabled,
		MaxRequests: cfg.AdminRateLimit,
		Window:      cfg.RateLimitWindow,
		Prefix:      ratelimit.AdminPrefix,
	})
	tracker := impression.NewTracker(store)

	clicks := service.NewClickService(
		service.NewAllowlist(cfg.GetAllowedDomains()),
		limiter,
		tracker,
		quality.Scorer{FoldCase: cfg.QualityFoldCase},
		clickLog,
		cfg.Location(),
		logger.With("component", "service.click"),
		recorder,
	)

	a := &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		clickLog:     clickLog,
		metrics:      recorder,
		limiter:      limiter,
		adminLimiter: adminLimiter,
		clicks:       clicks,
	}

	if cfg.HousekeepingInterval > 0 {
		a.janitor = housekeeping.NewJanitor(housekeeping.Config{
			Interval:      cfg.HousekeepingInterval,
			RetentionDays: cfg.UniqueRetentionDays,
			Location:      cfg.Location(),
		}, tracker, logger, limiter, adminLimiter)
	}

	return a, nil
}

// router configures the chi router with all routes and middleware.
func (a *app) router() *chi.Mux {
	h := handler.New()
	healthHandler := handler.NewHealthHandler(a.store, a.clickLog)
	metricsHandler := handler.NewMetricsHandler(a.metrics)
	redirectHandler := handler.NewRedirectHandler(a.clicks, a.limiter.Limit(), a.logger.With("component", "handler.redirect"), a.metrics)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP(a.cfg.GetTrustedProxies()))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(a.logger))
	r.Use(middleware.Recoverer(a.logger, a.cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: a.cfg.IsDevelopment()}))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Index)

	// Outbound click redirect; admission happens inside the click service
	r.Get("/out", redirectHandler.Redirect)

	if a.cfg.AdminEnabled() {
		statsHandler := handler.NewStatsHandler(a.clickLog, stats.Aggregator{
			Location:    a.cfg.Location(),
			TopN:        a.cfg.StatsTopDomains,
			HourBuckets: a.cfg.StatsHourlyBuckets,
		}, a.logger.With("component", "handler.stats"), a.metrics)

		r.Route("/admin", func(r chi.Router) {
			// Rate limit before auth so token guessing is throttled too
			r.Use(middleware.RateLimitIP(middleware.RateLimitConfig{
				Logger:  a.logger,
				Limiter: a.adminLimiter,
				Type:    "admin",
			}))
			r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
				Logger:    a.logger,
				TokenHash: a.cfg.AdminTokenHash,
			}))
			r.Get("/stats", statsHandler.Stats)
		})
	}

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
