// Package main is the entrypoint for the clicktrail API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clicktrail/clicktrail/internal/config"
	"github.com/clicktrail/clicktrail/internal/server"
	"github.com/clicktrail/clicktrail/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Create every directory up front
	if err := storage.Provision(provisionPaths(cfg)...); err != nil {
		logger.Error("failed to provision storage", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(
			"failed to open state store",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("backend", cfg.StateBackend),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}

	srv := server.New(a.router(), server.Config{
		Addr:            server.Port(cfg.AppPort),
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the store is registered first so it closes last.
	srv.OnShutdown("state store", func(ctx context.Context) error {
		return a.store.Close()
	})
	srv.OnShutdown("click log", func(ctx context.Context) error {
		return a.clickLog.Close()
	})

	if a.janitor != nil {
		go func() {
			if err := a.janitor.Run(ctx); err != nil {
				logger.Error("janitor stopped", "error", err)
			}
		}()
		srv.OnShutdown("janitor", a.janitor.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"state_backend", cfg.StateBackend,
		"click_log", cfg.ClickLogPath,
		"allowed_domains", len(cfg.GetAllowedDomains()),
		"admin_enabled", cfg.AdminEnabled(),
	)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// provisionPaths lists the files whose directories must exist before startup.
func provisionPaths(cfg *config.Config) []string {
	var paths []string
	if cfg.AnalyticsEnabled {
		paths = append(paths, cfg.ClickLogPath)
	}
	if cfg.StateBackend == config.StateBackendBolt {
		paths = append(paths, cfg.StatePath)
	}
	return paths
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
