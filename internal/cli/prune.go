package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/clicktrail/clicktrail/internal/housekeeping"
	"github.com/clicktrail/clicktrail/internal/impression"
	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/ratelimit"
)

type pruneJSON struct {
	MarkersPruned int `json:"markers_pruned"`
	StatesPruned  int `json:"states_pruned"`
	RetentionDays int `json:"retention_days"`
}

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	store := c.store
	if store == nil {
		store, err = kv.Open(ctx, kv.Options{
			Backend:     cfg.StateBackend,
			Path:        cfg.StatePath,
			OpenTimeout: cfg.StateOpenTimeout,
			RedisURL:    cfg.RedisURL,
		})
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		defer store.Close()
	}

	retention := c.RetentionDays
	if retention <= 0 {
		retention = cfg.UniqueRetentionDays
	}

	janitor := housekeeping.NewJanitor(
		housekeeping.Config{RetentionDays: retention, Location: cfg.Location()},
		impression.NewTracker(store),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		ratelimit.New(store, ratelimit.Config{Enabled: true, Window: cfg.RateLimitWindow, Prefix: ratelimit.IPPrefix}),
		ratelimit.New(store, ratelimit.Config{Enabled: true, Window: cfg.RateLimitWindow, Prefix: ratelimit.AdminPrefix}),
	)

	report, err := janitor.RunOnce(ctx)
	if err != nil {
		return err
	}

	if c.globals != nil && c.globals.JSON {
		return json.NewEncoder(c.out).Encode(pruneJSON{
			MarkersPruned: report.Markers,
			StatesPruned:  report.States,
			RetentionDays: retention,
		})
	}

	fmt.Fprintf(c.out, "Pruned %d unique markers older than %d days\n", report.Markers, retention)
	fmt.Fprintf(c.out, "Pruned %d expired rate limit windows\n", report.States)
	return nil
}
