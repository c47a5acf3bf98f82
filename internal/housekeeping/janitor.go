// Package housekeeping prunes expired admission state in the background.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the janitor runs when Config.Interval is zero.
const DefaultInterval = time.Hour

// MarkerPruner deletes unique-impression markers older than the retention.
type MarkerPruner interface {
	PruneOlderThan(ctx context.Context, now time.Time, loc *time.Location, retentionDays int) (int, error)
}

// StatePruner deletes rate-limit state whose window has expired.
type StatePruner interface {
	Prune(ctx context.Context) (int, error)
}

// Config controls a Janitor.
type Config struct {
	Interval      time.Duration
	RetentionDays int
	Location      *time.Location
}

// Report summarises one pass.
type Report struct {
	Markers int
	States  int
}

// Janitor periodically prunes markers and rate-limit state.
type Janitor struct {
	markers  MarkerPruner
	limiters []StatePruner
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewJanitor creates a Janitor. markers may be nil.
func NewJanitor(cfg Config, markers MarkerPruner, logger *slog.Logger, limiters ...StatePruner) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Janitor{
		markers:  markers,
		limiters: limiters,
		cfg:      cfg,
		logger:   logger.With("component", "housekeeping.janitor"),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (j *Janitor) WithClock(now func() time.Time) *Janitor {
	j.now = now
	return j
}

// RunOnce performs a single pruning pass. Each pruner runs even if an
// earlier one failed.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	if j.markers != nil {
		n, err := j.markers.PruneOlderThan(ctx, j.now(), j.cfg.Location, j.cfg.RetentionDays)
		report.Markers = n
		if err != nil {
			errs = append(errs, fmt.Errorf("prune markers: %w", err))
		}
	}

	for _, l := range j.limiters {
		n, err := l.Prune(ctx)
		report.States += n
		if err != nil {
			errs = append(errs, fmt.Errorf("prune rate limit state: %w", err))
		}
	}

	return report, errors.Join(errs...)
}

// Run prunes immediately and then on every interval. Blocks until ctx is
// cancelled or Shutdown is called.
func (j *Janitor) Run(ctx context.Context) error {
	j.mu.Lock()
	if j.started {
		j.mu.Unlock()
		return errors.New("janitor already started")
	}
	j.started = true
	j.done = make(chan struct{})
	ctx, j.cancel = context.WithCancel(ctx)
	j.mu.Unlock()

	defer close(j.done)

	j.logger.Info("janitor started", "interval", j.cfg.Interval, "retention_days", j.cfg.RetentionDays)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		j.pass(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopping")
			return nil
		case <-ticker.C:
		}
	}
}

func (j *Janitor) pass(ctx context.Context) {
	start := time.Now()
	report, err := j.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		j.logger.Error("housekeeping pass failed", "error", err)
	}
	if report.Markers > 0 || report.States > 0 {
		j.logger.Info("housekeeping pass",
			"markers_pruned", report.Markers,
			"states_pruned", report.States,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Shutdown stops Run and waits for the current pass to finish.
// It implements server.ShutdownFunc.
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.mu.Lock()
	if !j.started {
		j.mu.Unlock()
		return nil
	}
	cancel := j.cancel
	done := j.done
	j.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		j.logger.Warn("janitor shutdown timed out")
		return ctx.Err()
	}
}
