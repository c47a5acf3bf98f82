// Package service composes the click pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/metrics"
	"github.com/clicktrail/clicktrail/internal/model"
	"github.com/clicktrail/clicktrail/internal/ratelimit"
)

// Service errors.
var (
	ErrInvalidURL         = errors.New("invalid target URL")
	ErrURLTooLong         = errors.New("target URL too long")
	ErrDomainNotAllowed   = errors.New("target domain not allowed")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrLimiterUnavailable = errors.New("rate limiter unavailable")
	ErrAppendFailed       = errors.New("click not recorded")
)

// RateLimiter admits or denies a request from ip.
type RateLimiter interface {
	Check(ctx context.Context, ip string) (*ratelimit.Result, error)
}

// ImpressionTracker reports the first click of ip on day.
type ImpressionTracker interface {
	MarkAndCheck(ctx context.Context, ip, day string) (bool, error)
}

// Scorer scores traffic quality.
type Scorer interface {
	Score(userAgent, referer string) int
}

// EventLog persists click events.
type EventLog interface {
	Append(ctx context.Context, event *model.ClickEvent) error
}

// ClickRequest is one inbound redirect.
type ClickRequest struct {
	Target    string
	IP        string
	UserAgent string
	Referer   string
}

// ClickOutcome is what Record decided.
type ClickOutcome struct {
	Target    string
	Event     *model.ClickEvent // nil unless the click was admitted
	RateLimit *ratelimit.Result // nil when rejected before the limiter
}

// ClickService validates, admits, scores and logs outbound clicks.
type ClickService struct {
	allowlist *Allowlist
	limiter   RateLimiter
	tracker   ImpressionTracker
	scorer    Scorer
	log       EventLog
	location  *time.Location
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewClickService creates a new ClickService.
func NewClickService(
	allowlist *Allowlist,
	limiter RateLimiter,
	tracker ImpressionTracker,
	scorer Scorer,
	log EventLog,
	location *time.Location,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *ClickService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickService{
		allowlist: allowlist,
		limiter:   limiter,
		tracker:   tracker,
		scorer:    scorer,
		log:       log,
		location:  location,
		metrics:   recorder,
		logger:    logger.With("component", "service.click"),
		now:       time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *ClickService) WithClock(now func() time.Time) *ClickService {
	s.now = now
	return s
}

// Record runs one click through the pipeline:
// allowlist, rate limit, unique impression, quality score, append.
//
// A rejected click returns ErrInvalidURL, ErrURLTooLong, ErrDomainNotAllowed,
// ErrRateLimited or ErrLimiterUnavailable and nothing is logged. An admitted
// click whose append failed returns a populated outcome wrapped with
// ErrAppendFailed; the redirect may still proceed.
func (s *ClickService) Record(ctx context.Context, req ClickRequest) (*ClickOutcome, error) {
	target, err := ParseTarget(req.Target)
	if err != nil {
		return nil, err
	}

	if !s.allowlist.Allows(target.Hostname()) {
		s.metrics.IncDomainRejected()
		return nil, ErrDomainNotAllowed
	}

	outcome := &ClickOutcome{Target: req.Target}

	result, err := s.limiter.Check(ctx, req.IP)
	outcome.RateLimit = result
	if err != nil {
		s.metrics.IncLimiterFailure()
		s.logger.Error("rate limiter failed, denying request",
			"ip_hash", kv.HashIP(req.IP),
			"error", err,
		)
		return outcome, fmt.Errorf("%w: %w", ErrLimiterUnavailable, err)
	}
	if !result.Allowed {
		s.metrics.IncRateLimited()
		return outcome, ErrRateLimited
	}

	now := s.now()
	day := now.In(s.location).Format(model.DateLayout)

	unique, err := s.tracker.MarkAndCheck(ctx, req.IP, day)
	if err != nil {
		s.metrics.IncTrackerFailure()
		s.logger.Warn("unique impression check failed",
			"ip_hash", kv.HashIP(req.IP),
			"error", err,
		)
		unique = false
	}

	event := &model.ClickEvent{
		ID:               ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Timestamp:        model.FormatTimestamp(now, s.location),
		IP:               req.IP,
		URL:              outcome.Target,
		UserAgent:        req.UserAgent,
		Referer:          req.Referer,
		UniqueImpression: unique,
		QualityScore:     s.scorer.Score(req.UserAgent, req.Referer),
	}
	outcome.Event = event

	if err := s.log.Append(ctx, event); err != nil {
		s.metrics.IncAppendFailure()
		s.logger.Error("failed to append click event",
			"event_id", event.ID,
			"error", err,
		)
		return outcome, fmt.Errorf("%w: %w", ErrAppendFailed, err)
	}

	s.metrics.IncClickRecorded(unique)
	return outcome, nil
}
