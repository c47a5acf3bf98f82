package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/metrics"
	"github.com/clicktrail/clicktrail/internal/middleware"
	"github.com/clicktrail/clicktrail/internal/service"
)

// ClickRecorder runs a click through the admission pipeline.
type ClickRecorder interface {
	Record(ctx context.Context, req service.ClickRequest) (*service.ClickOutcome, error)
}

// RedirectHandler handles outbound click redirects.
type RedirectHandler struct {
	svc     ClickRecorder
	limit   int
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewRedirectHandler creates a new RedirectHandler. limit is the per-IP
// ceiling reported in X-RateLimit-Limit.
func NewRedirectHandler(svc ClickRecorder, limit int, logger *slog.Logger, m metrics.Recorder) *RedirectHandler {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &RedirectHandler{
		svc:     svc,
		limit:   limit,
		logger:  logger,
		metrics: m,
	}
}

// Redirect handles GET /out?url={target}.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "MISSING_URL", "query parameter 'url' is required")
		return
	}

	ip := middleware.ClientIP(r)
	outcome, err := h.svc.Record(r.Context(), service.ClickRequest{
		Target:    target,
		IP:        ip,
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if outcome != nil {
		middleware.SetRateLimitHeaders(w, h.limit, outcome.RateLimit)
	}

	switch {
	case err == nil:
	case errors.Is(err, service.ErrAppendFailed):
		// The visitor still gets through; the failure is already logged and counted.
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, "INVALID_URL", err.Error())
		return
	case errors.Is(err, service.ErrDomainNotAllowed):
		h.logger.Info("redirect_rejected",
			"reason", "domain_not_allowed",
			"ip_hash", kv.HashIP(ip),
		)
		writeError(w, http.StatusForbidden, "DOMAIN_NOT_ALLOWED", "Target domain is not allowed")
		return
	case errors.Is(err, service.ErrRateLimited):
		var retryAfter time.Duration
		if outcome != nil && outcome.RateLimit != nil {
			retryAfter = outcome.RateLimit.RetryAfter
		}
		h.logger.Info("redirect_rate_limited",
			"ip_hash", kv.HashIP(ip),
			"retry_after", retryAfter.String(),
		)
		middleware.WriteRateLimitError(w, retryAfter)
		return
	case errors.Is(err, service.ErrLimiterUnavailable):
		middleware.WriteLimiterUnavailable(w)
		return
	default:
		h.logger.Error("redirect_error",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Debug("redirect_success",
		"event_id", eventID(outcome),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	http.Redirect(w, r, outcome.Target, http.StatusFound)
}

func eventID(outcome *service.ClickOutcome) string {
	if outcome.Event == nil {
		return ""
	}
	return outcome.Event.ID
}
