package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/clicktrail/clicktrail/internal/ratelimit"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter *ratelimit.Limiter
	Type    string // logged as "type", e.g. "admin"
}

// RateLimitIP returns middleware that rate limits requests per client IP.
// A limiter storage failure rejects the request with 503.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			result, err := cfg.Limiter.Check(r.Context(), ip)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("type", cfg.Type),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				// Fail closed
				WriteLimiterUnavailable(w)
				return
			}

			SetRateLimitHeaders(w, cfg.Limiter.Limit(), result)

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", cfg.Type),
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", retryAfterSeconds(result.RetryAfter)),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				WriteRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SetRateLimitHeaders sets standard rate limit response headers.
func SetRateLimitHeaders(w http.ResponseWriter, limit int, result *ratelimit.Result) {
	if limit <= 0 || result == nil || result.ResetAt.IsZero() {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// WriteRateLimitError writes a 429 Too Many Requests response with Retry-After.
func WriteRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := retryAfterSeconds(retryAfter)
	w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf(`{"error":"Rate limit exceeded. Retry after %d seconds.","code":"RATE_LIMITED"}`, seconds)
	_, _ = w.Write([]byte(msg))
}

// WriteLimiterUnavailable writes the fail-closed 503 response.
func WriteLimiterUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "60")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"error":"Rate limiter unavailable","code":"SERVICE_UNAVAILABLE"}`))
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64(math.Ceil(d.Seconds()))
}

// ClientIP returns the address rate limits and unique impressions are keyed
// by: RemoteAddr without its port. Forwarding headers only count when RealIP
// has already rewritten RemoteAddr for a trusted proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
