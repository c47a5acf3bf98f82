package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clicktrail/clicktrail/internal/auth"
)

const (
	// AdminTokenHeader carries the admin token when Authorization is not used.
	AdminTokenHeader = "X-Admin-Token"

	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
)

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger    *slog.Logger
	TokenHash string // argon2id PHC string

	// MinDuration pads every auth decision; minAuthDuration when zero.
	MinDuration time.Duration
}

// AdminAuth returns a middleware that admits requests carrying the admin
// token as "Authorization: Bearer <token>" or "X-Admin-Token: <token>".
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration <= 0 {
		minDuration = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ok, reason := verifyAdmin(r, cfg.TokenHash)

			// Ensure consistent timing regardless of outcome
			if elapsed := time.Since(start); elapsed < minDuration {
				time.Sleep(minDuration - elapsed)
			}

			if !ok {
				cfg.Logger.Warn("admin authentication failed",
					slog.String("reason", reason),
					slog.String("ip", ClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifyAdmin(r *http.Request, tokenHash string) (bool, string) {
	token := extractAdminToken(r)
	if token == "" {
		return false, "missing_token"
	}

	match, err := auth.VerifyToken(token, tokenHash)
	if err != nil {
		return false, "invalid_hash"
	}
	if !match {
		return false, "invalid_token"
	}
	return true, ""
}

// extractAdminToken supports both "Authorization: Bearer <token>" and
// "X-Admin-Token: <token>" headers.
func extractAdminToken(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(AdminTokenHeader))
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="clicktrail-admin"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid or missing admin token","code":"UNAUTHORIZED"}`))
}
