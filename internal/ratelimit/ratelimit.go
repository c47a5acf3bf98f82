// Package ratelimit provides per-IP fixed-window admission control.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/model"
)

const (
	// IPPrefix is the key prefix for redirect rate limits.
	IPPrefix = "ratelimit:ip:"
	// AdminPrefix is the key prefix for admin endpoint rate limits.
	AdminPrefix = "ratelimit:admin:"
	// DefaultWindow is the reference window duration.
	DefaultWindow = time.Hour
)

// Config controls a Limiter.
type Config struct {
	Enabled     bool
	MaxRequests int           // per-IP ceiling within one window
	Window      time.Duration // fixed window length
	Prefix      string        // key namespace, IPPrefix when empty
}

// Result contains the result of a rate limit check.
type Result struct {
	Allowed    bool
	Count      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits at most MaxRequests per IP per fixed window. State lives in
// a kv.Store so it survives restarts and is shared by every worker using the
// same store.
type Limiter struct {
	store kv.Store
	cfg   Config
	now   func() time.Time
}

// New creates a Limiter.
func New(store kv.Store, cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Prefix == "" {
		cfg.Prefix = IPPrefix
	}
	return &Limiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int {
	return l.cfg.MaxRequests
}

// Check counts one request for ip and reports whether it is admitted.
//
// A new or expired window restarts at count 1. Inside an active window the
// count is incremented while below the ceiling; at the ceiling the request is
// denied and the count is left alone. When the store fails the request is
// denied and the error returned: the limiter fails closed.
func (l *Limiter) Check(ctx context.Context, ip string) (*Result, error) {
	if !l.cfg.Enabled {
		return &Result{Allowed: true, Remaining: l.cfg.MaxRequests}, nil
	}

	now := l.now()
	var result Result

	err := l.store.Update(ctx, l.key(ip), func(current []byte) ([]byte, time.Duration, error) {
		state, ok := decodeState(current)
		if !ok || state.Expired(now, l.cfg.Window) {
			state = model.RateLimitState{WindowStart: now.Unix(), Count: 1}
			result = l.admitted(state, now)
			return encodeState(state), l.ttl(state, now), nil
		}

		if state.Count >= l.cfg.MaxRequests {
			result = l.denied(state, now)
			return nil, 0, nil
		}

		state.Count++
		result = l.admitted(state, now)
		return encodeState(state), l.ttl(state, now), nil
	})
	if err != nil {
		return &Result{Allowed: false}, fmt.Errorf("rate limit check: %w", err)
	}

	return &result, nil
}

// Prune deletes state whose window has expired. Returns the number removed.
func (l *Limiter) Prune(ctx context.Context) (int, error) {
	now := l.now()
	n, err := l.store.DeleteFunc(ctx, l.cfg.Prefix, func(key string, value []byte) bool {
		state, ok := decodeState(value)
		return !ok || state.Expired(now, l.cfg.Window)
	})
	if err != nil {
		return n, fmt.Errorf("prune rate limit state: %w", err)
	}
	return n, nil
}

func (l *Limiter) key(ip string) string {
	return l.cfg.Prefix + kv.HashIP(strings.TrimSpace(ip))
}

func (l *Limiter) admitted(state model.RateLimitState, now time.Time) Result {
	return Result{
		Allowed:   true,
		Count:     state.Count,
		Remaining: max(l.cfg.MaxRequests-state.Count, 0),
		ResetAt:   state.ResetAt(l.cfg.Window),
	}
}

func (l *Limiter) denied(state model.RateLimitState, now time.Time) Result {
	resetAt := state.ResetAt(l.cfg.Window)
	return Result{
		Allowed:    false,
		Count:      state.Count,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: resetAt.Sub(now),
	}
}

// ttl keeps expiring backends from holding state past its window.
func (l *Limiter) ttl(state model.RateLimitState, now time.Time) time.Duration {
	ttl := state.ResetAt(l.cfg.Window).Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func decodeState(data []byte) (model.RateLimitState, bool) {
	var state model.RateLimitState
	if data == nil {
		return state, false
	}
	if err := json.Unmarshal(data, &state); err != nil || state.WindowStart <= 0 {
		// Unreadable state restarts the window.
		return state, false
	}
	return state, true
}

func encodeState(state model.RateLimitState) []byte {
	data, _ := json.Marshal(state)
	return data
}
