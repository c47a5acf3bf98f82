// Package impression tracks the first click of an IP on a calendar day.
package impression

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clicktrail/clicktrail/internal/kv"
	"github.com/clicktrail/clicktrail/internal/model"
)

const (
	// KeyPrefix namespaces unique-impression markers.
	KeyPrefix = "unique:"

	// markerTTL lets expiring backends drop markers on their own.
	// It outlives the longest possible calendar day in any zone.
	markerTTL = 48 * time.Hour
)

// marker is the presence-only payload. Only existence is observable.
var marker = []byte("1")

// Tracker records unique impressions as (day, ip) markers in a kv.Store.
type Tracker struct {
	store kv.Store
}

// NewTracker creates a Tracker.
func NewTracker(store kv.Store) *Tracker {
	return &Tracker{store: store}
}

// MarkAndCheck reports whether this is the first call for (ip, day).
// day is a DateLayout string. Under concurrent calls for the same key exactly
// one caller gets true.
func (t *Tracker) MarkAndCheck(ctx context.Context, ip, day string) (bool, error) {
	created, err := t.store.CreateIfAbsent(ctx, Key(ip, day), marker, markerTTL)
	if err != nil {
		return false, fmt.Errorf("mark unique impression: %w", err)
	}
	return created, nil
}

// Prune deletes markers for days strictly before the given day.
func (t *Tracker) Prune(ctx context.Context, before string) (int, error) {
	n, err := t.store.DeleteFunc(ctx, KeyPrefix, func(key string, _ []byte) bool {
		day, ok := dayOf(key)
		// DateLayout sorts lexicographically
		return ok && day < before
	})
	if err != nil {
		return n, fmt.Errorf("prune unique markers: %w", err)
	}
	return n, nil
}

// PruneOlderThan keeps the last retention days relative to now in loc.
func (t *Tracker) PruneOlderThan(ctx context.Context, now time.Time, loc *time.Location, retentionDays int) (int, error) {
	if retentionDays < 1 {
		retentionDays = 1
	}
	if loc == nil {
		loc = time.UTC
	}
	cutoff := now.In(loc).AddDate(0, 0, -(retentionDays - 1)).Format(model.DateLayout)
	return t.Prune(ctx, cutoff)
}

// Key returns the store key for (ip, day). The IP is hashed.
func Key(ip, day string) string {
	return KeyPrefix + day + ":" + kv.HashIP(strings.TrimSpace(ip))
}

func dayOf(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return "", false
	}
	day, _, ok := strings.Cut(rest, ":")
	if !ok || len(day) != len(model.DateLayout) {
		return "", false
	}
	return day, true
}
