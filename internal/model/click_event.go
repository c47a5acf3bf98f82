// Package model defines domain entities for the application.
package model

import "time"

// Timestamp layouts used in the click log.
const (
	// TimestampLayout is second precision and sorts lexicographically.
	TimestampLayout = "2006-01-02 15:04:05"
	// DateLayout is the prefix of TimestampLayout used for "today" matching.
	DateLayout = "2006-01-02"
	// HourLayout is the prefix of TimestampLayout used for hourly buckets.
	HourLayout = "2006-01-02 15"
)

// ClickEvent is one outbound click, serialized as a single log line.
// Events are immutable once written.
type ClickEvent struct {
	ID               string `json:"id,omitempty"` // ULID (time-sortable)
	Timestamp        string `json:"timestamp"`    // TimestampLayout in the configured zone
	IP               string `json:"ip"`
	URL              string `json:"url"`
	UserAgent        string `json:"user_agent"`
	Referer          string `json:"referer"`
	UniqueImpression bool   `json:"unique_impression"`
	QualityScore     int    `json:"quality_score"`
}

// FormatTimestamp renders t with second precision in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimestampLayout)
}

// ClickedAt parses the event timestamp in loc.
func (e *ClickEvent) ClickedAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(TimestampLayout, e.Timestamp, loc)
}

// RateLimitState is the persisted fixed-window counter for one IP.
type RateLimitState struct {
	WindowStart int64 `json:"window_start"` // Unix seconds
	Count       int   `json:"count"`
}

// Expired reports whether the window has elapsed at now.
func (s *RateLimitState) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(time.Unix(s.WindowStart, 0)) >= window
}

// ResetAt returns when the current window ends.
func (s *RateLimitState) ResetAt(window time.Duration) time.Time {
	return time.Unix(s.WindowStart, 0).Add(window)
}

// AggregatedStats is the derived, non-persisted view over the click log.
type AggregatedStats struct {
	Total       int64         `json:"total"`
	Today       int64         `json:"today"`
	Date        string        `json:"date"` // DateLayout used for Today
	Skipped     int64         `json:"skipped"`
	Segments    int           `json:"segments"`
	TopDomains  []DomainCount `json:"top_domains"`
	Hourly      []HourBucket  `json:"hourly"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// DomainCount represents clicks towards a target host.
type DomainCount struct {
	Domain string `json:"domain"`
	Clicks int64  `json:"clicks"`
}

// HourBucket represents clicks within one hour (HourLayout key).
type HourBucket struct {
	Hour   string `json:"hour"`
	Clicks int64  `json:"clicks"`
}
