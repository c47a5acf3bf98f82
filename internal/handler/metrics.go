package handler

import (
	"fmt"
	"net/http"

	"github.com/clicktrail/clicktrail/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "clicktrail_clicks_recorded_total %d\n", snap.ClicksRecorded)
	writeMetric(w, "clicktrail_unique_impressions_total %d\n", snap.UniqueImpressions)
	writeMetric(w, "clicktrail_redirects_rejected_total{reason=\"domain_not_allowed\"} %d\n", snap.DomainRejections)
	writeMetric(w, "clicktrail_redirects_rejected_total{reason=\"rate_limited\"} %d\n", snap.RateLimited)
	writeMetric(w, "clicktrail_limiter_failures_total %d\n", snap.LimiterFailures)
	writeMetric(w, "clicktrail_tracker_failures_total %d\n", snap.TrackerFailures)
	writeMetric(w, "clicktrail_redirect_duration_seconds_count %d\n", snap.RedirectDurationCount)
	writeMetric(w, "clicktrail_redirect_duration_seconds_sum %.6f\n", float64(snap.RedirectDurationTotalNs)/1e9)

	writeMetric(w, "clicktrail_click_log_append_failures_total %d\n", snap.AppendFailures)
	writeMetric(w, "clicktrail_click_log_rotations_total %d\n", snap.LogRotations)

	writeMetric(w, "clicktrail_stats_duration_seconds_count %d\n", snap.StatsDurationCount)
	writeMetric(w, "clicktrail_stats_duration_seconds_sum %.6f\n", float64(snap.StatsDurationTotalNs)/1e9)
	writeMetric(w, "clicktrail_stats_skipped_records_total %d\n", snap.SkippedRecords)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
