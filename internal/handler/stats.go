package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clicktrail/clicktrail/internal/handler/dto"
	"github.com/clicktrail/clicktrail/internal/metrics"
	"github.com/clicktrail/clicktrail/internal/model"
	"github.com/clicktrail/clicktrail/internal/stats"
)

// SegmentSource locates the click log segments.
type SegmentSource interface {
	Path() string
	Segments() ([]string, error)
}

// StatsHandler serves aggregated click statistics.
type StatsHandler struct {
	source     SegmentSource
	aggregator stats.Aggregator
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(source SegmentSource, aggregator stats.Aggregator, logger *slog.Logger, m metrics.Recorder) *StatsHandler {
	if m == nil {
		m = metrics.NewNoop()
	}
	return &StatsHandler{
		source:     source,
		aggregator: aggregator,
		logger:     logger,
		metrics:    m,
	}
}

// Stats handles GET /admin/stats?include_archived={bool}&date={YYYY-MM-DD}.
// Read errors degrade to partial statistics.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	includeArchived := false
	if raw := q.Get("include_archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "include_archived must be a boolean")
			return
		}
		includeArchived = v
	}

	agg := h.aggregator
	if date := q.Get("date"); date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "date must be YYYY-MM-DD")
			return
		}
		agg.Date = date
	}

	var listArchives func() ([]string, error)
	if includeArchived {
		listArchives = h.source.Segments
	}

	start := time.Now()
	st, err := agg.AggregateLog(h.source.Path(), listArchives)
	h.metrics.ObserveStatsDuration(time.Since(start))
	h.metrics.AddSkippedRecords(st.Skipped)

	partial := false
	if err != nil {
		h.logger.Error("click log aggregation incomplete",
			"error", err,
			"include_archived", includeArchived,
		)
		partial = true
	}

	writeJSON(w, http.StatusOK, dto.StatsResponse{
		AggregatedStats: st,
		IncludeArchived: includeArchived,
		Partial:         partial,
	})
}
