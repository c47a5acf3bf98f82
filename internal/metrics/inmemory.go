package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ClicksRecorded          uint64
	UniqueImpressions       uint64
	DomainRejections        uint64
	RateLimited             uint64
	LimiterFailures         uint64
	TrackerFailures         uint64
	RedirectDurationCount   uint64
	RedirectDurationTotalNs int64
	AppendFailures          uint64
	LogRotations            uint64
	StatsDurationCount      uint64
	StatsDurationTotalNs    int64
	SkippedRecords          int64
}

// InMemoryRecorder stores metrics in memory. The server exposes it on
// /metrics; tests read it through Snapshot.
type InMemoryRecorder struct {
	clicksRecorded          atomic.Uint64
	uniqueImpressions       atomic.Uint64
	domainRejections        atomic.Uint64
	rateLimited             atomic.Uint64
	limiterFailures         atomic.Uint64
	trackerFailures         atomic.Uint64
	redirectDurationCount   atomic.Uint64
	redirectDurationTotalNs atomic.Int64
	appendFailures          atomic.Uint64
	logRotations            atomic.Uint64
	statsDurationCount      atomic.Uint64
	statsDurationTotalNs    atomic.Int64
	skippedRecords          atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		ClicksRecorded:          m.clicksRecorded.Load(),
		UniqueImpressions:       m.uniqueImpressions.Load(),
		DomainRejections:        m.domainRejections.Load(),
		RateLimited:             m.rateLimited.Load(),
		LimiterFailures:         m.limiterFailures.Load(),
		TrackerFailures:         m.trackerFailures.Load(),
		RedirectDurationCount:   m.redirectDurationCount.Load(),
		RedirectDurationTotalNs: m.redirectDurationTotalNs.Load(),
		AppendFailures:          m.appendFailures.Load(),
		LogRotations:            m.logRotations.Load(),
		StatsDurationCount:      m.statsDurationCount.Load(),
		StatsDurationTotalNs:    m.statsDurationTotalNs.Load(),
		SkippedRecords:          m.skippedRecords.Load(),
	}
}

// IncClickRecorded counts a logged click.
func (m *InMemoryRecorder) IncClickRecorded(unique bool) {
	m.clicksRecorded.Add(1)
	if unique {
		m.uniqueImpressions.Add(1)
	}
}

// IncDomainRejected counts a target outside the allowlist.
func (m *InMemoryRecorder) IncDomainRejected() {
	m.domainRejections.Add(1)
}

// IncRateLimited counts a denied request.
func (m *InMemoryRecorder) IncRateLimited() {
	m.rateLimited.Add(1)
}

// IncLimiterFailure counts a request denied because limiter storage failed.
func (m *InMemoryRecorder) IncLimiterFailure() {
	m.limiterFailures.Add(1)
}

// IncTrackerFailure counts a unique-impression lookup that failed.
func (m *InMemoryRecorder) IncTrackerFailure() {
	m.trackerFailures.Add(1)
}

// ObserveRedirectDuration records redirect duration.
func (m *InMemoryRecorder) ObserveRedirectDuration(duration time.Duration) {
	m.redirectDurationCount.Add(1)
	m.redirectDurationTotalNs.Add(duration.Nanoseconds())
}

// IncAppendFailure counts a click that could not be logged.
func (m *InMemoryRecorder) IncAppendFailure() {
	m.appendFailures.Add(1)
}

// IncLogRotation counts a sealed log segment.
func (m *InMemoryRecorder) IncLogRotation() {
	m.logRotations.Add(1)
}

// ObserveStatsDuration records aggregation duration.
func (m *InMemoryRecorder) ObserveStatsDuration(duration time.Duration) {
	m.statsDurationCount.Add(1)
	m.statsDurationTotalNs.Add(duration.Nanoseconds())
}

// AddSkippedRecords counts malformed log lines seen while aggregating.
func (m *InMemoryRecorder) AddSkippedRecords(n int64) {
	m.skippedRecords.Add(n)
}
