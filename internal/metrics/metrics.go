// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Redirect pipeline metrics
	IncClickRecorded(unique bool)
	IncDomainRejected()
	IncRateLimited()
	IncLimiterFailure()
	IncTrackerFailure()
	ObserveRedirectDuration(duration time.Duration)

	// Click log metrics
	IncAppendFailure()
	IncLogRotation()

	// Read path metrics
	ObserveStatsDuration(duration time.Duration)
	AddSkippedRecords(n int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
