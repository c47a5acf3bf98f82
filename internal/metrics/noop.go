package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncClickRecorded is a no-op.
func (n *NoopRecorder) IncClickRecorded(unique bool) {}

// IncDomainRejected is a no-op.
func (n *NoopRecorder) IncDomainRejected() {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}

// IncLimiterFailure is a no-op.
func (n *NoopRecorder) IncLimiterFailure() {}

// IncTrackerFailure is a no-op.
func (n *NoopRecorder) IncTrackerFailure() {}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncAppendFailure is a no-op.
func (n *NoopRecorder) IncAppendFailure() {}

// IncLogRotation is a no-op.
func (n *NoopRecorder) IncLogRotation() {}

// ObserveStatsDuration is a no-op.
func (n *NoopRecorder) ObserveStatsDuration(duration time.Duration) {}

// AddSkippedRecords is a no-op.
func (n *NoopRecorder) AddSkippedRecords(count int64) {}
