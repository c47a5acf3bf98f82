package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncClickRecorded(true)
	m.IncClickRecorded(false)
	m.IncDomainRejected()
	m.IncRateLimited()
	m.IncRateLimited()
	m.IncLimiterFailure()
	m.IncTrackerFailure()
	m.IncAppendFailure()
	m.IncLogRotation()
	m.AddSkippedRecords(3)
	m.ObserveRedirectDuration(2 * time.Millisecond)
	m.ObserveStatsDuration(time.Second)

	snap := m.Snapshot()

	if snap.ClicksRecorded != 2 {
		t.Errorf("ClicksRecorded = %d, want 2", snap.ClicksRecorded)
	}
	if snap.UniqueImpressions != 1 {
		t.Errorf("UniqueImpressions = %d, want 1", snap.UniqueImpressions)
	}
	if snap.RateLimited != 2 {
		t.Errorf("RateLimited = %d, want 2", snap.RateLimited)
	}
	if snap.DomainRejections != 1 || snap.LimiterFailures != 1 || snap.TrackerFailures != 1 {
		t.Errorf("unexpected rejection counters: %+v", snap)
	}
	if snap.AppendFailures != 1 || snap.LogRotations != 1 {
		t.Errorf("unexpected log counters: %+v", snap)
	}
	if snap.SkippedRecords != 3 {
		t.Errorf("SkippedRecords = %d, want 3", snap.SkippedRecords)
	}
	if snap.RedirectDurationCount != 1 || snap.RedirectDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("unexpected redirect duration: %+v", snap)
	}
	if snap.StatsDurationCount != 1 || snap.StatsDurationTotalNs != int64(time.Second) {
		t.Errorf("unexpected stats duration: %+v", snap)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncClickRecorded(true)
			m.IncRateLimited()
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.ClicksRecorded != 50 || snap.RateLimited != 50 {
		t.Errorf("lost updates: %+v", snap)
	}
}

func TestNoopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncClickRecorded(true)
	r.IncLogRotation()
	r.ObserveRedirectDuration(time.Second)
}
