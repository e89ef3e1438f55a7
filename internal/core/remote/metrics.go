package remote

import (
	"sync/atomic"
	"time"
)

// Metrics are the in-memory counters §4.3 requires: never persisted,
// reset on demand, read via GetMetrics.
type Metrics struct {
	totalRequests   int64
	successful      int64
	failed          int64
	retried         int64
	rateLimited     int64
	sumResponseNs   int64
	responseSamples int64
}

// Snapshot is the value returned by GetMetrics; AvgResponseTimeMs is 0 when
// no request has completed yet.
type Snapshot struct {
	TotalRequests     int64
	Successful        int64
	Failed            int64
	Retried           int64
	RateLimited       int64
	AvgResponseTimeMs float64
}

func (m *Metrics) recordAttempt() {
	atomic.AddInt64(&m.totalRequests, 1)
}

func (m *Metrics) recordRetry() {
	atomic.AddInt64(&m.retried, 1)
}

func (m *Metrics) recordRateLimited() {
	atomic.AddInt64(&m.rateLimited, 1)
}

func (m *Metrics) recordResult(success bool, elapsed time.Duration) {
	if success {
		atomic.AddInt64(&m.successful, 1)
	} else {
		atomic.AddInt64(&m.failed, 1)
	}
	atomic.AddInt64(&m.sumResponseNs, elapsed.Nanoseconds())
	atomic.AddInt64(&m.responseSamples, 1)
}

// GetMetrics returns a point-in-time snapshot of the counters.
func (m *Metrics) GetMetrics() Snapshot {
	samples := atomic.LoadInt64(&m.responseSamples)
	var avgMs float64
	if samples > 0 {
		avgMs = float64(atomic.LoadInt64(&m.sumResponseNs)) / float64(samples) / float64(time.Millisecond)
	}
	return Snapshot{
		TotalRequests:     atomic.LoadInt64(&m.totalRequests),
		Successful:        atomic.LoadInt64(&m.successful),
		Failed:            atomic.LoadInt64(&m.failed),
		Retried:           atomic.LoadInt64(&m.retried),
		RateLimited:       atomic.LoadInt64(&m.rateLimited),
		AvgResponseTimeMs: avgMs,
	}
}

// ResetMetrics zeroes every counter.
func (m *Metrics) ResetMetrics() {
	atomic.StoreInt64(&m.totalRequests, 0)
	atomic.StoreInt64(&m.successful, 0)
	atomic.StoreInt64(&m.failed, 0)
	atomic.StoreInt64(&m.retried, 0)
	atomic.StoreInt64(&m.rateLimited, 0)
	atomic.StoreInt64(&m.sumResponseNs, 0)
	atomic.StoreInt64(&m.responseSamples, 0)
}
