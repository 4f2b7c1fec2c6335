package joysky

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a specific counter or latency histogram in the
// in-process performance monitor.
type MetricID uint16

const (
	// MetricLoginRequest counts login attempts entering the engine.
	MetricLoginRequest MetricID = iota
	// MetricLoginSuccess counts logins that returned a user.
	MetricLoginSuccess
	// MetricLoginFailure counts logins rejected with the generic
	// credentials error.
	MetricLoginFailure
	// MetricRegisterRequest counts registration attempts.
	MetricRegisterRequest
	// MetricRegisterSuccess counts persisted registrations.
	MetricRegisterSuccess
	// MetricRegisterConflict counts registrations rejected for a duplicate
	// phone or email.
	MetricRegisterConflict
	// MetricLogoutRequest counts logout attempts.
	MetricLogoutRequest
	// MetricLogoutSuccess counts acknowledged logouts.
	MetricLogoutSuccess
	// MetricCacheHit counts result-cache reads that returned a live entry.
	MetricCacheHit
	// MetricCacheMiss counts result-cache reads that fell through.
	MetricCacheMiss
	// MetricResetRequest counts password-reset code requests.
	MetricResetRequest
	// MetricResetRateLimited counts reset requests refused by the cooldown
	// gate.
	MetricResetRateLimited
	// MetricResetConfirmSuccess counts completed password resets.
	MetricResetConfirmSuccess
	// MetricResetConfirmFailure counts reset confirmations refused for a
	// wrong or expired code.
	MetricResetConfirmFailure
	// MetricMailFailure counts mail-transport send failures.
	MetricMailFailure
	// MetricCaptchaIssued counts generated captcha challenges.
	MetricCaptchaIssued
	// MetricCaptchaFailure counts captcha validations that failed.
	MetricCaptchaFailure
	// MetricAsyncTaskFailure counts side-effect tasks that errored or
	// panicked; the failures themselves are swallowed.
	MetricAsyncTaskFailure
	// MetricLoginLatency is the login latency histogram.
	MetricLoginLatency
	// MetricRegisterLatency is the registration latency histogram.
	MetricRegisterLatency
	// MetricLogoutLatency is the logout latency histogram.
	MetricLogoutLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds atomic counters and optional latency histograms. All
// operations are safe for concurrent use and become no-ops on a nil or
// disabled receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false,
// all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether the monitor records anything at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram identified by id. Only the
// latency metric IDs carry histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id >= metricIDCount {
		return
	}
	switch id {
	case MetricLoginLatency, MetricRegisterLatency, MetricLogoutLatency:
	default:
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// CacheHitRate returns hits/(hits+misses), or zero before any cache read.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.Value(MetricCacheHit)
	misses := m.Value(MetricCacheMiss)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Snapshot returns a deep copy of all counters and histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 3),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricLoginLatency, MetricRegisterLatency, MetricLogoutLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
