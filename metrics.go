package carebook

import (
	"sync/atomic"
	"time"

	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricPageOpened counts per-request session pages handed out by Portal.Open.
	MetricPageOpened MetricID = iota
	// MetricSessionLogin counts successful session logins.
	MetricSessionLogin
	// MetricSessionLogout counts logouts, explicit or forced by a 401.
	MetricSessionLogout
	// MetricSessionHydrated counts page loads that restored an authenticated session.
	MetricSessionHydrated
	// MetricSessionCleared counts page loads that found no durable session.
	MetricSessionCleared
	// MetricSessionPurged counts page loads that purged corrupt or partial entries.
	MetricSessionPurged
	// MetricSessionPersistFailed counts durable writes or deletes that failed.
	MetricSessionPersistFailed
	// MetricSessionStorageUnavailable counts hydrations that could not read storage.
	MetricSessionStorageUnavailable
	// MetricSessionRotated counts redis session ids replaced on login or logout.
	MetricSessionRotated
	// MetricGuardAuthorized counts protected renders.
	MetricGuardAuthorized
	// MetricGuardPending counts guard decisions taken before hydration finished.
	MetricGuardPending
	// MetricGuardRedirect counts guard redirects that were issued.
	MetricGuardRedirect
	// MetricGuardSuppressed counts redirects withheld for internal fetches.
	MetricGuardSuppressed
	// MetricShellForward counts authenticated visits to login or register forwarded home.
	MetricShellForward
	// MetricAPICall counts finished remote API calls.
	MetricAPICall
	// MetricAPIFailure counts remote API calls that returned an error.
	MetricAPIFailure
	// MetricAPIRetry counts extra attempts beyond the first.
	MetricAPIRetry
	// MetricAPIUnauthorized counts calls that ended the session.
	MetricAPIUnauthorized
	// MetricAPILatency is the remote API latency histogram.
	MetricAPILatency
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

// Metrics is a fixed set of lock-free counters. A nil or disabled Metrics ignores
// every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histogram buckets are
// non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether updates are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether Observe records samples.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records one latency sample. Only MetricAPILatency carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAPILatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when latency is enabled, the API latency buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricAPILatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAPILatency].buckets[i])
		}
		s.Histograms[MetricAPILatency] = buckets
	}

	return s
}

// recordSessionEvent maps a store lifecycle event onto its counter.
func (m *Metrics) recordSessionEvent(kind session.EventKind) {
	switch kind {
	case session.EventLogin:
		m.Inc(MetricSessionLogin)
	case session.EventLogout:
		m.Inc(MetricSessionLogout)
	case session.EventHydrated:
		m.Inc(MetricSessionHydrated)
	case session.EventCleared:
		m.Inc(MetricSessionCleared)
	case session.EventPurged:
		m.Inc(MetricSessionPurged)
	case session.EventPersistFailed:
		m.Inc(MetricSessionPersistFailed)
	case session.EventStorageUnavailable:
		m.Inc(MetricSessionStorageUnavailable)
	}
}

func (m *Metrics) recordDecision(d guard.Decision) {
	switch {
	case d.State == guard.Authorized:
		m.Inc(MetricGuardAuthorized)
	case d.State == guard.Pending:
		m.Inc(MetricGuardPending)
	case d.Suppressed:
		m.Inc(MetricGuardSuppressed)
	case d.Redirect != guard.None:
		m.Inc(MetricGuardRedirect)
	}
}

// bucketIndex places d into one of the 8 API latency buckets:
// 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, +Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 50:
		return 0
	case ms <= 100:
		return 1
	case ms <= 250:
		return 2
	case ms <= 500:
		return 3
	case ms <= 1000:
		return 4
	case ms <= 2500:
		return 5
	case ms <= 5000:
		return 6
	default:
		return 7
	}
}
