package carebook

import (
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/carebook/guard"
	"github.com/MrEthical07/carebook/session"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionLogin)

	if got := m.Value(MetricSessionLogin); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %d counters", len(snap.Counters))
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricAPICall)
	m.Observe(MetricAPILatency, time.Second)
	if m.Value(MetricAPICall) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("expected nil metrics to read as disabled")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionLogin)
	m.Inc(MetricSessionLogin)
	m.Add(MetricAPIRetry, 2)

	if got := m.Value(MetricSessionLogin); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricAPIRetry); got != 2 {
		t.Fatalf("expected 2 retries, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricPageOpened)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricPageOpened); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2500 * time.Millisecond,
		5 * time.Second,
		31 * time.Second,
	}

	for _, d := range observations {
		m.Observe(MetricAPILatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricAPILatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAPICall, time.Millisecond)

	if _, ok := m.Snapshot().Histograms[MetricAPICall]; ok {
		t.Fatal("expected no histogram for a counter id")
	}
}

func TestMetricsLatencyDisabledOmitsHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricAPILatency, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricAPILatency]; ok {
		t.Fatal("expected histogram to be absent when latency is disabled")
	}
	if _, ok := snap.Counters[MetricAPILatency]; ok {
		t.Fatal("histogram id must not appear as a counter")
	}
}

func TestMetricsRecordSessionEvent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	cases := map[session.EventKind]MetricID{
		session.EventLogin:              MetricSessionLogin,
		session.EventLogout:             MetricSessionLogout,
		session.EventHydrated:           MetricSessionHydrated,
		session.EventCleared:            MetricSessionCleared,
		session.EventPurged:             MetricSessionPurged,
		session.EventPersistFailed:      MetricSessionPersistFailed,
		session.EventStorageUnavailable: MetricSessionStorageUnavailable,
	}
	for kind, id := range cases {
		m.recordSessionEvent(kind)
		if got := m.Value(id); got != 1 {
			t.Fatalf("%s: expected counter 1, got %d", kind, got)
		}
	}
}

func TestMetricsRecordDecision(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.recordDecision(guard.Decision{State: guard.Authorized})
	m.recordDecision(guard.Decision{State: guard.Pending})
	m.recordDecision(guard.Decision{State: guard.Unauthorized, Redirect: guard.Login})
	m.recordDecision(guard.Decision{State: guard.Unauthorized, Redirect: guard.PatientHome})
	m.recordDecision(guard.Decision{State: guard.Unauthorized, Redirect: guard.Login, Suppressed: true})

	if m.Value(MetricGuardAuthorized) != 1 || m.Value(MetricGuardPending) != 1 {
		t.Fatal("expected one authorized and one pending decision")
	}
	if got := m.Value(MetricGuardRedirect); got != 2 {
		t.Fatalf("expected 2 redirects, got %d", got)
	}
	if got := m.Value(MetricGuardSuppressed); got != 1 {
		t.Fatalf("expected 1 suppressed redirect, got %d", got)
	}
}
