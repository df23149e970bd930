package goReset

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricResetRequest)

	if got := m.Value(MetricResetRequest); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatalf("expected empty snapshot for disabled metrics")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricResetRequest)
	m.Observe(MetricResetLatency, time.Millisecond)
	if m.Value(MetricResetRequest) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatalf("nil metrics should record nothing")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricResetIssued)
	m.Inc(MetricResetIssued)
	m.Inc(MetricResetIssued)

	if got := m.Value(MetricResetIssued); got != 3 {
		t.Fatalf("expected 3, got %d", got)
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
				m.Inc(MetricResetFinalizeFailure)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricResetFinalizeFailure); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricResetLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricResetLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounterIDs(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Observe(MetricResetRequest, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricResetRequest]; ok {
		t.Fatalf("counter id must not have a histogram")
	}
	for i, v := range snap.Histograms[MetricResetLatency] {
		if v != 0 {
			t.Fatalf("bucket %d expected 0, got %d", i, v)
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricResetRequest)
	m.Inc(MetricResetRateLimited)
	m.Inc(MetricResetRateLimited)
	m.Observe(MetricResetLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricResetRequest] != 1 {
		t.Fatalf("expected MetricResetRequest=1 got %d", snap.Counters[MetricResetRequest])
	}
	if snap.Counters[MetricResetRateLimited] != 2 {
		t.Fatalf("expected MetricResetRateLimited=2 got %d", snap.Counters[MetricResetRateLimited])
	}
	if _, ok := snap.Counters[MetricResetLatency]; ok {
		t.Fatalf("latency must not appear as a counter")
	}
	if len(snap.Histograms[MetricResetLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricResetLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricResetLatency][0])
	}
}

func TestEngineMetricsTrackResetOutcomes(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	env := newTestEngine(t, cfg)
	env.store.add(t, "a@x.com", "old-secret")

	ctx := context.Background()
	if _, err := env.engine.RequestPasswordReset(ctx, "a@x.com"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := env.engine.RequestPasswordReset(ctx, "nobody@x.com"); err != nil {
		t.Fatalf("request failed: %v", err)
	}
	msg := env.delivery.next(t)
	if ok, err := env.engine.ValidateResetToken(ctx, "a@x.com", wrongCode(msg.Code)); err != nil || ok {
		t.Fatalf("expected invalid code, got ok=%v err=%v", ok, err)
	}
	if ok, err := env.engine.FinalizePasswordReset(ctx, "a@x.com", msg.Code, "new-secret"); err != nil || !ok {
		t.Fatalf("finalize failed: ok=%v err=%v", ok, err)
	}

	snap := env.engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricResetRequest:         2,
		MetricResetIssued:          1,
		MetricResetUnknown:         1,
		MetricResetValidateFailure: 1,
		MetricResetFinalizeSuccess: 1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}

	var observed uint64
	for _, v := range snap.Histograms[MetricResetLatency] {
		observed += v
	}
	if observed != 4 {
		t.Fatalf("expected 4 latency observations, got %d", observed)
	}
}
