package tokencore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricMintSuccess)

	if got := m.Value(MetricMintSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricMintSuccess)
	m.Inc(MetricMintSuccess)
	m.Inc(MetricMintSuccess)

	if got := m.Value(MetricMintSuccess); got != 3 {
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
				m.Inc(MetricRotateSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRotateSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []struct {
		d      time.Duration
		bucket int
	}{
		{2 * time.Millisecond, 0},
		{5 * time.Millisecond, 0},
		{8 * time.Millisecond, 1},
		{20 * time.Millisecond, 2},
		{40 * time.Millisecond, 3},
		{90 * time.Millisecond, 4},
		{200 * time.Millisecond, 5},
		{400 * time.Millisecond, 6},
		{2 * time.Second, 7},
	}
	for _, obs := range observations {
		m.Observe(MetricValidateLatency, obs.d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}

	want := make([]uint64, histBucketCount)
	for _, obs := range observations {
		want[obs.bucket]++
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: expected %d, got %d", i, want[i], buckets[i])
		}
	}
}

func TestMetricsHistogramDisabledByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricValidateLatency, 10*time.Millisecond)

	snap := m.Snapshot()
	if len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms, got %v", snap.Histograms)
	}
}

func TestMetricsSnapshotDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	snap := m.Snapshot()

	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricMintSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if got := m.Value(MetricMintSuccess); got != 0 {
		t.Fatalf("expected 0 from nil metrics, got %d", got)
	}
}
