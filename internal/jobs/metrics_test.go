package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.IncJobsTotal(JobTypeEmbeddingBackfill, StatusSuccess)
	m.ObserveJobDuration(JobTypeEmbeddingBackfill, 1.0)
	m.IncJobErrors(JobTypeEmbeddingBackfill, "timeout")
	m.AddItems(JobTypeEmbeddingBackfill, 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	found := map[string]bool{}
	for _, family := range families {
		found[family.GetName()] = true
	}
	for _, name := range []string{
		MetricBackgroundJobsTotal, MetricBackgroundJobsDuration,
		MetricBackgroundJobErrorsTotal, MetricBackgroundJobItemsTotal,
	} {
		if !found[name] {
			t.Errorf("metric %s not gathered", name)
		}
	}

	if err := NewMetrics().Register(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestMetrics_Track(t *testing.T) {
	m := NewMetrics()

	n, err := m.Track(JobTypeLocationBackfill, func() (int, error) { return 4, nil }, nil)
	if err != nil || n != 4 {
		t.Fatalf("Track() = %d, %v", n, err)
	}

	boom := context.DeadlineExceeded
	classify := func(err error) string {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		return "other"
	}
	if _, err := m.Track(JobTypeLocationBackfill, func() (int, error) { return 1, boom }, classify); !errors.Is(err, boom) {
		t.Fatalf("Track() error = %v, want %v", err, boom)
	}

	tests := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"success", m.jobsTotal.WithLabelValues(JobTypeLocationBackfill, StatusSuccess), 1},
		{"failure", m.jobsTotal.WithLabelValues(JobTypeLocationBackfill, StatusFailure), 1},
		{"timeout errors", m.jobErrors.WithLabelValues(JobTypeLocationBackfill, "timeout"), 1},
		{"items", m.jobItems.WithLabelValues(JobTypeLocationBackfill), 5},
	}
	for _, tt := range tests {
		if got := counterValue(t, tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.IncJobsTotal(JobTypeEmbeddingBackfill, StatusSuccess)
	m.ObserveJobDuration(JobTypeEmbeddingBackfill, 1)
	m.IncJobErrors(JobTypeEmbeddingBackfill, "x")
	m.AddItems(JobTypeEmbeddingBackfill, 1)
	if n, err := m.Track(JobTypeEmbeddingBackfill, func() (int, error) { return 2, nil }, nil); n != 2 || err != nil {
		t.Errorf("Track() = %d, %v", n, err)
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncJobsTotal(JobTypeEmbeddingBackfill, StatusSuccess)
			m.AddItems(JobTypeEmbeddingBackfill, 1)
		}()
	}
	wg.Wait()

	if got := counterValue(t, m.jobItems.WithLabelValues(JobTypeEmbeddingBackfill)); got != 50 {
		t.Errorf("items = %v, want 50", got)
	}
}
