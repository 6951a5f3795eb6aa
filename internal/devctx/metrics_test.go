package devctx

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManagerMetrics(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	drv := newFakeDriver([2]int{8, 0})
	m, err := New(Options{Driver: drv, Seed: 42, Registerer: reg, ThreadID: fixedThread(1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	metrics := metricsOf(t, m)

	_, _ = m.Registry().Stream(0)
	_, _ = m.Registry().Stream(0)
	_, _ = m.Capabilities().Capabilities(0)
	_, _ = m.RNG().States(0, 8)
	_, _ = m.RNG().States(0, 16)
	m.Gemm().With(false).Restore()

	drv.failStream = Translate(2, Compute)
	_, _ = m.Registry().Stream(CurrentDevice)

	checks := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"contexts created", metrics.contextsCreated.WithLabelValues("0"), 1},
		{"capability probes", metrics.capabilityProbes.WithLabelValues("0"), 1},
		{"rng growths", metrics.rngGrowths.WithLabelValues("0"), 2},
		{"rng capacity", metrics.rngCapacity.WithLabelValues("0"), 16},
		{"gemm scopes", metrics.gemmScopes.WithLabelValues("mixed"), 1},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if n, err := testutil.GatherAndCount(reg, "devplane_execution_context_failures_total"); err != nil || n != 0 {
		t.Fatalf("context already existed, no failure expected: n=%d err=%v", n, err)
	}
}

func TestManagerMetricsFailures(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	drv := newFakeDriver([2]int{8, 0})
	drv.failBlas = Translate(1, Blas)
	m, _ := New(Options{Driver: drv, Registerer: reg, ThreadID: fixedThread(1)})

	_, _ = m.Registry().Blas(0)
	got := testutil.ToFloat64(metricsOf(t, m).contextFailures.WithLabelValues("0", "blas"))
	if got != 1 {
		t.Fatalf("blas failures = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.contextCreated(0)
	m.contextFailed(0, nil)
	m.capabilityProbed(0)
	m.rngGrown(0, 1)
	m.gemmScope(true)
}

// metricsOf returns the collectors a Manager was built with.
func metricsOf(t *testing.T, m *Manager) *Metrics {
	t.Helper()
	if m.registry.metrics == nil {
		t.Fatal("manager built without metrics")
	}
	return m.registry.metrics
}
