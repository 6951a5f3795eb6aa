package devctx

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the plane's collectors. A nil *Metrics records nothing.
type Metrics struct {
	contextsCreated  *prometheus.CounterVec
	contextFailures  *prometheus.CounterVec
	capabilityProbes *prometheus.CounterVec
	rngGrowths       *prometheus.CounterVec
	rngCapacity      *prometheus.GaugeVec
	gemmScopes       *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		contextsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devplane_execution_contexts_created_total",
			Help: "Execution contexts created, by device.",
		}, []string{"device"}),
		contextFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devplane_execution_context_failures_total",
			Help: "Failed execution context creations, by device and subsystem.",
		}, []string{"device", "subsystem"}),
		capabilityProbes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devplane_capability_probes_total",
			Help: "Native device property queries, by device.",
		}, []string{"device"}),
		rngGrowths: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devplane_rng_pool_growths_total",
			Help: "RNG state pool reallocations, by device.",
		}, []string{"device"}),
		rngCapacity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "devplane_rng_pool_states",
			Help: "Provisioned RNG states, by device.",
		}, []string{"device"}),
		gemmScopes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "devplane_gemm_mode_scopes_total",
			Help: "GEMM mode override scopes entered, by requested mode.",
		}, []string{"mode"}),
	}
}

func (m *Metrics) contextCreated(device int) {
	if m == nil {
		return
	}
	m.contextsCreated.WithLabelValues(strconv.Itoa(device)).Inc()
}

func (m *Metrics) contextFailed(device int, err error) {
	if m == nil {
		return
	}
	sub := "unknown"
	if st := statusOf(err); st != nil {
		sub = string(st.Subsystem)
	}
	m.contextFailures.WithLabelValues(strconv.Itoa(device), sub).Inc()
}

func (m *Metrics) capabilityProbed(device int) {
	if m == nil {
		return
	}
	m.capabilityProbes.WithLabelValues(strconv.Itoa(device)).Inc()
}

func (m *Metrics) rngGrown(device, capacity int) {
	if m == nil {
		return
	}
	label := strconv.Itoa(device)
	m.rngGrowths.WithLabelValues(label).Inc()
	m.rngCapacity.WithLabelValues(label).Set(float64(capacity))
}

func (m *Metrics) gemmScope(trueFP16 bool) {
	if m == nil {
		return
	}
	mode := "mixed"
	if trueFP16 {
		mode = "true_fp16"
	}
	m.gemmScopes.WithLabelValues(mode).Inc()
}
