package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "enginelink",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	registry := NewRegistry()

	counter := newTestCounter("ops_total")
	require.NoError(t, registry.RegisterCounter("client-a", "ops", counter))

	// Same key is rejected.
	err := registry.RegisterCounter("client-a", "ops", newTestCounter("other_total"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	// Different client may use the same metric name.
	require.NoError(t, registry.RegisterCounter("client-b", "ops", newTestCounter("ops_b_total")))

	assert.True(t, registry.Unregister("client-a", "ops"))
	assert.False(t, registry.Unregister("client-a", "ops"))
	assert.False(t, registry.Unregister("nobody", "nothing"))
}

func TestRegistry_PrometheusConflict(t *testing.T) {
	registry := NewRegistry()

	// Two collectors with identical descriptors under different keys
	// conflict at the prometheus layer.
	require.NoError(t, registry.RegisterCounter("a", "dup", newTestCounter("dup_total")))
	err := registry.RegisterCounter("b", "dup", newTestCounter("dup_total"))
	require.Error(t, err)
}

func TestRegistry_GaugeAndHistogram(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "enginelink", Subsystem: "test", Name: "depth", Help: "test gauge",
	})
	require.NoError(t, registry.RegisterGauge("c", "depth", gauge))

	hist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "enginelink", Subsystem: "test", Name: "latency_seconds", Help: "test histogram",
	})
	require.NoError(t, registry.RegisterHistogram("c", "latency", hist))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "enginelink", Subsystem: "test", Name: "outcomes_total", Help: "test vec",
	}, []string{"outcome"})
	require.NoError(t, registry.RegisterCounterVec("c", "outcomes", vec))
}
