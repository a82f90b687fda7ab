package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/enginelink/errors"
)

// Registrar defines the interface for registering client-specific metrics.
type Registrar interface {
	RegisterCounter(clientName, metricName string, counter prometheus.Counter) error
	RegisterGauge(clientName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(clientName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(clientName, metricName string, counterVec *prometheus.CounterVec) error
	Unregister(clientName, metricName string) bool
}

// Registry manages the registration and lifecycle of metrics.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	registered         map[string]prometheus.Collector
	mu                 sync.Mutex
}

// NewRegistry creates a metrics registry with Go runtime collectors attached.
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()
	prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		prometheusRegistry: prometheusRegistry,
		registered:         make(map[string]prometheus.Collector),
	}
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// register adds a collector under clientName.metricName, rejecting duplicates.
func (r *Registry) register(clientName, metricName, operation string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", clientName, metricName)
	if _, exists := r.registered[key]; exists {
		return errors.Wrap(
			fmt.Errorf("metric %s already registered for client %s", metricName, clientName),
			"Registry", operation, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.Wrap(err, "Registry", operation,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.Wrap(err, "Registry", operation, "register collector")
	}

	r.registered[key] = collector
	return nil
}

// RegisterCounter registers a counter metric for a client.
func (r *Registry) RegisterCounter(clientName, metricName string, counter prometheus.Counter) error {
	return r.register(clientName, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a client.
func (r *Registry) RegisterGauge(clientName, metricName string, gauge prometheus.Gauge) error {
	return r.register(clientName, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a client.
func (r *Registry) RegisterHistogram(clientName, metricName string, histogram prometheus.Histogram) error {
	return r.register(clientName, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric for a client.
func (r *Registry) RegisterCounterVec(clientName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(clientName, metricName, "RegisterCounterVec", counterVec)
}

// Unregister removes a metric from the registry.
func (r *Registry) Unregister(clientName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", clientName, metricName)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registered, key)
	}
	return success
}
