package engineclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/enginelink/metric"
)

// Metrics tracks client activity. All fields are nil-safe through the
// recording helpers so a client without a registry pays nothing.
type Metrics struct {
	commandsSent      prometheus.Counter
	commandOutcomes   *prometheus.CounterVec
	commandLatency    prometheus.Histogram
	pendingCommands   prometheus.Gauge
	reconnects        prometheus.Counter
	handshakeFailures prometheus.Counter
}

// newMetrics registers the client's collectors under name. A nil registrar
// yields a Metrics whose recording methods are all no-ops.
func newMetrics(registrar metric.Registrar, name string) (*Metrics, error) {
	if registrar == nil {
		return &Metrics{}, nil
	}

	m := &Metrics{
		commandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "commands_sent_total",
			Help:      "Total commands sent to the engine",
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}),
		commandOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "command_outcomes_total",
			Help:      "Command resolutions by outcome",
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}, []string{"outcome"}),
		commandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "command_latency_seconds",
			Help:      "Time from send to resolution",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}),
		pendingCommands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "pending_commands",
			Help:      "Commands currently awaiting a response",
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Connections established after the first",
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enginelink",
			Subsystem: "client",
			Name:      "handshake_failures_total",
			Help:      "Authentication handshakes that did not complete",
			ConstLabels: prometheus.Labels{
				"client": name,
			},
		}),
	}

	if err := registrar.RegisterCounter(name, "commands_sent", m.commandsSent); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounterVec(name, "command_outcomes", m.commandOutcomes); err != nil {
		return nil, err
	}
	if err := registrar.RegisterHistogram(name, "command_latency", m.commandLatency); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge(name, "pending_commands", m.pendingCommands); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(name, "reconnects", m.reconnects); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(name, "handshake_failures", m.handshakeFailures); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordSent() {
	if m.commandsSent != nil {
		m.commandsSent.Inc()
	}
	if m.pendingCommands != nil {
		m.pendingCommands.Inc()
	}
}

func (m *Metrics) recordOutcome(outcome string, started time.Time) {
	if m.commandOutcomes != nil {
		m.commandOutcomes.WithLabelValues(outcome).Inc()
	}
	if m.commandLatency != nil {
		m.commandLatency.Observe(time.Since(started).Seconds())
	}
	if m.pendingCommands != nil {
		m.pendingCommands.Dec()
	}
}

func (m *Metrics) recordReconnect() {
	if m.reconnects != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) recordHandshakeFailure() {
	if m.handshakeFailures != nil {
		m.handshakeFailures.Inc()
	}
}

func (m *Metrics) setPending(n int) {
	if m.pendingCommands != nil {
		m.pendingCommands.Set(float64(n))
	}
}
